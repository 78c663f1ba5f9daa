package ledger

import (
	"sync"
	"time"

	"medirelay/go-station/pkg/models"
)

// Memory is a mutex-guarded in-process ledger for tests and dry runs.
type Memory struct {
	mu      sync.Mutex
	records map[string]time.Time
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]time.Time)}
}

func (l *Memory) Contains(envelopeID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.records[envelopeID]
	return ok, nil
}

func (l *Memory) InsertIfAbsent(envelopeID string, processedAt time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.records[envelopeID]; ok {
		return false, nil
	}
	l.records[envelopeID] = processedAt
	return true, nil
}

func (l *Memory) Prune(cutoff time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for id, at := range l.records {
		if at.Before(cutoff) {
			delete(l.records, id)
			removed++
		}
	}
	return removed, nil
}

func (l *Memory) Records() ([]models.ReplayRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.ReplayRecord, 0, len(l.records))
	for id, at := range l.records {
		out = append(out, models.ReplayRecord{EnvelopeID: id, ProcessedAt: at})
	}
	return out, nil
}

func (l *Memory) Close() error { return nil }
