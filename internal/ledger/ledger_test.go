package ledger

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// Both implementations must behave identically; run the suite over each.
func withLedgers(t *testing.T, fn func(t *testing.T, l interface {
	Contains(string) (bool, error)
	InsertIfAbsent(string, time.Time) (bool, error)
	Prune(time.Time) (int, error)
})) {
	t.Helper()
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemory())
	})
	t.Run("badger", func(t *testing.T) {
		l, err := OpenBadger(t.TempDir())
		if err != nil {
			t.Fatalf("open badger ledger: %v", err)
		}
		defer l.Close()
		fn(t, l)
	})
}

func TestInsertIfAbsentIsExactlyOnce(t *testing.T) {
	withLedgers(t, func(t *testing.T, l interface {
		Contains(string) (bool, error)
		InsertIfAbsent(string, time.Time) (bool, error)
		Prune(time.Time) (int, error)
	}) {
		now := time.Now()
		inserted, err := l.InsertIfAbsent("env-1", now)
		if err != nil {
			t.Fatalf("first insert failed: %v", err)
		}
		if !inserted {
			t.Fatal("first insert should report inserted")
		}
		inserted, err = l.InsertIfAbsent("env-1", now)
		if err != nil {
			t.Fatalf("second insert failed: %v", err)
		}
		if inserted {
			t.Fatal("second insert should report already present")
		}
		seen, err := l.Contains("env-1")
		if err != nil || !seen {
			t.Fatalf("contains = %v, %v; want true, nil", seen, err)
		}
		seen, err = l.Contains("env-2")
		if err != nil || seen {
			t.Fatalf("contains unknown id = %v, %v; want false, nil", seen, err)
		}
	})
}

func TestConcurrentInsertSingleWinner(t *testing.T) {
	withLedgers(t, func(t *testing.T, l interface {
		Contains(string) (bool, error)
		InsertIfAbsent(string, time.Time) (bool, error)
		Prune(time.Time) (int, error)
	}) {
		const attempts = 16
		var wg sync.WaitGroup
		wins := make(chan bool, attempts)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				inserted, err := l.InsertIfAbsent("contended", time.Now())
				if err != nil {
					t.Errorf("insert failed: %v", err)
					return
				}
				wins <- inserted
			}()
		}
		wg.Wait()
		close(wins)
		winners := 0
		for w := range wins {
			if w {
				winners++
			}
		}
		if winners != 1 {
			t.Fatalf("expected exactly one winning insert, got %d", winners)
		}
	})
}

func TestPruneDropsOnlyStaleRecords(t *testing.T) {
	withLedgers(t, func(t *testing.T, l interface {
		Contains(string) (bool, error)
		InsertIfAbsent(string, time.Time) (bool, error)
		Prune(time.Time) (int, error)
	}) {
		now := time.Now()
		for i := 0; i < 5; i++ {
			if _, err := l.InsertIfAbsent(fmt.Sprintf("old-%d", i), now.Add(-40*24*time.Hour)); err != nil {
				t.Fatalf("insert old: %v", err)
			}
		}
		if _, err := l.InsertIfAbsent("fresh", now); err != nil {
			t.Fatalf("insert fresh: %v", err)
		}

		removed, err := l.Prune(now.Add(-30 * 24 * time.Hour))
		if err != nil {
			t.Fatalf("prune failed: %v", err)
		}
		if removed != 5 {
			t.Fatalf("expected 5 pruned records, got %d", removed)
		}
		if seen, _ := l.Contains("fresh"); !seen {
			t.Fatal("fresh record should survive pruning")
		}
		if seen, _ := l.Contains("old-0"); seen {
			t.Fatal("stale record should be gone")
		}
	})
}

func TestBadgerLedgerSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	l, err := OpenBadger(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := l.InsertIfAbsent("persisted", time.Now()); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenBadger(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	seen, err := reopened.Contains("persisted")
	if err != nil || !seen {
		t.Fatalf("record lost across reopen: %v, %v", seen, err)
	}
}
