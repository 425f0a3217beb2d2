package state_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/openresearch/conductor/pkg/state"
)

func TestURLLedger_Register_FirstSeenOrder(t *testing.T) {
	ledger := state.NewURLLedger()

	fresh := ledger.Register([]string{"http://a", "http://b", "http://a", "http://c"})

	if len(fresh) != 3 {
		t.Fatalf("Expected 3 new URLs, got %d: %v", len(fresh), fresh)
	}
	expected := []string{"http://a", "http://b", "http://c"}
	for i, url := range expected {
		if fresh[i] != url {
			t.Errorf("fresh[%d] = %q, want %q", i, fresh[i], url)
		}
	}
}

func TestURLLedger_Register_Idempotent(t *testing.T) {
	ledger := state.NewURLLedger()

	first := ledger.Register([]string{"http://a"})
	second := ledger.Register([]string{"http://a"})

	if len(first) != 1 {
		t.Errorf("First registration: expected 1 new URL, got %d", len(first))
	}
	if len(second) != 0 {
		t.Errorf("Second registration: expected 0 new URLs, got %d", len(second))
	}
	if !ledger.Seen("http://a") {
		t.Error("Expected http://a to be marked as seen")
	}
}

func TestURLLedger_Register_SkipsEmpty(t *testing.T) {
	ledger := state.NewURLLedger()

	fresh := ledger.Register([]string{"", "http://a", ""})

	if len(fresh) != 1 || fresh[0] != "http://a" {
		t.Errorf("Expected only http://a, got %v", fresh)
	}
}

func TestURLLedger_NoDuplicatesAcrossCalls(t *testing.T) {
	ledger := state.NewURLLedger()

	batches := [][]string{
		{"http://a", "http://b"},
		{"http://b", "http://c"},
		{"http://c", "http://a", "http://d"},
	}

	seen := make(map[string]int)
	for _, batch := range batches {
		for _, url := range ledger.Register(batch) {
			seen[url]++
		}
	}

	for url, count := range seen {
		if count != 1 {
			t.Errorf("URL %q appeared %d times in new output, want 1", url, count)
		}
	}
	if len(seen) != 4 {
		t.Errorf("Expected 4 distinct URLs, got %d", len(seen))
	}
	if ledger.Len() != 4 {
		t.Errorf("Ledger size = %d, want 4", ledger.Len())
	}
}

func TestURLLedger_ConcurrentRegistration(t *testing.T) {
	ledger := state.NewURLLedger()

	// Many goroutines race to register overlapping URL sets; the union of
	// all "new" outputs must still contain each URL exactly once.
	const goroutines = 16
	urls := make([]string, 20)
	for i := range urls {
		urls[i] = fmt.Sprintf("http://host/%d", i)
	}

	var mu sync.Mutex
	counts := make(map[string]int)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fresh := ledger.Register(urls)
			mu.Lock()
			for _, url := range fresh {
				counts[url]++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(counts) != len(urls) {
		t.Errorf("Expected %d distinct URLs registered, got %d", len(urls), len(counts))
	}
	for url, count := range counts {
		if count != 1 {
			t.Errorf("URL %q admitted %d times under concurrency, want 1", url, count)
		}
	}
}
