package state

import (
	"sync"
)

// URLLedger tracks the URLs visited during one research run. It is the
// dedup point for every discovery path: a URL passes through Register at
// most once per run, regardless of which retriever or source list produced
// it. The ledger only grows; there is no removal.
type URLLedger struct {
	mu      sync.Mutex
	visited map[string]struct{}
}

// NewURLLedger creates an empty ledger
func NewURLLedger() *URLLedger {
	return &URLLedger{
		visited: make(map[string]struct{}),
	}
}

// Register records the candidate URLs and returns only those not seen
// before, in input order. The check-and-insert is atomic per call, so
// concurrent registrations from interleaved sub-queries cannot admit the
// same URL twice.
func (l *URLLedger) Register(candidates []string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var fresh []string
	for _, url := range candidates {
		if url == "" {
			continue
		}
		if _, seen := l.visited[url]; seen {
			continue
		}
		l.visited[url] = struct{}{}
		fresh = append(fresh, url)
	}
	return fresh
}

// Seen reports whether the URL has been registered
func (l *URLLedger) Seen(url string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.visited[url]
	return ok
}

// Len returns the number of registered URLs
func (l *URLLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visited)
}

// Snapshot returns a copy of the visited set
func (l *URLLedger) Snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	urls := make([]string, 0, len(l.visited))
	for url := range l.visited {
		urls = append(urls, url)
	}
	return urls
}
