// Package state tracks which disclosures a polling session has already
// handled, so repeated list pages never reprocess the same receipt.
package state

import "sync"

// Stats is a point-in-time snapshot of session counters.
type Stats struct {
	// Succeeded counts receipts stored and enqueued.
	Succeeded int
	// Skipped counts terminal non-successes: already-stored duplicates
	// and undersized payloads.
	Skipped int
	// Failing counts receipts with at least one failure that have not
	// yet been promoted to permanent failure.
	Failing int
	// PermanentlyFailed counts receipts promoted at the failure
	// threshold. These are retired like successes but reported apart.
	PermanentlyFailed int
	// Errors counts individual failure events, including repeats on
	// the same receipt.
	Errors int
}

// State is the in-memory ledger of one ingest session. It is safe for
// concurrent use. Entries live for the lifetime of the process; a restart
// intentionally starts clean and relies on object-store existence checks
// for cross-session idempotence.
type State struct {
	mu        sync.Mutex
	processed map[string]struct{}
	failures  map[string]int
	permanent map[string]struct{}
	succeeded int
	skipped   int
	errors    int
}

func New() *State {
	return &State{
		processed: make(map[string]struct{}),
		failures:  make(map[string]int),
		permanent: make(map[string]struct{}),
	}
}

// IsProcessed reports whether the receipt already reached a terminal
// outcome this session: success, skip, or permanent failure.
func (s *State) IsProcessed(receiptNo string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.processed[receiptNo]
	return ok
}

// MarkProcessed records a successful ingest and clears any failure count
// accumulated on earlier attempts.
func (s *State) MarkProcessed(receiptNo string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.processed[receiptNo]; ok {
		return
	}
	s.processed[receiptNo] = struct{}{}
	s.succeeded++
	delete(s.failures, receiptNo)
}

// MarkSkipped records a receipt that will never be ingested (undersized
// payloads, already-stored objects). Skips are terminal like successes
// but counted separately, and never touch the failure ledger.
func (s *State) MarkSkipped(receiptNo string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.processed[receiptNo]; ok {
		return
	}
	s.processed[receiptNo] = struct{}{}
	s.skipped++
	delete(s.failures, receiptNo)
}

// RecordFailure increments the receipt's failure count and reports whether
// the count just reached maxFail. At the threshold the receipt is promoted
// to permanently failed, which retires it from retries; the caller is
// expected to escalate (failure log plus critical alert) exactly once.
func (s *State) RecordFailure(receiptNo string, maxFail int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.processed[receiptNo]; ok {
		return false
	}
	s.errors++
	s.failures[receiptNo]++
	if s.failures[receiptNo] >= maxFail {
		s.processed[receiptNo] = struct{}{}
		s.permanent[receiptNo] = struct{}{}
		delete(s.failures, receiptNo)
		return true
	}
	return false
}

// Stats returns session counters. Permanent failures count toward neither
// Succeeded nor Skipped.
func (s *State) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Succeeded:         s.succeeded,
		Skipped:           s.skipped,
		Failing:           len(s.failures),
		PermanentlyFailed: len(s.permanent),
		Errors:            s.errors,
	}
}
