package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkProcessedIsTerminal(t *testing.T) {
	t.Parallel()

	s := New()
	assert.False(t, s.IsProcessed("20241125000001"))

	s.MarkProcessed("20241125000001")
	assert.True(t, s.IsProcessed("20241125000001"))

	// Further failures on a finished receipt are ignored.
	assert.False(t, s.RecordFailure("20241125000001", 1))
	assert.True(t, s.IsProcessed("20241125000001"))
}

func TestRecordFailurePromotesAtThreshold(t *testing.T) {
	t.Parallel()

	s := New()
	assert.False(t, s.RecordFailure("20241125000002", 3))
	assert.False(t, s.RecordFailure("20241125000002", 3))
	assert.False(t, s.IsProcessed("20241125000002"))

	// Third strike promotes exactly once.
	assert.True(t, s.RecordFailure("20241125000002", 3))
	assert.True(t, s.IsProcessed("20241125000002"))
	assert.False(t, s.RecordFailure("20241125000002", 3))
}

func TestSuccessClearsFailureCount(t *testing.T) {
	t.Parallel()

	s := New()
	s.RecordFailure("20241125000003", 3)
	s.RecordFailure("20241125000003", 3)
	s.MarkProcessed("20241125000003")

	assert.Equal(t, 0, s.Stats().Failing)
}

func TestMarkSkippedDoesNotCountAsFailure(t *testing.T) {
	t.Parallel()

	s := New()
	s.MarkSkipped("20241125000004")
	assert.True(t, s.IsProcessed("20241125000004"))
	assert.False(t, s.RecordFailure("20241125000004", 1))

	st := s.Stats()
	assert.Equal(t, 0, st.Succeeded)
	assert.Equal(t, 1, st.Skipped)
	assert.Equal(t, 0, st.Failing)
	assert.Equal(t, 0, st.Errors)
}

func TestStatsSeparatesOutcomes(t *testing.T) {
	t.Parallel()

	s := New()
	s.MarkProcessed("a")
	s.MarkProcessed("b")
	s.MarkSkipped("c")
	s.RecordFailure("d", 5)
	s.RecordFailure("e", 1)

	st := s.Stats()
	assert.Equal(t, 2, st.Succeeded)
	assert.Equal(t, 1, st.Skipped)
	assert.Equal(t, 1, st.Failing)
	assert.Equal(t, 1, st.PermanentlyFailed)
	assert.Equal(t, 2, st.Errors)
}

func TestPromotionIsNotASuccess(t *testing.T) {
	t.Parallel()

	s := New()
	assert.True(t, s.RecordFailure("20241125000005", 1))
	assert.True(t, s.IsProcessed("20241125000005"))

	st := s.Stats()
	assert.Equal(t, 0, st.Succeeded)
	assert.Equal(t, 0, st.Skipped)
	assert.Equal(t, 0, st.Failing)
	assert.Equal(t, 1, st.PermanentlyFailed)
	assert.Equal(t, 1, st.Errors)
}

func TestErrorsCountEveryFailureEvent(t *testing.T) {
	t.Parallel()

	s := New()
	s.RecordFailure("20241125000006", 3)
	s.RecordFailure("20241125000006", 3)
	s.MarkProcessed("20241125000006")

	st := s.Stats()
	assert.Equal(t, 1, st.Succeeded)
	assert.Equal(t, 2, st.Errors)
	assert.Equal(t, 0, st.PermanentlyFailed)
}
