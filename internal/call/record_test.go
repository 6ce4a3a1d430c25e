package call

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIsIdempotent(t *testing.T) {
	s := NewRecordStore(10)

	first := s.Register("CA123", "+15550001", "+15550002", DirectionInbound, "assistant")
	second := s.Register("CA123", "+19990000", "+18880000", DirectionOutbound, "other")

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "+15550001", second.From, "retry must not overwrite the original fields")
	assert.Equal(t, DirectionInbound, second.Direction)
	assert.Len(t, s.List(), 1)
}

func TestUpdateStatusCreatesMinimalRecord(t *testing.T) {
	s := NewRecordStore(10)

	// Status callback for a call the store never saw.
	rec := s.UpdateStatus("CA999", StatusCompleted, 42*time.Second)
	assert.Equal(t, "CA999", rec.ID)
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, 42*time.Second, rec.Duration)

	got, ok := s.Get("CA999")
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, got.Status)
}

func TestTerminalStatusIsSticky(t *testing.T) {
	s := NewRecordStore(10)
	s.Register("CA1", "a", "b", DirectionInbound, "assistant")

	s.UpdateStatus("CA1", StatusCompleted, 0)
	rec := s.UpdateStatus("CA1", StatusInProgress, 30*time.Second)

	assert.Equal(t, StatusCompleted, rec.Status, "terminal status must not revert")
	assert.Equal(t, 30*time.Second, rec.Duration, "late duration updates still apply")
}

func TestTranscriptOrderSurvivesConcurrentStatusUpdates(t *testing.T) {
	s := NewRecordStore(10)
	s.Register("CA1", "a", "b", DirectionInbound, "assistant")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			s.UpdateStatus("CA1", StatusInProgress, time.Duration(i)*time.Second)
		}
	}()

	s.AppendTranscript("CA1", "u1", "r1")
	s.AppendTranscript("CA1", "u2", "r2")
	wg.Wait()

	rec, ok := s.Get("CA1")
	require.True(t, ok)
	require.Len(t, rec.Transcript, 2)
	assert.Equal(t, "u1", rec.Transcript[0].Utterance)
	assert.Equal(t, "r1", rec.Transcript[0].Reply)
	assert.Equal(t, "u2", rec.Transcript[1].Utterance)
	assert.Equal(t, "r2", rec.Transcript[1].Reply)
}

func TestAppendTranscriptUnknownCall(t *testing.T) {
	s := NewRecordStore(10)
	assert.False(t, s.AppendTranscript("nope", "u", "r"))
}

func TestBoundedRetentionDropsOldest(t *testing.T) {
	s := NewRecordStore(3)
	s.Register("CA1", "", "", DirectionInbound, "a")
	s.Register("CA2", "", "", DirectionInbound, "a")
	s.Register("CA3", "", "", DirectionInbound, "a")
	s.Register("CA4", "", "", DirectionInbound, "a")

	_, ok := s.Get("CA1")
	assert.False(t, ok, "oldest record must be dropped past the cap")
	_, ok = s.Get("CA4")
	assert.True(t, ok)
	assert.Len(t, s.List(), 3)
}

func TestActiveCount(t *testing.T) {
	s := NewRecordStore(10)
	s.Register("CA1", "", "", DirectionInbound, "a")
	s.Register("CA2", "", "", DirectionInbound, "a")
	s.UpdateStatus("CA2", StatusCompleted, 0)

	assert.Equal(t, 1, s.ActiveCount())
}

func TestTranscriptText(t *testing.T) {
	text := TranscriptText([]Turn{
		{Utterance: "hello", Reply: "hi there"},
	})
	assert.Equal(t, "Caller: hello\nAgent: hi there\n", text)
}
