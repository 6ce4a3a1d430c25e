// Package call holds the telephone-call state machine and the call
// record store behind it. Each webhook event for a call arrives as an
// independent HTTP request; the record store is what ties them back
// into one conversation.
package call

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Call status values, mirroring the telephony platform's lifecycle.
const (
	StatusQueued     = "queued"
	StatusRinging    = "ringing"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusBusy       = "busy"
	StatusFailed     = "failed"
	StatusNoAnswer   = "no-answer"
	StatusCanceled   = "canceled"
)

// Call directions.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// IsTerminalStatus reports whether a status ends the call lifecycle.
func IsTerminalStatus(status string) bool {
	switch status {
	case StatusCompleted, StatusBusy, StatusFailed, StatusNoAnswer, StatusCanceled:
		return true
	}
	return false
}

// Turn is one utterance-and-reply pair in a call transcript.
type Turn struct {
	Utterance string    `json:"utterance"`
	Reply     string    `json:"reply"`
	Timestamp time.Time `json:"timestamp"`
}

// Record is the persistent view of one telephone call.
type Record struct {
	ID         string        `json:"id"`
	From       string        `json:"from"`
	To         string        `json:"to"`
	Direction  string        `json:"direction"`
	Status     string        `json:"status"`
	AgentID    string        `json:"agent_id"`
	Transcript []Turn        `json:"transcript"`
	Duration   time.Duration `json:"duration"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// clone returns a deep copy so callers never share transcript slices
// with the store.
func (r *Record) clone() *Record {
	c := *r
	c.Transcript = append([]Turn(nil), r.Transcript...)
	return &c
}

// RecordStore keeps call records in memory with bounded retention.
// The oldest records are dropped once the cap is exceeded.
type RecordStore struct {
	mu         sync.RWMutex
	records    map[string]*Record
	order      []string
	maxRecords int
	now        func() time.Time
}

// NewRecordStore creates a store retaining at most maxRecords calls.
func NewRecordStore(maxRecords int) *RecordStore {
	if maxRecords <= 0 {
		maxRecords = 1000
	}
	return &RecordStore{
		records:    make(map[string]*Record),
		maxRecords: maxRecords,
		now:        time.Now,
	}
}

// Register creates a record for a new call. Registering an id that
// already exists is a no-op returning the existing record: the
// telephony platform retries webhooks, and a retry must not produce a
// duplicate call.
func (s *RecordStore) Register(id, from, to, direction, agentID string) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[id]; ok {
		return existing.clone()
	}

	now := s.now()
	r := &Record{
		ID:        id,
		From:      from,
		To:        to,
		Direction: direction,
		Status:    StatusRinging,
		AgentID:   agentID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.insert(id, r)
	return r.clone()
}

// UpdateStatus sets the call status and duration, creating a minimal
// record if the id has never been seen — status callbacks can arrive
// before the new-call event under out-of-order webhook delivery. Once a
// record is terminal, only the duration may still change.
func (s *RecordStore) UpdateStatus(id, status string, duration time.Duration) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		now := s.now()
		r = &Record{
			ID:        id,
			Status:    status,
			CreatedAt: now,
		}
		s.insert(id, r)
	} else if !IsTerminalStatus(r.Status) {
		r.Status = status
	}
	if duration > 0 {
		r.Duration = duration
	}
	r.UpdatedAt = s.now()
	return r.clone()
}

// AppendTranscript appends one turn to a call's transcript. Returns
// false for an unknown id.
func (s *RecordStore) AppendTranscript(id, utterance, reply string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return false
	}
	r.Transcript = append(r.Transcript, Turn{
		Utterance: utterance,
		Reply:     reply,
		Timestamp: s.now(),
	})
	r.UpdatedAt = s.now()
	return true
}

// Get returns the record for a call id, or ok=false.
func (s *RecordStore) Get(id string) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil, false
	}
	return r.clone(), true
}

// List returns all records, newest first.
func (s *RecordStore) List() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// ActiveCount returns the number of non-terminal calls.
func (s *RecordStore) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, r := range s.records {
		if !IsTerminalStatus(r.Status) {
			n++
		}
	}
	return n
}

// insert adds a record under the retention cap. Callers hold s.mu.
func (s *RecordStore) insert(id string, r *Record) {
	for len(s.order) >= s.maxRecords {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.records, oldest)
	}
	s.order = append(s.order, id)
	s.records[id] = r
}

// TranscriptText flattens a transcript into readable lines, used for
// reporting surfaces that want plain text.
func TranscriptText(turns []Turn) string {
	var b strings.Builder
	for _, t := range turns {
		b.WriteString("Caller: ")
		b.WriteString(t.Utterance)
		b.WriteString("\n")
		b.WriteString("Agent: ")
		b.WriteString(t.Reply)
		b.WriteString("\n")
	}
	return b.String()
}
