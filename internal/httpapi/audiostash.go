package httpapi

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// audioStash holds synthesized audio for one fetch by the telephony
// platform. Entries are short-lived: the platform fetches the Play URL
// within seconds of receiving the TwiML.
type audioStash struct {
	mu      sync.Mutex
	entries map[string]stashEntry
	ttl     time.Duration
	now     func() time.Time
}

type stashEntry struct {
	data    []byte
	mime    string
	expires time.Time
}

func newAudioStash(ttl time.Duration) *audioStash {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &audioStash{
		entries: make(map[string]stashEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Put stores audio and returns its id. Expired entries are pruned on
// the way in so the stash stays bounded by live traffic.
func (s *audioStash) Put(data []byte, mime string) string {
	id := uuid.New().String()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, e := range s.entries {
		if now.After(e.expires) {
			delete(s.entries, k)
		}
	}
	s.entries[id] = stashEntry{
		data:    data,
		mime:    mime,
		expires: now.Add(s.ttl),
	}
	return id
}

// Get returns the audio for an id, or ok=false when missing or expired.
func (s *audioStash) Get(id string) ([]byte, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || s.now().After(e.expires) {
		return nil, "", false
	}
	return e.data, e.mime, true
}
