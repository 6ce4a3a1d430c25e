// Package agents manages the named voice-agent personas: greeting,
// system instructions, voice, and optional phone-number binding.
package agents

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Common errors for registry operations.
var (
	// ErrProfileNotFound is returned when a profile doesn't exist.
	ErrProfileNotFound = errors.New("agent profile not found")
	// ErrLastProfile is returned when deleting would empty the registry.
	ErrLastProfile = errors.New("cannot delete the last agent profile")
	// ErrProfileExists is returned when creating a duplicate id.
	ErrProfileExists = errors.New("agent profile already exists")
)

// Profile is a named agent persona.
type Profile struct {
	// ID is the unique profile identifier.
	ID string `yaml:"id" json:"id"`
	// Name is the display name.
	Name string `yaml:"name" json:"name"`
	// Description summarizes the persona.
	Description string `yaml:"description" json:"description"`
	// Greeting is spoken when a call is answered.
	Greeting string `yaml:"greeting" json:"greeting"`
	// Instructions is the system prompt: persona plus behavioral constraints.
	Instructions string `yaml:"instructions" json:"instructions"`
	// Voice is the speech-synthesis voice identifier.
	Voice string `yaml:"voice" json:"voice"`
	// PhoneNumber binds the profile to an inbound number (optional).
	PhoneNumber string `yaml:"phone_number" json:"phoneNumber,omitempty"`
	// Active marks the profile as usable.
	Active bool `yaml:"active" json:"active"`
	// CreatedAt is when the profile was created.
	CreatedAt time.Time `yaml:"created_at" json:"createdAt"`
	// UpdatedAt is when the profile was last modified.
	UpdatedAt time.Time `yaml:"updated_at" json:"updatedAt"`
}

// ProfileStore persists profiles. Implementations must write the full
// profile set atomically.
type ProfileStore interface {
	// Load reads all persisted profiles. A missing file yields an
	// empty slice, not an error.
	Load() ([]Profile, error)

	// Save writes the full profile set.
	Save(profiles []Profile) error
}

// Registry holds the in-memory profile view backed by a ProfileStore.
// Mutations persist first, then update the view, so readers always see
// persisted state (read-your-writes).
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
	store    ProfileStore
}

// NewRegistry creates a registry, loading persisted profiles and seeding
// the given defaults when the store is empty. The registry is never
// empty after NewRegistry returns.
func NewRegistry(store ProfileStore, seed []Profile) (*Registry, error) {
	r := &Registry{
		profiles: make(map[string]*Profile),
		store:    store,
	}

	loaded, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load agent profiles: %w", err)
	}
	if len(loaded) == 0 {
		loaded = seed
		if len(loaded) == 0 {
			loaded = []Profile{defaultProfile()}
		}
		if err := store.Save(loaded); err != nil {
			return nil, fmt.Errorf("seed agent profiles: %w", err)
		}
	}

	now := time.Now().UTC()
	for i := range loaded {
		p := loaded[i]
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		if p.UpdatedAt.IsZero() {
			p.UpdatedAt = now
		}
		r.profiles[p.ID] = &p
	}
	return r, nil
}

// defaultProfile is seeded when neither the store nor the configuration
// provides any profile.
func defaultProfile() Profile {
	return Profile{
		ID:           "assistant",
		Name:         "Assistant",
		Description:  "General-purpose voice assistant",
		Greeting:     "Hello! How can I help you today?",
		Instructions: "You are a friendly, concise voice assistant. Keep answers short and conversational.",
		Voice:        "rachel",
		Active:       true,
	}
}

// List returns all profiles sorted by creation time.
func (r *Registry) List() []Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Get returns a profile by id.
func (r *Registry) Get(id string) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[id]
	if !ok {
		return Profile{}, ErrProfileNotFound
	}
	return *p, nil
}

// ResolveByNumber picks the profile that answers calledNumber.
// Priority: exact phone-number binding, then the configured default id,
// then the first profile. The registry is never empty, so resolution
// always succeeds.
func (r *Registry) ResolveByNumber(calledNumber, defaultID string) Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	number := strings.TrimSpace(calledNumber)
	if number != "" {
		for _, p := range r.profiles {
			if p.Active && p.PhoneNumber == number {
				return *p
			}
		}
	}

	if p, ok := r.profiles[defaultID]; ok {
		return *p
	}

	return r.firstLocked()
}

// firstLocked returns the oldest profile. Callers hold r.mu.
func (r *Registry) firstLocked() Profile {
	var first *Profile
	for _, p := range r.profiles {
		if first == nil || p.CreatedAt.Before(first.CreatedAt) ||
			(p.CreatedAt.Equal(first.CreatedAt) && p.ID < first.ID) {
			first = p
		}
	}
	return *first
}

// Create adds a new profile, persisting before updating the view.
func (r *Registry) Create(p Profile) (Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if _, dup := r.profiles[p.ID]; dup {
		return Profile{}, ErrProfileExists
	}

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	next := r.snapshotLocked()
	next = append(next, p)
	if err := r.store.Save(next); err != nil {
		return Profile{}, fmt.Errorf("persist agent profiles: %w", err)
	}

	r.profiles[p.ID] = &p
	return p, nil
}

// Update modifies an existing profile, persisting before updating the view.
func (r *Registry) Update(id string, fn func(*Profile)) (Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.profiles[id]
	if !ok {
		return Profile{}, ErrProfileNotFound
	}

	updated := *existing
	fn(&updated)
	updated.ID = id
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()

	next := make([]Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		if p.ID == id {
			next = append(next, updated)
		} else {
			next = append(next, *p)
		}
	}
	if err := r.store.Save(next); err != nil {
		return Profile{}, fmt.Errorf("persist agent profiles: %w", err)
	}

	r.profiles[id] = &updated
	return updated, nil
}

// Delete removes a profile. Deleting the last remaining profile is
// rejected with ErrLastProfile and the registry is unchanged.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.profiles[id]; !ok {
		return ErrProfileNotFound
	}
	if len(r.profiles) == 1 {
		return ErrLastProfile
	}

	next := make([]Profile, 0, len(r.profiles)-1)
	for _, p := range r.profiles {
		if p.ID != id {
			next = append(next, *p)
		}
	}
	if err := r.store.Save(next); err != nil {
		return fmt.Errorf("persist agent profiles: %w", err)
	}

	delete(r.profiles, id)
	return nil
}

func (r *Registry) snapshotLocked() []Profile {
	out := make([]Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, *p)
	}
	return out
}
