package audiocache

import (
	"bytes"
	"testing"
	"time"
)

func newTestCache(t *testing.T, opts Options) *Cache {
	t.Helper()
	c, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestPutGetRoundTrip(t *testing.T) {
	c := newTestCache(t, Options{TTL: time.Hour, FlushInterval: time.Hour})

	audio := []byte{0xff, 0xf3, 0x01, 0x02}
	c.Put("elevenlabs", "rachel", "hello", audio)

	got, ok := c.Get("elevenlabs", "rachel", "hello")
	if !ok {
		t.Fatal("expected a cache hit")
	}
	if !bytes.Equal(got, audio) {
		t.Errorf("cached audio differs: got %v, want %v", got, audio)
	}
}

func TestKeyIsProviderVoiceTextTriple(t *testing.T) {
	c := newTestCache(t, Options{TTL: time.Hour, FlushInterval: time.Hour})
	c.Put("elevenlabs", "rachel", "hello", []byte("a"))

	if _, ok := c.Get("openai", "rachel", "hello"); ok {
		t.Error("different provider must miss")
	}
	if _, ok := c.Get("elevenlabs", "adam", "hello"); ok {
		t.Error("different voice must miss")
	}
	if _, ok := c.Get("elevenlabs", "rachel", "goodbye"); ok {
		t.Error("different text must miss")
	}
}

func TestGetRejectsStaleEntry(t *testing.T) {
	c := newTestCache(t, Options{TTL: time.Minute, FlushInterval: time.Hour})

	current := time.Now()
	c.now = func() time.Time { return current }

	c.Put("p", "v", "t", []byte("audio"))

	current = current.Add(2 * time.Minute)
	if _, ok := c.Get("p", "v", "t"); ok {
		t.Error("entry older than the TTL must be a miss even before the flush")
	}
}

func TestFlushClearsEverything(t *testing.T) {
	c := newTestCache(t, Options{TTL: time.Hour, FlushInterval: time.Hour})
	c.Put("p", "v", "one", []byte("1"))
	c.Put("p", "v", "two", []byte("2"))

	if n := c.Flush(); n != 2 {
		t.Errorf("Flush returned %d, want 2", n)
	}
	if _, ok := c.Get("p", "v", "one"); ok {
		t.Error("expected a miss after flush")
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d after flush, want 0", c.Len())
	}
}

func TestMaxEntriesEvictsOldest(t *testing.T) {
	c := newTestCache(t, Options{TTL: time.Hour, FlushInterval: time.Hour, MaxEntries: 2})

	c.Put("p", "v", "first", []byte("1"))
	c.Put("p", "v", "second", []byte("2"))
	c.Put("p", "v", "third", []byte("3"))

	if _, ok := c.Get("p", "v", "first"); ok {
		t.Error("oldest entry must be evicted at the size bound")
	}
	if _, ok := c.Get("p", "v", "third"); !ok {
		t.Error("newest entry must survive")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestPutCopiesData(t *testing.T) {
	c := newTestCache(t, Options{TTL: time.Hour, FlushInterval: time.Hour})

	audio := []byte("original")
	c.Put("p", "v", "t", audio)
	audio[0] = 'X'

	got, ok := c.Get("p", "v", "t")
	if !ok {
		t.Fatal("expected a hit")
	}
	if string(got) != "original" {
		t.Errorf("cache shares the caller's slice: got %q", got)
	}
}

func TestEmptyDataIsNotCached(t *testing.T) {
	c := newTestCache(t, Options{TTL: time.Hour, FlushInterval: time.Hour})
	c.Put("p", "v", "t", nil)

	if _, ok := c.Get("p", "v", "t"); ok {
		t.Error("empty audio must not be cached")
	}
}
