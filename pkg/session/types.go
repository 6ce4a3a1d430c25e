// Package session provides per-conversation state for Voxgo channels.
// A session is keyed by (channel, identity) and survives across the
// independent webhook events of one conversation. Sessions are created
// lazily and evicted only by the inactivity sweep.
package session

import (
	"time"
)

// Channel names a conversational surface.
const (
	// ChannelVoice is the telephone-call channel.
	ChannelVoice = "voice"
	// ChannelChat is the text-chat channel.
	ChannelChat = "chat"
)

// Turn is one utterance in a conversation transcript.
type Turn struct {
	// Role is the speaker role: "user" or "assistant".
	Role string `json:"role"`
	// Text is the utterance content.
	Text string `json:"text"`
	// Timestamp is when the turn was recorded.
	Timestamp time.Time `json:"timestamp"`
}

// Session holds the conversation state for one (channel, identity) pair.
type Session struct {
	// Channel tags the conversational surface ("voice", "chat").
	Channel string `json:"channel"`
	// Identity is the external identity key (phone number, chat id).
	Identity string `json:"identity"`
	// Step is the current conversation step label.
	Step string `json:"step"`
	// Data holds key/value facts collected from the conversation.
	Data map[string]string `json:"data"`
	// Transcript is the ordered list of turns.
	Transcript []Turn `json:"transcript"`
	// LastActive is updated on every touch or mutation.
	LastActive time.Time `json:"lastActive"`
}

// StepStart is the step label of a freshly created session.
const StepStart = "start"

// Key returns the store key for a (channel, identity) pair.
func Key(channel, identity string) string {
	return channel + ":" + identity
}

// clone returns a deep copy so callers never observe a torn session.
func (s *Session) clone() *Session {
	cp := *s
	cp.Data = make(map[string]string, len(s.Data))
	for k, v := range s.Data {
		cp.Data[k] = v
	}
	cp.Transcript = append([]Turn(nil), s.Transcript...)
	return &cp
}
