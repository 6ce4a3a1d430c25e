package call

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/voxgo-dev/voxgo/internal/agents"
	"github.com/voxgo-dev/voxgo/internal/provider/llm"
	"github.com/voxgo-dev/voxgo/internal/provider/speech"
	"github.com/voxgo-dev/voxgo/internal/route"
	"github.com/voxgo-dev/voxgo/pkg/config"
	"github.com/voxgo-dev/voxgo/pkg/observability"
	"github.com/voxgo-dev/voxgo/pkg/session"
)

// Spoken fallback prompts. These are fixed so the audio cache collapses
// them to one synthesis per provider/voice.
const (
	retryPrompt   = "Sorry, I didn't catch that. Could you say it again?"
	apologyPrompt = "I'm sorry, I'm having a little trouble right now. Could you say that again?"
	goodbyePrompt = "Thanks for calling. Goodbye."
	failurePrompt = "I'm sorry, something went wrong on our end. Please call back later. Goodbye."
)

// silenceKey is the session data key counting consecutive empty
// speech results.
const silenceKey = "silence_count"

// Instruction is the next action the telephony platform should take on
// a call: speak a prompt, then either listen for the next utterance or
// hang up.
type Instruction struct {
	// Text is what the agent says. Empty only for a bare hangup.
	Text string
	// Voice is the voice hint for the speaking provider.
	Voice string
	// Audio is the synthesized audio, nil when the native platform
	// voice should speak Text instead.
	Audio []byte
	// MIME is the audio content type when Audio is set.
	MIME string
	// Listen is true when the platform should gather the caller's next
	// utterance after speaking.
	Listen bool
	// Hangup is true when the call should end after speaking.
	Hangup bool
}

// Events consumed by the machine, one per inbound webhook.

// NewCallEvent announces a call reaching the platform.
type NewCallEvent struct {
	CallID    string
	From      string
	To        string
	Direction string
}

// SpeechEvent carries one speech-recognition result.
type SpeechEvent struct {
	CallID string
	Text   string
}

// StatusEvent carries a call lifecycle update.
type StatusEvent struct {
	CallID   string
	Status   string
	Duration time.Duration
}

// Dialer places outbound calls on the telephony platform.
type Dialer interface {
	Dial(ctx context.Context, to, from, callbackURL string) (callID string, err error)
}

// Completer produces the next assistant utterance for a channel.
// Satisfied by route.ModelRouter.
type Completer interface {
	Complete(ctx context.Context, channel, preferred string, req llm.Request) (*llm.Response, *route.Decision, error)
}

// Voice synthesizes speech for a preferred provider and voice.
// Satisfied by route.SpeechRouter.
type Voice interface {
	Synthesize(ctx context.Context, preferred, voice, text string) (*speech.Audio, *route.Decision, error)
}

// Machine drives a telephone call from ring to hangup. Events for the
// same call are serialized by a per-call mutex; events for different
// calls run concurrently.
type Machine struct {
	cfg      *config.Config
	agents   *agents.Registry
	sessions session.Store
	records  *RecordStore
	models   Completer
	voices   Voice
	dialer   Dialer

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewMachine wires the call state machine. dialer may be nil when
// outbound calling is not configured.
func NewMachine(cfg *config.Config, reg *agents.Registry, sessions session.Store, records *RecordStore, models Completer, voices Voice, dialer Dialer) *Machine {
	return &Machine{
		cfg:      cfg,
		agents:   reg,
		sessions: sessions,
		records:  records,
		models:   models,
		voices:   voices,
		dialer:   dialer,
		locks:    make(map[string]*sync.Mutex),
	}
}

// lockCall returns the mutex serializing events for one call id.
func (m *Machine) lockCall(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

// releaseCall drops the per-call mutex entry once the call is over.
func (m *Machine) releaseCall(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, id)
}

// HandleNewCall answers a ringing call: resolve the persona for the
// called number, register the record, and greet.
func (m *Machine) HandleNewCall(ctx context.Context, ev NewCallEvent) *Instruction {
	l := m.lockCall(ev.CallID)
	l.Lock()
	defer l.Unlock()

	direction := ev.Direction
	if direction == "" {
		direction = DirectionInbound
	}

	profile := m.agents.ResolveByNumber(ev.To, m.cfg.Agents.DefaultID)
	m.records.Register(ev.CallID, ev.From, ev.To, direction, profile.ID)
	m.records.UpdateStatus(ev.CallID, StatusInProgress, 0)
	observability.SetActiveCalls(m.records.ActiveCount())

	if _, err := m.sessions.GetOrCreate(ctx, session.ChannelVoice, ev.CallID); err != nil {
		log.Printf("[Call %s] session create failed: %v", ev.CallID, err)
		return m.speakFinal(ctx, profile, failurePrompt)
	}

	log.Printf("[Call %s] %s call from %s to %s answered by agent %s", ev.CallID, direction, ev.From, ev.To, profile.ID)
	return m.speakAndListen(ctx, profile, profile.Greeting)
}

// HandleSpeech consumes one recognized utterance and produces the next
// spoken reply. Empty speech twice in a row ends the call. Provider
// failures degrade to a spoken apology, never a raw error on the call.
func (m *Machine) HandleSpeech(ctx context.Context, ev SpeechEvent) *Instruction {
	l := m.lockCall(ev.CallID)
	l.Lock()
	defer l.Unlock()

	rec, ok := m.records.Get(ev.CallID)
	if !ok {
		// Speech for a call the store never saw: register a shell
		// record and session so the rest of the turn works, then
		// carry on. The silence counter lives in the session, so it
		// must exist here too.
		profile := m.agents.ResolveByNumber("", m.cfg.Agents.DefaultID)
		rec = m.records.Register(ev.CallID, "", "", DirectionInbound, profile.ID)
		if _, err := m.sessions.GetOrCreate(ctx, session.ChannelVoice, ev.CallID); err != nil {
			log.Printf("[Call %s] session create failed: %v", ev.CallID, err)
		}
	}
	profile, err := m.agents.Get(rec.AgentID)
	if err != nil {
		profile = m.agents.ResolveByNumber("", m.cfg.Agents.DefaultID)
	}

	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return m.handleSilence(ctx, ev.CallID, profile)
	}
	m.resetSilence(ctx, ev.CallID)

	reply, err := m.respond(ctx, rec, profile, text)
	if err != nil {
		log.Printf("[Call %s] model routing failed: %v", ev.CallID, err)
		return m.speakAndListen(ctx, profile, apologyPrompt)
	}

	m.records.AppendTranscript(ev.CallID, text, reply)
	m.appendSessionTurns(ctx, ev.CallID, text, reply)
	observability.RecordCallTurn()

	return m.speakAndListen(ctx, profile, reply)
}

// HandleStatus applies a lifecycle update. Status callbacks are a
// side channel: they touch status and duration only and emit no
// instruction, so an interleaved update can never corrupt a transcript.
func (m *Machine) HandleStatus(ctx context.Context, ev StatusEvent) {
	l := m.lockCall(ev.CallID)
	l.Lock()
	defer l.Unlock()

	rec := m.records.UpdateStatus(ev.CallID, ev.Status, ev.Duration)
	observability.SetActiveCalls(m.records.ActiveCount())

	if IsTerminalStatus(ev.Status) {
		direction := rec.Direction
		if direction == "" {
			direction = DirectionInbound
		}
		observability.RecordCall(direction, ev.Status)
		log.Printf("[Call %s] ended with status %s after %v", ev.CallID, ev.Status, rec.Duration)
		m.releaseCall(ev.CallID)
	}
}

// PlaceCall dials out to a number and registers the record so the
// platform's callbacks flow through the same inbound handlers.
func (m *Machine) PlaceCall(ctx context.Context, to, profileID string) (*Record, error) {
	if m.dialer == nil {
		return nil, fmt.Errorf("outbound calling is not configured")
	}
	profile, err := m.agents.Get(profileID)
	if err != nil {
		profile = m.agents.ResolveByNumber("", m.cfg.Agents.DefaultID)
	}

	callbackURL := strings.TrimRight(m.cfg.Call.PublicBaseURL, "/") + "/twilio/voice"
	callID, err := m.dialer.Dial(ctx, to, m.cfg.Telephony.FromNumber, callbackURL)
	if err != nil {
		return nil, fmt.Errorf("place outbound call: %w", err)
	}

	rec := m.records.Register(callID, m.cfg.Telephony.FromNumber, to, DirectionOutbound, profile.ID)
	observability.SetActiveCalls(m.records.ActiveCount())
	log.Printf("[Call %s] outbound call placed to %s as agent %s", callID, to, profile.ID)
	return rec, nil
}

// respond builds the model prompt from the persona and the bounded
// prior transcript, routes it, and sanitizes the reply for speech.
func (m *Machine) respond(ctx context.Context, rec *Record, profile agents.Profile, utterance string) (string, error) {
	messages := []llm.Message{
		{Role: "system", Content: profile.Instructions},
		{Role: "assistant", Content: profile.Greeting},
	}
	window := m.cfg.Routing.HistoryWindow
	turns := rec.Transcript
	if window > 0 && len(turns) > window {
		turns = turns[len(turns)-window:]
	}
	for _, t := range turns {
		messages = append(messages,
			llm.Message{Role: "user", Content: t.Utterance},
			llm.Message{Role: "assistant", Content: t.Reply},
		)
	}
	messages = append(messages, llm.Message{Role: "user", Content: utterance})

	resp, _, err := m.models.Complete(ctx, session.ChannelVoice, "", llm.Request{Messages: messages})
	if err != nil {
		return "", err
	}

	reply := SanitizeForSpeech(resp.Content, m.cfg.Call.SpeechMaxChars)
	if reply == "" {
		return "", fmt.Errorf("model %s returned an unspeakable reply", resp.Provider)
	}
	return reply, nil
}

// handleSilence plays the retry prompt once; a second consecutive empty
// result says goodbye and hangs up.
func (m *Machine) handleSilence(ctx context.Context, callID string, profile agents.Profile) *Instruction {
	count := 1
	if sess, err := m.sessions.Get(ctx, session.ChannelVoice, callID); err == nil {
		if prev, err := strconv.Atoi(sess.Data[silenceKey]); err == nil {
			count = prev + 1
		}
	}
	if count >= 2 {
		log.Printf("[Call %s] no input twice, hanging up", callID)
		return m.speakFinal(ctx, profile, goodbyePrompt)
	}
	_ = m.sessions.SetData(ctx, session.ChannelVoice, callID, silenceKey, strconv.Itoa(count))
	return m.speakAndListen(ctx, profile, retryPrompt)
}

func (m *Machine) resetSilence(ctx context.Context, callID string) {
	_ = m.sessions.SetData(ctx, session.ChannelVoice, callID, silenceKey, "0")
}

func (m *Machine) appendSessionTurns(ctx context.Context, callID, utterance, reply string) {
	now := time.Now()
	_ = m.sessions.Append(ctx, session.ChannelVoice, callID, session.Turn{Role: "user", Text: utterance, Timestamp: now})
	_ = m.sessions.Append(ctx, session.ChannelVoice, callID, session.Turn{Role: "assistant", Text: reply, Timestamp: now})
}

// speakAndListen synthesizes text and instructs the platform to play
// it, then gather the next utterance. Synthesis failure falls back to
// the native platform voice so the caller never hears silence.
func (m *Machine) speakAndListen(ctx context.Context, profile agents.Profile, text string) *Instruction {
	audio := m.synthesize(ctx, profile, text)
	instr := &Instruction{Text: text, Voice: profile.Voice, Listen: true}
	fillAudio(instr, audio)
	return instr
}

// speakFinal synthesizes a last prompt and hangs up after it.
func (m *Machine) speakFinal(ctx context.Context, profile agents.Profile, text string) *Instruction {
	audio := m.synthesize(ctx, profile, text)
	instr := &Instruction{Text: text, Voice: profile.Voice, Hangup: true}
	fillAudio(instr, audio)
	return instr
}

func (m *Machine) synthesize(ctx context.Context, profile agents.Profile, text string) *speech.Audio {
	audio, _, err := m.voices.Synthesize(ctx, "", profile.Voice, text)
	if err != nil {
		log.Printf("[Call] speech routing failed, using platform voice: %v", err)
		return nil
	}
	return audio
}

func fillAudio(instr *Instruction, audio *speech.Audio) {
	if audio == nil || len(audio.Data) == 0 {
		// Native provider or synthesis failure: the platform speaks
		// Text with its own voice.
		if audio != nil && audio.Voice != "" {
			instr.Voice = audio.Voice
		}
		return
	}
	instr.Audio = audio.Data
	instr.MIME = audio.MIME
	instr.Voice = audio.Voice
}
