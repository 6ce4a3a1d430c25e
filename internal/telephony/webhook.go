package telephony

import (
	"net/http"
	"strconv"
	"time"

	"github.com/voxgo-dev/voxgo/internal/call"
)

// Webhook form field names used by the platform.
const (
	fieldCallSID      = "CallSid"
	fieldFrom         = "From"
	fieldTo           = "To"
	fieldDirection    = "Direction"
	fieldSpeechResult = "SpeechResult"
	fieldCallStatus   = "CallStatus"
	fieldCallDuration = "CallDuration"
)

// ParseNewCall extracts a new-call event from a voice webhook request.
func ParseNewCall(r *http.Request) call.NewCallEvent {
	_ = r.ParseForm()
	direction := call.DirectionInbound
	if d := r.PostFormValue(fieldDirection); d != "" && d != "inbound" {
		direction = call.DirectionOutbound
	}
	return call.NewCallEvent{
		CallID:    r.PostFormValue(fieldCallSID),
		From:      r.PostFormValue(fieldFrom),
		To:        r.PostFormValue(fieldTo),
		Direction: direction,
	}
}

// ParseSpeech extracts a speech-result event from a gather callback.
func ParseSpeech(r *http.Request) call.SpeechEvent {
	_ = r.ParseForm()
	return call.SpeechEvent{
		CallID: r.PostFormValue(fieldCallSID),
		Text:   r.PostFormValue(fieldSpeechResult),
	}
}

// ParseStatus extracts a status event from a status callback.
// CallDuration arrives as whole seconds.
func ParseStatus(r *http.Request) call.StatusEvent {
	_ = r.ParseForm()
	ev := call.StatusEvent{
		CallID: r.PostFormValue(fieldCallSID),
		Status: r.PostFormValue(fieldCallStatus),
	}
	if secs, err := strconv.Atoi(r.PostFormValue(fieldCallDuration)); err == nil {
		ev.Duration = time.Duration(secs) * time.Second
	}
	return ev
}
