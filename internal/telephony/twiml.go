package telephony

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/voxgo-dev/voxgo/internal/call"
)

// RenderOptions parameterize TwiML rendering for one response.
type RenderOptions struct {
	// ActionURL receives the POST with the gathered speech result.
	ActionURL string
	// AudioURL plays synthesized audio instead of the platform voice.
	// Empty means speak Instruction.Text with <Say>.
	AudioURL string
	// Language is the speech-recognition language hint.
	Language string
}

// RenderTwiML turns a call instruction into the TwiML document the
// telephony platform executes. The speak verb is nested inside the
// gather so the caller can barge in; actionOnEmptyResult makes a silent
// gather still post back, which is how the no-input branch fires.
func RenderTwiML(instr *call.Instruction, opts RenderOptions) string {
	lang := opts.Language
	if lang == "" {
		lang = "en-US"
	}

	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString("<Response>")

	speak := speakVerb(instr, opts.AudioURL)
	switch {
	case instr.Listen:
		fmt.Fprintf(&b,
			`<Gather input="speech" action="%s" method="POST" speechTimeout="auto" language="%s" actionOnEmptyResult="true">%s</Gather>`,
			escape(opts.ActionURL), escape(lang), speak)
	case instr.Hangup:
		b.WriteString(speak)
		b.WriteString("<Hangup/>")
	default:
		b.WriteString(speak)
	}

	b.WriteString("</Response>")
	return b.String()
}

// RenderHangup is the bare-termination document.
func RenderHangup() string {
	return xml.Header + "<Response><Hangup/></Response>"
}

func speakVerb(instr *call.Instruction, audioURL string) string {
	if instr.Text == "" && audioURL == "" {
		return ""
	}
	if audioURL != "" {
		return "<Play>" + escape(audioURL) + "</Play>"
	}
	voice := instr.Voice
	if voice == "" {
		voice = "Polly.Joanna"
	}
	return fmt.Sprintf(`<Say voice="%s">%s</Say>`, escape(voice), escape(instr.Text))
}

func escape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
