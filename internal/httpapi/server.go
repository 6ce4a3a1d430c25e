// Package httpapi mounts the public HTTP surface: the telephony
// webhooks, the chat webhook, outbound-call placement, and the agent
// profile admin API. Webhook handlers always answer 200 with valid
// TwiML so the platform never plays its own error message to a caller.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/voxgo-dev/voxgo/internal/agents"
	"github.com/voxgo-dev/voxgo/internal/call"
	"github.com/voxgo-dev/voxgo/internal/chat"
	"github.com/voxgo-dev/voxgo/internal/telephony"
	"github.com/voxgo-dev/voxgo/pkg/config"
	"github.com/voxgo-dev/voxgo/pkg/observability"
)

// Server is the public HTTP API.
type Server struct {
	cfg     *config.Config
	machine *call.Machine
	chat    *chat.Adapter
	agents  *agents.Registry
	records *call.RecordStore
	stash   *audioStash
	limiter *RateLimiter

	httpServer *http.Server
}

// NewServer wires the HTTP surface.
func NewServer(cfg *config.Config, machine *call.Machine, chatAdapter *chat.Adapter, reg *agents.Registry, records *call.RecordStore) *Server {
	return &Server{
		cfg:     cfg,
		machine: machine,
		chat:    chatAdapter,
		agents:  reg,
		records: records,
		stash:   newAudioStash(5 * time.Minute),
		limiter: NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst),
	}
}

// Handler builds the routed handler, for the server and for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /twilio/voice", s.handleVoice)
	mux.HandleFunc("POST /twilio/speech", s.handleSpeech)
	mux.HandleFunc("POST /twilio/status", s.handleStatus)
	mux.HandleFunc("GET /audio/{id}", s.handleAudio)

	mux.HandleFunc("POST /calls/outbound", s.handleOutbound)
	mux.HandleFunc("GET /calls", s.handleListCalls)
	mux.HandleFunc("GET /calls/{id}", s.handleGetCall)

	mux.HandleFunc("POST /chat/inbound", s.handleChat)

	mux.HandleFunc("GET /agents", s.handleListAgents)
	mux.HandleFunc("POST /agents", s.handleCreateAgent)
	mux.HandleFunc("GET /agents/{id}", s.handleGetAgent)
	mux.HandleFunc("PUT /agents/{id}", s.handleUpdateAgent)
	mux.HandleFunc("DELETE /agents/{id}", s.handleDeleteAgent)

	return s.limiter.Middleware(metricsMiddleware(mux))
}

// Start runs the HTTP server until it fails or is shut down.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Telephony webhooks

func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	ev := telephony.ParseNewCall(r)
	if ev.CallID == "" {
		s.writeTwiML(w, telephony.RenderHangup())
		return
	}
	instr := s.machine.HandleNewCall(r.Context(), ev)
	s.writeInstruction(w, instr)
}

func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	ev := telephony.ParseSpeech(r)
	if ev.CallID == "" {
		s.writeTwiML(w, telephony.RenderHangup())
		return
	}
	instr := s.machine.HandleSpeech(r.Context(), ev)
	s.writeInstruction(w, instr)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ev := telephony.ParseStatus(r)
	if ev.CallID != "" {
		s.machine.HandleStatus(r.Context(), ev)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	data, mime, ok := s.stash.Get(r.PathValue("id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", mime)
	_, _ = w.Write(data)
}

// writeInstruction renders a call instruction as TwiML, stashing
// synthesized audio behind a one-shot Play URL.
func (s *Server) writeInstruction(w http.ResponseWriter, instr *call.Instruction) {
	opts := telephony.RenderOptions{ActionURL: s.publicURL("/twilio/speech")}
	if len(instr.Audio) > 0 {
		id := s.stash.Put(instr.Audio, instr.MIME)
		opts.AudioURL = s.publicURL("/audio/" + id)
	}
	s.writeTwiML(w, telephony.RenderTwiML(instr, opts))
}

func (s *Server) writeTwiML(w http.ResponseWriter, doc string) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

// publicURL prefixes a path with the configured public base address.
// Without one, relative paths are returned; the platform resolves them
// against the webhook URL it called.
func (s *Server) publicURL(path string) string {
	base := strings.TrimRight(s.cfg.Call.PublicBaseURL, "/")
	return base + path
}

// Outbound calls

type outboundRequest struct {
	To      string `json:"to"`
	AgentID string `json:"agent_id"`
}

func (s *Server) handleOutbound(w http.ResponseWriter, r *http.Request) {
	var req outboundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.To == "" {
		writeError(w, http.StatusBadRequest, "a destination number is required")
		return
	}

	rec, err := s.machine.PlaceCall(r.Context(), req.To, req.AgentID)
	if err != nil {
		log.Printf("[API] outbound call to %s failed: %v", req.To, err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleListCalls(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.records.List())
}

func (s *Server) handleGetCall(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.records.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "call not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Chat channel

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var msg chat.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid message body")
		return
	}

	reply, err := s.chat.HandleMessage(r.Context(), msg)
	if err != nil {
		log.Printf("[API] chat message from %s failed: %v", msg.Sender, err)
		writeError(w, http.StatusBadGateway, "unable to answer right now")
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// Agent profile admin

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.agents.List())
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	p, err := s.agents.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "agent profile not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var p agents.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.Name == "" {
		writeError(w, http.StatusBadRequest, "a profile name is required")
		return
	}

	created, err := s.agents.Create(p)
	if errors.Is(err, agents.ErrProfileExists) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	var fields agents.Profile
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid profile body")
		return
	}

	updated, err := s.agents.Update(r.PathValue("id"), func(p *agents.Profile) {
		if fields.Name != "" {
			p.Name = fields.Name
		}
		if fields.Description != "" {
			p.Description = fields.Description
		}
		if fields.Greeting != "" {
			p.Greeting = fields.Greeting
		}
		if fields.Instructions != "" {
			p.Instructions = fields.Instructions
		}
		if fields.Voice != "" {
			p.Voice = fields.Voice
		}
		if fields.PhoneNumber != "" {
			p.PhoneNumber = fields.PhoneNumber
		}
		p.Active = fields.Active
	})
	if errors.Is(err, agents.ErrProfileNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	err := s.agents.Delete(r.PathValue("id"))
	switch {
	case errors.Is(err, agents.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, agents.ErrLastProfile):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// Helpers

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// metricsMiddleware records request counts and latency per route.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		observability.RecordHTTPRequest(r.Method, r.URL.Path, fmt.Sprintf("%d", rec.status), time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
