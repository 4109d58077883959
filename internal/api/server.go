// Package api exposes the orchestration operations over HTTP, one
// JSON endpoint per operation, mirroring the web UI's API routes.
package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/3cgajwdsuykk/discord-multi-manager/internal/dispatcher"
)

// Server is the HTTP front of the dispatcher.
type Server struct {
	logger     *zap.Logger
	dispatcher *dispatcher.Dispatcher
}

// NewServer creates the HTTP server surface.
func NewServer(logger *zap.Logger, d *dispatcher.Dispatcher) *Server {
	return &Server{logger: logger, dispatcher: d}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/discord/connect", s.handleConnect)
	mux.HandleFunc("POST /api/discord/disconnect", s.handleDisconnect)
	mux.HandleFunc("GET /api/discord/accounts", s.handleAccounts)
	mux.HandleFunc("GET /api/discord/channels", s.handleChannels)
	mux.HandleFunc("GET /api/discord/voice-channels", s.handleVoiceChannels)
	mux.HandleFunc("GET /api/discord/messages", s.handleMessages)
	mux.HandleFunc("POST /api/discord/send-message", s.handleSendMessage)
	mux.HandleFunc("POST /api/discord/join-voice", s.handleJoinVoice)
	mux.HandleFunc("POST /api/discord/leave-voice", s.handleLeaveVoice)
	mux.HandleFunc("POST /api/discord/play-audio", s.handlePlayAudio)
	mux.HandleFunc("POST /api/discord/stop-audio", s.handleStopAudio)

	return mux
}
