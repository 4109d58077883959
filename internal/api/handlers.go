package api

import (
	"net/http"
	"time"

	"github.com/3cgajwdsuykk/discord-multi-manager/internal/dispatcher"
	"github.com/3cgajwdsuykk/discord-multi-manager/internal/gateway"
)

type guildPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

type connectPayload struct {
	ID            string         `json:"id"`
	Username      string         `json:"username"`
	Discriminator string         `json:"discriminator"`
	Avatar        string         `json:"avatar"`
	Guilds        []guildPayload `json:"guilds"`
}

type channelPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

type authorPayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

type messagePayload struct {
	ID        string        `json:"id"`
	Content   string        `json:"content"`
	Timestamp string        `json:"timestamp"`
	Author    authorPayload `json:"author"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req dispatcher.ConnectRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	info, err := s.dispatcher.Connect(r.Context(), req)
	if err != nil {
		s.writeError(w, err)

		return
	}

	guilds := make([]guildPayload, 0, len(info.Guilds))
	for _, g := range info.Guilds {
		guilds = append(guilds, guildPayload{ID: g.ID, Name: g.Name, Icon: g.Icon})
	}

	s.writeJSON(w, http.StatusOK, connectPayload{
		ID:            info.ID,
		Username:      info.Username,
		Discriminator: info.Discriminator,
		Avatar:        info.Avatar,
		Guilds:        guilds,
	})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	var req dispatcher.DisconnectRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if err := s.dispatcher.Disconnect(r.Context(), req); err != nil {
		s.writeError(w, err)

		return
	}

	s.writeSuccess(w)
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.dispatcher.ListAccounts(r.Context()))
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := s.dispatcher.ListChannels(r.Context(), channelsQuery(r))
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, channelPayloads(channels))
}

func (s *Server) handleVoiceChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := s.dispatcher.ListVoiceChannels(r.Context(), channelsQuery(r))
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, channelPayloads(channels))
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	req := dispatcher.MessagesRequest{
		ChannelID: r.URL.Query().Get("channelId"),
		AccountID: r.URL.Query().Get("accountId"),
	}

	messages, err := s.dispatcher.ListMessages(r.Context(), req)
	if err != nil {
		s.writeError(w, err)

		return
	}

	out := make([]messagePayload, 0, len(messages))
	for _, m := range messages {
		out = append(out, messagePayload{
			ID:        m.ID,
			Content:   m.Content,
			Timestamp: m.Timestamp.Format(time.RFC3339),
			Author: authorPayload{
				ID:       m.Author.ID,
				Username: m.Author.Username,
				Avatar:   m.Author.Avatar,
			},
		})
	}

	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req dispatcher.SendMessageRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if _, err := s.dispatcher.SendMessage(r.Context(), req); err != nil {
		s.writeError(w, err)

		return
	}

	s.writeSuccess(w)
}

func (s *Server) handleJoinVoice(w http.ResponseWriter, r *http.Request) {
	var req dispatcher.JoinVoiceRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if err := s.dispatcher.JoinVoice(r.Context(), req); err != nil {
		s.writeError(w, err)

		return
	}

	s.writeSuccess(w)
}

func (s *Server) handleLeaveVoice(w http.ResponseWriter, r *http.Request) {
	var req dispatcher.LeaveVoiceRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if err := s.dispatcher.LeaveVoice(r.Context(), req); err != nil {
		s.writeError(w, err)

		return
	}

	s.writeSuccess(w)
}

func (s *Server) handlePlayAudio(w http.ResponseWriter, r *http.Request) {
	var req dispatcher.PlayAudioRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.dispatcher.PlayAudio(r.Context(), req)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, struct {
		Success bool     `json:"success"`
		JobID   string   `json:"jobId"`
		Targets []string `json:"targets"`
	}{Success: true, JobID: result.JobID, Targets: result.Targets})
}

func (s *Server) handleStopAudio(w http.ResponseWriter, r *http.Request) {
	var req dispatcher.StopAudioRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if err := s.dispatcher.StopAudio(r.Context(), req); err != nil {
		s.writeError(w, err)

		return
	}

	s.writeSuccess(w)
}

func channelsQuery(r *http.Request) dispatcher.ChannelsRequest {
	return dispatcher.ChannelsRequest{
		GuildID:   r.URL.Query().Get("guildId"),
		AccountID: r.URL.Query().Get("accountId"),
	}
}

func channelPayloads(channels []gateway.Channel) []channelPayload {
	out := make([]channelPayload, 0, len(channels))
	for _, ch := range channels {
		out = append(out, channelPayload{ID: ch.ID, Name: ch.Name, Kind: string(ch.Kind)})
	}

	return out
}
