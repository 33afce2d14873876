package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"taskbot/internal/agent"
	"taskbot/internal/auth"
	"taskbot/internal/envelope"
)

type toolRequest struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// handleMCP is the plain JSON fallback for agent tools. The body it writes
// is byte-for-byte the text an MCP client receives for the same call.
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	var req toolRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		body, _ := envelope.Encode(envelope.Fail("invalid json"))
		writeRaw(w, http.StatusBadRequest, body)
		return
	}

	ctx := agent.WithBearerToken(r.Context(), auth.BearerToken(r.Header.Get("Authorization")))
	body, err := s.agent.Call(ctx, req.Tool, req.Args)
	status := http.StatusOK
	if errors.Is(err, agent.ErrToolNotFound) {
		status = http.StatusNotFound
	}
	writeRaw(w, status, body)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
