package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"salchimonster/restaurant-reports/didi"
	"salchimonster/restaurant-reports/models"
)

// maxDidiBody bounds what the extension and the capturer may post.
const maxDidiBody = 10 << 20

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDidiBody))
	if err != nil {
		return nil, fmt.Errorf("Body debe ser JSON válido: %w", models.ErrInvalidInput)
	}

	return body, nil
}

func (s *Server) didiDailyOrders(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := s.Didi.DailyOrdersPayload(r.Context(), body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) didiCapture(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.Didi.Capture(r.Context(), strings.TrimSpace(body.Type), body.Data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) didiMergeNow(w http.ResponseWriter, r *http.Request) {
	fecha, err := s.Didi.MergeNow(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "fecha": fecha})
}

func (s *Server) didiHeartbeat(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := s.Didi.Heartbeat(r.Context(), body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) didiMapa(w http.ResponseWriter, r *http.Request) {
	mapa, err := s.Didi.Mapa()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapa)
}

func (s *Server) didiExtensionStatus(w http.ResponseWriter, r *http.Request) {
	rid := strings.TrimSpace(r.URL.Query().Get("restaurant_id"))
	if rid == "" {
		writeError(w, fmt.Errorf("restaurant_id requerido: %w", models.ErrInvalidInput))
		return
	}

	status, err := s.Didi.ExtensionStatus(rid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) didiSedes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Didi.CurrentSedes())
}

func (s *Server) didiSuggest(w http.ResponseWriter, r *http.Request) {
	suggestions, err := s.Didi.Suggest()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

func (s *Server) didiLink(w http.ResponseWriter, r *http.Request) {
	var sede didi.Sede
	if err := decodeJSON(r, &sede); err != nil {
		writeError(w, err)
		return
	}

	mapa, err := s.Didi.Link(r.Context(), sede)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapa)
}

func (s *Server) didiPrivacyPolicy(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, didi.PrivacyPolicyHTML)
}
