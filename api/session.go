package api

import (
	"net/http"
	"strings"

	"salchimonster/restaurant-reports/models"
	"salchimonster/restaurant-reports/service"
)

func (s *Server) getCredentials(w http.ResponseWriter, r *http.Request) {
	creds, err := s.Session.Credentials()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, creds)
}

func (s *Server) putCredentials(w http.ResponseWriter, r *http.Request) {
	var update models.Credentials
	if err := decodeJSON(r, &update); err != nil {
		writeError(w, err)
		return
	}

	creds, err := s.Session.UpdateCredentials(update)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Credenciales actualizadas", "credentials": creds})
}

// updateAndLogin answers with the masked credentials even when the login fails, so the
// dashboard can offer to fix them.
func (s *Server) updateAndLogin(w http.ResponseWriter, r *http.Request) {
	var update models.Credentials
	if err := decodeJSON(r, &update); err != nil {
		writeError(w, err)
		return
	}

	outcome, creds, err := s.Session.UpdateAndLogin(r.Context(), update)
	if err != nil {
		status, msg := mapError(err)
		if status == http.StatusBadRequest && creds == (models.Credentials{}) {
			writeDetail(w, status, msg)
			return
		}
		writeJSON(w, status, map[string]any{"message": msg, "success": false, "credentials": creds})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": outcome.Message, "success": true, "credentials": creds})
}

func (s *Server) writeLogin(w http.ResponseWriter, outcome *service.LoginOutcome, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.Session.Login(r.Context())
	s.writeLogin(w, outcome, err)
}

func (s *Server) formLogin(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.Session.FormLogin(r.Context())
	s.writeLogin(w, outcome, err)
}

func (s *Server) getCookies(w http.ResponseWriter, r *http.Request) {
	info, err := s.Session.Cookies()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) clearCookies(w http.ResponseWriter, r *http.Request) {
	if err := s.Session.ClearCookies(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Cookies borradas"})
}

func (s *Server) getToken(w http.ResponseWriter, r *http.Request) {
	token, err := s.Session.Token()
	if err != nil {
		writeDetail(w, http.StatusNotFound, "No hay token. Haz login primero (POST /login).")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) salesReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	desde := strings.TrimSpace(q.Get("fecha_inicio"))
	hasta := strings.TrimSpace(q.Get("fecha_fin"))

	result, err := s.Deliveries.DownloadSalesReport(r.Context(), desde, hasta)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="InformeVentas_`+desde+`_`+hasta+`.xlsx"`)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	http.ServeFile(w, r, result.File)
}

func (s *Server) listLocales(w http.ResponseWriter, r *http.Request) {
	locales, err := s.Locales.List()
	if err != nil {
		writeError(w, err)
		return
	}
	if locales == nil {
		locales = []models.Locale{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"locales": locales})
}

func (s *Server) listCanales(w http.ResponseWriter, r *http.Request) {
	canales, err := s.Locales.Canales()
	if err != nil {
		writeError(w, err)
		return
	}
	if canales == nil {
		canales = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"canales_delivery": canales})
}
