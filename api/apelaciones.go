package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"salchimonster/restaurant-reports/models"
	"salchimonster/restaurant-reports/service"
)

func apelacionFilter(r *http.Request) models.ApelacionFilter {
	q := r.URL.Query()
	return models.ApelacionFilter{
		Local: strings.TrimSpace(q.Get("local")),
		Desde: strings.TrimSpace(q.Get("fecha_desde")),
		Hasta: strings.TrimSpace(q.Get("fecha_hasta")),
	}
}

func items[T any](list []T) map[string]any {
	if list == nil {
		list = []T{}
	}
	return map[string]any{"items": list}
}

func (s *Server) marcar(w http.ResponseWriter, r *http.Request) {
	var req service.MarcarRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Apelaciones.Marcar(req); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

func (s *Server) pendientes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orders, err := s.Apelaciones.Pendientes(q.Get("local"), q.Get("fecha"), q.Get("fecha_desde"), q.Get("fecha_hasta"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

// apelar takes codigo and amounts in the query string and the channel's answer
// screenshots as multipart files.
func (s *Server) apelar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	monto, err := strconv.ParseFloat(strings.TrimSpace(q.Get("monto_devuelto")), 64)
	if err != nil {
		writeError(w, fmt.Errorf("monto_devuelto debe ser un número: %w", models.ErrInvalidInput))
		return
	}

	files, err := multipartFiles(r, "files")
	if err != nil {
		writeError(w, err)
		return
	}

	err = s.Apelaciones.Apelar(service.ApelarRequest{
		Codigo:                  q.Get("codigo"),
		MontoDevuelto:           monto,
		FechaEstimadaDevolucion: q.Get("fecha_estimada_devolucion"),
		Files:                   files,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

func (s *Server) noApelar(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Codigo string `json:"codigo"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Apelaciones.NoApelar(body.Codigo); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

func (s *Server) reembolsosPendientes(w http.ResponseWriter, r *http.Request) {
	list, err := s.Apelaciones.ReembolsosPendientes(apelacionFilter(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items(list))
}

func (s *Server) reembolsar(w http.ResponseWriter, r *http.Request) {
	var req service.ReembolsarRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Apelaciones.Reembolsar(req); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

func (s *Server) estadoAdmin(w http.ResponseWriter, r *http.Request) {
	list, err := s.Apelaciones.EstadoAdmin(apelacionFilter(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items(list))
}

func (s *Server) descuentos(w http.ResponseWriter, r *http.Request) {
	list, err := s.Apelaciones.Descuentos(service.DescuentosQuery{
		ApelacionFilter: apelacionFilter(r),
		SoloPendientes:  queryBool(r, "solo_pendientes", true),
		SoloConfirmados: queryBool(r, "solo_confirmados", false),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items(list))
}

func (s *Server) confirmarDescuento(w http.ResponseWriter, r *http.Request) {
	var req service.ConfirmarDescuentoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Apelaciones.ConfirmarDescuento(req); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

func (s *Server) reporte(w http.ResponseWriter, r *http.Request) {
	reporte, err := s.Apelaciones.Reporte(apelacionFilter(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reporte)
}

func (s *Server) informes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	informe, err := s.Informes.Informe(q.Get("fecha_desde"), q.Get("fecha_hasta"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, informe)
}

func maestroQuery(r *http.Request) (service.MaestroQuery, error) {
	q := r.URL.Query()
	mq := service.MaestroQuery{
		Local:  q.Get("local"),
		Desde:  q.Get("fecha_desde"),
		Hasta:  q.Get("fecha_hasta"),
		Filter: q.Get("filter"),
	}

	for name, dst := range map[string]*int{"first": &mq.First, "rows": &mq.Rows} {
		v := strings.TrimSpace(q.Get(name))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return mq, fmt.Errorf("%s debe ser un entero: %w", name, models.ErrInvalidInput)
		}
		if name == "rows" && n < 1 {
			return mq, fmt.Errorf("rows debe estar entre 1 y 500: %w", models.ErrInvalidInput)
		}
		*dst = n
	}

	return mq, nil
}

func (s *Server) reporteMaestro(w http.ResponseWriter, r *http.Request) {
	mq, err := maestroQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	page, err := s.Informes.ReporteMaestro(mq)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}
