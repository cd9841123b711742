package api

import (
	"fmt"
	"net/http"
	"strings"

	"salchimonster/restaurant-reports/export"
	"salchimonster/restaurant-reports/payroll"
)

func attachment(w http.ResponseWriter, contentType string, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// exportDescuentos sends the payroll deductions of a quincena as CSV.
func (s *Server) exportDescuentos(w http.ResponseWriter, r *http.Request) {
	quincena := strings.TrimSpace(r.URL.Query().Get("quincena"))

	descuentos, apelaciones, err := s.Apelaciones.DescuentosQuincena(quincena)
	if err != nil {
		writeError(w, err)
		return
	}

	data, err := payroll.NewEntries(quincena, descuentos, apelaciones).Bytes()
	if err != nil {
		writeError(w, err)
		return
	}
	attachment(w, "text/csv; charset=utf-8", "descuentos_"+quincena+".csv", data)
}

func (s *Server) exportMaestro(w http.ResponseWriter, r *http.Request) {
	mq, err := maestroQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	rows, err := s.Informes.MaestroRows(mq)
	if err != nil {
		writeError(w, err)
		return
	}

	data, err := export.MaestroCSV(rows)
	if err != nil {
		writeError(w, err)
		return
	}
	attachment(w, "text/csv; charset=utf-8", fmt.Sprintf("reporte_maestro_%s_%s.csv", mq.Desde, mq.Hasta), data)
}

func (s *Server) exportApelacionesPDF(w http.ResponseWriter, r *http.Request) {
	filter := apelacionFilter(r)

	reporte, err := s.Apelaciones.Reporte(filter)
	if err != nil {
		writeError(w, err)
		return
	}

	data, err := export.ApelacionesPDFBytes(export.ReporteTitle(filter), reporte)
	if err != nil {
		writeError(w, err)
		return
	}
	attachment(w, "application/pdf", "apelaciones.pdf", data)
}
