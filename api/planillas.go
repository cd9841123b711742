package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"salchimonster/restaurant-reports/models"
)

func (s *Server) planillaEstado(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Planillas.Estado(pathParam(r, "local_id"), pathParam(r, "fecha")))
}

func (s *Server) planillaUpload(w http.ResponseWriter, r *http.Request) {
	files, err := multipartFiles(r, "file")
	if err != nil {
		writeError(w, err)
		return
	}
	if len(files) == 0 {
		writeError(w, fmt.Errorf("Envía el archivo en el campo 'file': %w", models.ErrInvalidInput))
		return
	}

	name, err := s.Planillas.Upload(pathParam(r, "local_id"), pathParam(r, "fecha"), files[0])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"subida": true, "nombre": name})
}

// planillaDelete removes the named file, or every file of the day without nombre.
func (s *Server) planillaDelete(w http.ResponseWriter, r *http.Request) {
	localID, fecha := pathParam(r, "local_id"), pathParam(r, "fecha")

	if nombre := strings.TrimSpace(r.URL.Query().Get("nombre")); nombre != "" {
		deleted, err := s.Planillas.Delete(localID, fecha, nombre)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"eliminada": true, "nombre": deleted})
		return
	}

	count, err := s.Planillas.DeleteAll(localID, fecha)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"eliminada": true, "count": count})
}

func (s *Server) planillaDownload(w http.ResponseWriter, r *http.Request) {
	path, err := s.Planillas.Path(pathParam(r, "local_id"), pathParam(r, "fecha"), pathParam(r, "nombre"))
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}

func (s *Server) planillaEstadoSedes(w http.ResponseWriter, r *http.Request) {
	estado, err := s.Planillas.EstadoSedes(r.URL.Query().Get("fecha"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, estado)
}
