package api

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"salchimonster/restaurant-reports/models"
	"salchimonster/restaurant-reports/service"
)

// uploadMemory is what ParseMultipartForm keeps in memory; larger parts go to temp files.
const uploadMemory = 32 << 20

func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func queryBool(r *http.Request, name string, fallback bool) bool {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func multipartFiles(r *http.Request, field string) ([]service.Upload, error) {
	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		if err == http.ErrNotMultipart {
			return nil, nil
		}
		return nil, fmt.Errorf("Formulario inválido: %w", models.ErrInvalidInput)
	}

	var headers []*multipart.FileHeader
	if r.MultipartForm != nil {
		headers = r.MultipartForm.File[field]
	}

	files := make([]service.Upload, 0, len(headers))
	for _, fh := range headers {
		files = append(files, service.NewUpload(fh))
	}

	return files, nil
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orders, err := s.Orders.List(service.OrderQuery{
		Local:                    q.Get("local"),
		Locales:                  q.Get("locales"),
		Fecha:                    q.Get("fecha"),
		FechaDesde:               q.Get("fecha_desde"),
		FechaHasta:               q.Get("fecha_hasta"),
		ExcludeMarcadasApelacion: queryBool(r, "exclude_marcadas_apelacion", false),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

// Codes may contain "/", so the lookup takes the rest of the path.
func (s *Server) orderByCodigo(w http.ResponseWriter, r *http.Request) {
	detail, err := s.Orders.FindByCodigo(pathParam(r, "*"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) markNoEntregada(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DeliveryID string `json:"delivery_id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}

	id, err := s.Orders.MarkNoEntregada(body.DeliveryID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "delivery_id": id})
}

func (s *Server) listFotos(w http.ResponseWriter, r *http.Request) {
	fotos, err := s.Orders.Fotos(pathParam(r, "codigo"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fotos)
}

func (s *Server) uploadFotos(w http.ResponseWriter, r *http.Request) {
	files, err := multipartFiles(r, "files")
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	result, err := s.Orders.UploadFotos(pathParam(r, "codigo"), q.Get("group"), strings.TrimSpace(q.Get("canal")), files)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func fotoRest(r *http.Request) string {
	rest := chi.URLParam(r, "*")
	if v, err := url.PathUnescape(rest); err == nil {
		return v
	}
	return rest
}

func (s *Server) serveFoto(w http.ResponseWriter, r *http.Request) {
	path, err := s.Fotos.Path(pathParam(r, "codigo"), chi.URLParam(r, "group"), fotoRest(r))
	if err != nil {
		writeError(w, err)
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) deleteFoto(w http.ResponseWriter, r *http.Request) {
	rest := fotoRest(r)
	if err := s.Fotos.Delete(pathParam(r, "codigo"), chi.URLParam(r, "group"), rest); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": rest})
}

func (s *Server) organizeFotoRefs(w http.ResponseWriter, r *http.Request) {
	result, err := s.Orders.OrganizeFotoRefs()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
