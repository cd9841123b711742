package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"salchimonster/restaurant-reports/auth"
	"salchimonster/restaurant-reports/database"
	"salchimonster/restaurant-reports/didi"
	"salchimonster/restaurant-reports/models"
	"salchimonster/restaurant-reports/service"
	"salchimonster/restaurant-reports/service/external"
)

type stubAPI struct{}

func (stubAPI) Login(ctx context.Context, creds models.Credentials, cookies []*http.Cookie) (*external.LoginResult, error) {
	return &external.LoginResult{Token: "tok", Message: "Bienvenido"}, nil
}

func (stubAPI) Locales(ctx context.Context, session models.Session) ([]models.Locale, error) {
	return nil, nil
}

func (stubAPI) Deliveries(ctx context.Context, session models.Session, localID string) ([]models.DeliveryRow, error) {
	return nil, nil
}

func (stubAPI) SalesReport(ctx context.Context, session models.Session, desde string, hasta string) ([]byte, error) {
	return nil, external.ErrUnauthorized
}

type fixture struct {
	db     *gorm.DB
	server *Server
	h      http.Handler
}

func row(id string, fecha string, canal string, codigo string) models.DeliveryRow {
	return models.DeliveryRow{
		"delivery_id":                 id,
		"delivery_fecha":              fecha,
		"delivery_codigolimadelivery": codigo,
		"delivery_identificadorunico": "ident-" + id,
		"delivery_nombres":            "Ana",
		"delivery_apellidos":          "Pérez",
		"delivery_importe":            "35000",
		"canaldelivery_descripcion":   canal,
	}
}

func newFixture(t *testing.T, signer *auth.Signer) fixture {
	t.Helper()

	db, err := database.Setup(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })

	require.NoError(t, models.ReplaceLocales(db, []models.Locale{{ID: "1", Name: "Centro"}}))
	_, err = models.UpsertDeliveries(db, "1", "2026-02-10", []models.DeliveryRow{
		row("11", "2026-02-10 13:00:00", "Rappi", "R-1"),
		row("12", "2026-02-10 14:00:00", "Didi Food", "#379001"),
	})
	require.NoError(t, err)

	api := stubAPI{}
	fotos := service.NewFotoStore(t.TempDir())
	locales := service.NewLocaleService(db, api, models.LocaleFilter{})
	orders := service.NewOrderService(db, locales, fotos)
	merge := service.NewMergeService(db, fotos, nil)
	registry := didi.NewRegistry(didi.NewGormStore(db), 36*time.Second, nil)

	s := &Server{
		Session:     service.NewSessionService(db, api, nil, nil),
		Locales:     locales,
		Deliveries:  service.NewDeliveryService(db, api, t.TempDir()),
		Orders:      orders,
		Apelaciones: service.NewApelacionService(db, orders, fotos),
		Informes:    service.NewInformeService(db, locales, fotos),
		Planillas:   service.NewPlanillaStore(t.TempDir(), locales),
		Fotos:       fotos,
		Didi:        service.NewDidiService(db, registry, merge, locales, nil, filepath.Join(t.TempDir(), "mapa.yaml")),
		Auth:        signer,
		CorsOrigins: []string{"http://localhost:5173"},
	}

	return fixture{db: db, server: s, h: NewRouter(s)}
}

func (f fixture) do(t *testing.T, method string, target string, body io.Reader, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, body)
	for k, v := range header {
		req.Header[k] = v
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)

	return rec
}

func (f fixture) json(t *testing.T, method string, target string, body string) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	rec := f.do(t, method, target, reader, nil)

	out := map[string]any{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}

	return rec.Code, out
}

func multipartBody(t *testing.T, field string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = io.WriteString(part, content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	return &buf, mw.FormDataContentType()
}

func TestRootAndRequestID(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/", nil, http.Header{"X-Request-Id": {"abc"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc", rec.Header().Get("X-Request-Id"))

	rec = f.do(t, http.MethodGet, "/", nil, nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestCORS(t *testing.T) {
	f := newFixture(t, nil)

	preflight := func(origin string) string {
		rec := f.do(t, http.MethodOptions, "/didi/sede-heartbeat", nil, http.Header{
			"Origin":                        {origin},
			"Access-Control-Request-Method": {http.MethodPost},
		})
		return rec.Header().Get("Access-Control-Allow-Origin")
	}

	assert.Equal(t, "http://localhost:5173", preflight("http://localhost:5173"))
	assert.Equal(t, "chrome-extension://abcdef", preflight("chrome-extension://abcdef"))
	assert.Empty(t, preflight("https://evil.example.com"))
}

func TestCredentials(t *testing.T) {
	f := newFixture(t, nil)

	code, body := f.json(t, http.MethodGet, "/credentials", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.NotEmpty(t, body["detail"])

	code, body = f.json(t, http.MethodPut, "/credentials", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Envía al menos un campo para actualizar", body["detail"])

	code, body = f.json(t, http.MethodPut, "/credentials", `{"usuario_nick":"caja","usuario_clave":"secreta"}`)
	require.Equal(t, http.StatusOK, code)
	creds := body["credentials"].(map[string]any)
	assert.Equal(t, models.MaskedPassword, creds["usuario_clave"])

	code, body = f.json(t, http.MethodGet, "/token", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, body = f.json(t, http.MethodPost, "/login", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])

	code, body = f.json(t, http.MethodGet, "/token", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "tok", body["token"])

	code, _ = f.json(t, http.MethodPost, "/login/form", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestOrders(t *testing.T) {
	f := newFixture(t, nil)

	code, body := f.json(t, http.MethodGet, "/api/orders?fecha=2026-02-10", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Indica 'local' o 'locales' (nombres separados por coma)", body["detail"])

	code, body = f.json(t, http.MethodGet, "/api/orders?local=Centro&fecha=2026-02-10", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["orders"], 2)

	code, body = f.json(t, http.MethodGet, "/api/orders/by-codigo/R-1", "")
	require.Equal(t, http.StatusOK, code)
	assert.NotNil(t, body["order"])

	code, body = f.json(t, http.MethodPost, "/api/orders/no-entregada", `{"delivery_id":"11"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "11", body["delivery_id"])

	code, body = f.json(t, http.MethodGet, "/api/orders?local=Centro&fecha=2026-02-10", "")
	require.Equal(t, http.StatusOK, code)
	first := body["orders"].([]any)[0].(map[string]any)
	assert.Equal(t, true, first["no_entregada"])
}

func TestCodigoWithSlash(t *testing.T) {
	f := newFixture(t, nil)
	_, err := models.UpsertDeliveries(f.db, "1", "2026-02-10", []models.DeliveryRow{
		row("13", "2026-02-10 15:00:00", "Rappi", "RP/7"),
	})
	require.NoError(t, err)

	code, body := f.json(t, http.MethodGet, "/api/orders/by-codigo/RP/7", "")
	require.Equal(t, http.StatusOK, code)
	assert.NotNil(t, body["order"])

	buf, contentType := multipartBody(t, "files", map[string]string{"foto.jpg": "jpeg"})
	rec := f.do(t, http.MethodPost, "/api/orders/RP%2F7/fotos?group=entrega", buf, http.Header{"Content-Type": {contentType}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	code, body = f.json(t, http.MethodGet, "/api/orders/RP%2F7/fotos", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["entrega"], 1)
}

func TestFotos(t *testing.T) {
	f := newFixture(t, nil)

	buf, contentType := multipartBody(t, "files", map[string]string{"foto.jpg": "jpeg"})
	rec := f.do(t, http.MethodPost, "/api/orders/R-1/fotos?group=entrega", buf, http.Header{"Content-Type": {contentType}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	code, body := f.json(t, http.MethodGet, "/api/orders/R-1/fotos", "")
	require.Equal(t, http.StatusOK, code)
	want := map[string]any{
		"entrega":    []any{"/api/orders/R-1/fotos/entrega/foto.jpg"},
		"apelacion":  map[string]any{},
		"respuestas": []any{},
	}
	if diff := cmp.Diff(want, body); diff != "" {
		t.Errorf("fotos mismatch (-want +got):\n%s", diff)
	}

	rec = f.do(t, http.MethodGet, "/api/orders/R-1/fotos/entrega/foto.jpg", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jpeg", rec.Body.String())

	buf, contentType = multipartBody(t, "files", map[string]string{"x.jpg": "x"})
	rec = f.do(t, http.MethodPost, "/api/orders/R-1/fotos?group=otro", buf, http.Header{"Content-Type": {contentType}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	code, body = f.json(t, http.MethodDelete, "/api/orders/R-1/fotos/entrega/foto.jpg", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "foto.jpg", body["deleted"])

	code, body = f.json(t, http.MethodGet, "/api/orders/R-1/fotos/entrega/foto.jpg", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Archivo no encontrado", body["detail"])
}

func TestApelacionLifecycle(t *testing.T) {
	f := newFixture(t, nil)

	code, _ := f.json(t, http.MethodPost, "/api/apelaciones/marcar",
		`{"codigo":"R-1","canal":"Rappi","delivery_id":"11","monto_descontado":30000,"local":"Centro","fecha":"2026-02-10"}`)
	require.Equal(t, http.StatusOK, code)

	code, body := f.json(t, http.MethodGet, "/api/apelaciones/pendientes?local=Centro&fecha=2026-02-10", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["orders"], 1)

	buf, contentType := multipartBody(t, "files", map[string]string{"respuesta.png": "png"})
	rec := f.do(t, http.MethodPost, "/api/apelaciones/apelar?codigo=R-1&monto_devuelto=20000&fecha_estimada_devolucion=2026-02-20",
		buf, http.Header{"Content-Type": {contentType}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/apelaciones/apelar?codigo=R-1&monto_devuelto=20000", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	code, _ = f.json(t, http.MethodPost, "/api/apelaciones/no-apelar", `{"codigo":"NOPE"}`)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = f.json(t, http.MethodGet, "/api/apelaciones/reembolsos-pendientes?local=Centro", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["items"], 1)

	code, _ = f.json(t, http.MethodPost, "/api/apelaciones/reembolsar", `{"codigo":"R-1","mismo_valor":true}`)
	require.Equal(t, http.StatusOK, code)

	code, body = f.json(t, http.MethodGet, "/api/apelaciones/estado-admin", "")
	require.Equal(t, http.StatusOK, code)
	item := body["items"].([]any)[0].(map[string]any)
	assert.Equal(t, "reembolsada", item["estado"])
	assert.Equal(t, 10000.0, item["perdida"])

	code, _ = f.json(t, http.MethodPost, "/api/apelaciones/confirmar-descuento", `{"codigo":"R-1","monto":0}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.json(t, http.MethodPost, "/api/apelaciones/confirmar-descuento", `{"codigo":"R-1","monto":10000,"quincena":"2026-02-1"}`)
	require.Equal(t, http.StatusOK, code)

	code, body = f.json(t, http.MethodGet, "/api/apelaciones/descuentos?solo_confirmados=true", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["items"], 1)

	code, body = f.json(t, http.MethodGet, "/api/apelaciones/reporte", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 30000.0, body["total_descontado"])
	assert.Equal(t, 10000.0, body["total_perdido"])

	code, body = f.json(t, http.MethodGet, "/api/reporte-maestro?fecha_desde=2026-02-10&fecha_hasta=2026-02-10&rows=1", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2.0, body["totalRecords"])
	assert.Len(t, body["rows"], 1)

	code, _ = f.json(t, http.MethodGet, "/api/reporte-maestro?fecha_desde=2026-02-10&fecha_hasta=2026-02-10&rows=0", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = f.json(t, http.MethodGet, "/api/informes?fecha_desde=2026-02-10&fecha_hasta=2026-02-10", "")
	require.Equal(t, http.StatusOK, code)
	assert.NotNil(t, body["resumen"])

	rec = f.do(t, http.MethodGet, "/api/exports/descuentos.csv?quincena=2026-02-1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Body.String(), "quincena,local,codigo"))

	rec = f.do(t, http.MethodGet, "/api/exports/reporte-maestro.csv?fecha_desde=2026-02-10&fecha_hasta=2026-02-10", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "R-1")

	rec = f.do(t, http.MethodGet, "/api/exports/apelaciones.pdf", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
}

func TestPlanillas(t *testing.T) {
	f := newFixture(t, nil)

	buf, contentType := multipartBody(t, "file", map[string]string{"cierre.pdf": "pdf"})
	rec := f.do(t, http.MethodPost, "/api/planilla/1/2026-02-10", buf, http.Header{"Content-Type": {contentType}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	buf, contentType = multipartBody(t, "file", map[string]string{"virus.exe": "x"})
	rec = f.do(t, http.MethodPost, "/api/planilla/1/2026-02-10", buf, http.Header{"Content-Type": {contentType}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	code, body := f.json(t, http.MethodGet, "/api/planilla/1/2026-02-10/estado", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["subida"])

	rec = f.do(t, http.MethodGet, "/api/planilla/1/2026-02-10/archivo/cierre.pdf", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pdf", rec.Body.String())

	code, body = f.json(t, http.MethodGet, "/api/planilla/estado-sedes?fecha=2026-02-10", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["sedes"], 1)

	code, body = f.json(t, http.MethodDelete, "/api/planilla/1/2026-02-10", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1.0, body["count"])

	code, _ = f.json(t, http.MethodDelete, "/api/planilla/1/2026-02-10", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestDidi(t *testing.T) {
	f := newFixture(t, nil)

	code, body := f.json(t, http.MethodPost, "/didi/sede-heartbeat", `no json`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Body debe ser JSON válido", body["detail"])

	code, body = f.json(t, http.MethodPost, "/didi/sede-heartbeat", `{"data":{"shopId":"shop-1","shopName":"Centro"}}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "shop-1", body["shopId"])

	code, _ = f.json(t, http.MethodPost, "/didi/link", `{"restaurant_id":"1","didi_shop_id":"shop-1"}`)
	require.Equal(t, http.StatusOK, code)

	code, body = f.json(t, http.MethodGet, "/didi/extension-status?restaurant_id=1", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["hasDidi"])
	assert.Equal(t, true, body["active"])

	code, _ = f.json(t, http.MethodGet, "/didi/extension-status", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = f.json(t, http.MethodPost, "/didi/daily-orders-payload",
		`{"data":{"serving":[{"orderId":"379001","displayNum":"#379001"}],"highlight":[]}}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1.0, body["orders_count"])

	code, body = f.json(t, http.MethodPost, "/didi/capture", `{"type":"otra","data":{}}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = f.json(t, http.MethodGet, "/didi/merge-now", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["ok"])

	code, body = f.json(t, http.MethodGet, "/didi/sedes", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["sedes"], 1)

	rec := f.do(t, http.MethodGet, "/didi/privacy-policy", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
}

func TestAdminRoutesRequireAdminToken(t *testing.T) {
	signer := auth.NewSigner("secreto", time.Hour)
	f := newFixture(t, signer)

	admin, err := signer.Issue("ana", auth.RoleAdmin, "")
	require.NoError(t, err)
	sede, err := signer.Issue("caja", auth.RoleSede, "Centro")
	require.NoError(t, err)

	marcar := func(token string) int {
		header := http.Header{}
		if token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
		rec := f.do(t, http.MethodPost, "/api/apelaciones/marcar",
			strings.NewReader(`{"codigo":"R-1","canal":"Rappi","monto_descontado":1000}`), header)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, marcar(""))
	assert.Equal(t, http.StatusForbidden, marcar(sede))
	assert.Equal(t, http.StatusOK, marcar(admin))

	// Sede routes and the extension stay public.
	code, _ := f.json(t, http.MethodGet, "/api/orders?local=Centro&fecha=2026-02-10", "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = f.json(t, http.MethodPost, "/didi/sede-heartbeat", `{"data":{"shopId":"s"}}`)
	assert.Equal(t, http.StatusOK, code)
}
