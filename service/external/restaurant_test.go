package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"salchimonster/restaurant-reports/config"
	"salchimonster/restaurant-reports/models"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *RestaurantClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Default().Restaurant
	cfg.BaseURL = srv.URL
	cfg.TimeoutSeconds = 5

	client, err := NewRestaurantClient(cfg)
	require.NoError(t, err)

	return client
}

func TestLoginSuccess(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/restaurant/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "s1", Path: "/"})
		fmt.Fprint(w, "<html>login</html>")
	})
	mux.HandleFunc("/restaurant/m/rest/usuario/login", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "caja1", r.PostForm.Get("usuario_nick"))
		require.Equal(t, "29", r.PostForm.Get("caja_id"))

		cookie, err := r.Cookie("PHPSESSID")
		require.NoError(t, err)
		require.Equal(t, "s1", cookie.Value)

		fmt.Fprint(w, `{"tipo":"200","mensajes":["Bienvenido"],"data":{"token":"tok-1"}}`)
	})

	client := newTestClient(t, mux)
	result, err := client.Login(context.Background(), models.Credentials{UsuarioNick: "caja1", UsuarioClave: "x"}, nil)
	require.NoError(t, err)
	require.Equal(t, "tok-1", result.Token)
	require.Equal(t, "Bienvenido", result.Message)
	require.Equal(t, "200", result.Tipo)
	require.Len(t, result.Cookies, 1)
}

func TestLoginHTMLErrorOn200(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/restaurant/", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/restaurant/m/rest/usuario/login", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><h1>Slim Application Error</h1><strong>Message:</strong> get_object_vars() expects parameter 1 to be object, null given</body></html>`)
	})

	client := newTestClient(t, mux)
	_, err := client.Login(context.Background(), models.Credentials{UsuarioNick: "caja1"}, nil)

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	require.Equal(t, http.StatusBadGateway, upstream.Status)
	require.Equal(t, loginInternalError, upstream.Message)
}

func TestLoginRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/restaurant/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "abc", Path: "/"})
	})
	mux.HandleFunc("/restaurant/m/rest/usuario/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"mensajes":["Clave incorrecta"]}`)
	})

	client := newTestClient(t, mux)
	_, err := client.Login(context.Background(), models.Credentials{UsuarioNick: "caja1"}, nil)

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	require.Equal(t, http.StatusUnauthorized, upstream.Status)
	require.Equal(t, "Clave incorrecta", upstream.Message)
	require.Len(t, upstream.Cookies, 1)
	require.Equal(t, "PHPSESSID", upstream.Cookies[0].Name)
}

func TestLocales(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/restaurant/api/rest/local/getLocalesPermitidos/0", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, `Token token="tok"`, r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"tipo":"200","data":[
			{"local_id":"2","local_descripcion":"norte"},
			{"local_id":"1","local_descripcion":"Centro"},
			{"local_id":"3","local_descripcion":"  "}
		]}`)
	})

	client := newTestClient(t, mux)
	locales, err := client.Locales(context.Background(), models.Session{Token: "tok"})
	require.NoError(t, err)
	require.Equal(t, []models.Locale{{ID: "1", Name: "Centro"}, {ID: "2", Name: "norte"}}, locales)

	_, err = client.Locales(context.Background(), models.Session{})
	require.ErrorIs(t, err, models.ErrNoToken)
}

func TestLocalesUnauthorized(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"tipo":"401","mensajes":["token"]}`)
	}))

	_, err := client.Locales(context.Background(), models.Session{Token: "old"})
	require.ErrorIs(t, err, ErrUnauthorized)
}

func deliveriesPageBody(start int, n int) string {
	rows := make([]map[string]string, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, map[string]string{"delivery_id": strconv.Itoa(start + i)})
	}
	b, _ := json.Marshal(map[string]interface{}{"tipo": "200", "data": rows})
	return string(b)
}

func TestDeliveriesPaging(t *testing.T) {
	var calls []string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.URL.Path)
		parts := strings.Split(r.URL.Path, "/")
		offset, _ := strconv.Atoi(parts[len(parts)-1])
		if offset >= 100 {
			fmt.Fprint(w, deliveriesPageBody(offset, 10))
			return
		}
		fmt.Fprint(w, deliveriesPageBody(offset, 50))
	}))

	rows, err := client.Deliveries(context.Background(), models.Session{Token: "tok"}, "12")
	require.NoError(t, err)
	require.Len(t, rows, 100)
	require.Equal(t, []string{
		"/restaurant/api/rest/delivery/obtenerDeliverysPorLocalSimple/12/1/50/0",
		"/restaurant/api/rest/delivery/obtenerDeliverysPorLocalSimple/12/2/50/50",
	}, calls)
}

func TestDeliveriesShortPageAndBareArray(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, deliveriesPageBody(0, 3))
	}))
	rows, err := client.Deliveries(context.Background(), models.Session{Token: "tok"}, "12")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	calls := 0
	client = newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `[{"delivery_id":"1"},{"delivery_id":"2"}]`)
	}))
	rows, err = client.Deliveries(context.Background(), models.Session{Token: "tok"}, "12")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, 1, calls)
	require.Equal(t, "2", rows[1].Str("delivery_id"))
}

func TestDeliveriesStopsOnUnauthorized(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"tipo":"401"}`)
	}))

	rows, err := client.Deliveries(context.Background(), models.Session{Token: "tok"}, "12")
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestSalesReport(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, "2026-02-01 00:00:00", q.Get("f1"))
		require.Equal(t, "2026-02-02 23:59:59", q.Get("f2"))
		require.Equal(t, "tok", q.Get("token"))
		require.Equal(t, "informeventasv3_informeventas", q.Get("page"))
		require.Equal(t, "InformeVentas_14.02.2026_18.00.00", q.Get("name"))

		w.Header().Set("Content-Type", "application/vnd.ms-excel")
		fmt.Fprint(w, "PK-binary")
	}))
	client.now = func() time.Time { return time.Date(2026, 2, 14, 18, 0, 0, 0, time.UTC) }

	body, err := client.SalesReport(context.Background(), models.Session{Token: "tok"}, "2026-02-01", "2026-02-02")
	require.NoError(t, err)
	require.Equal(t, "PK-binary", string(body))
}

func TestSalesReportRejectsHTML(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<!DOCTYPE html><html></html>")
	}))

	_, err := client.SalesReport(context.Background(), models.Session{Token: "tok"}, "2026-02-01", "2026-02-01")
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	require.Equal(t, http.StatusBadGateway, upstream.Status)
}

func TestSalesReportUpstreamStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := client.SalesReport(context.Background(), models.Session{Token: "tok"}, "2026-02-01", "2026-02-01")
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	require.Equal(t, http.StatusBadGateway, upstream.Status)
	require.Contains(t, upstream.Message, "403")
	require.Contains(t, upstream.Message, "Token o sesión expirados")
}
