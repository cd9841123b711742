package service

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"salchimonster/restaurant-reports/database"
	"salchimonster/restaurant-reports/models"
	"salchimonster/restaurant-reports/service/external"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Setup(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })

	return db
}

type fakeAPI struct {
	loginResult *external.LoginResult
	loginErr    error
	locales     []models.Locale
	deliveries  map[string][]models.DeliveryRow
	report      []byte
	err         error

	mu     sync.Mutex
	calls  []string
	tokens []string
}

func (f *fakeAPI) record(call string, session models.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	f.tokens = append(f.tokens, session.Token)
}

func (f *fakeAPI) Login(ctx context.Context, creds models.Credentials, cookies []*http.Cookie) (*external.LoginResult, error) {
	f.record("login", models.Session{})
	if f.loginErr != nil {
		return nil, f.loginErr
	}

	return f.loginResult, nil
}

func (f *fakeAPI) Locales(ctx context.Context, session models.Session) ([]models.Locale, error) {
	f.record("locales", session)
	return f.locales, f.err
}

func (f *fakeAPI) Deliveries(ctx context.Context, session models.Session, localID string) ([]models.DeliveryRow, error) {
	f.record("deliveries:"+localID, session)
	return f.deliveries[localID], f.err
}

func (f *fakeAPI) SalesReport(ctx context.Context, session models.Session, desde string, hasta string) ([]byte, error) {
	f.record("report", session)
	return f.report, f.err
}

type recorder struct {
	mu       sync.Mutex
	messages []interface{}
}

func (r *recorder) Broadcast(ctx context.Context, v interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, v)
}

func (r *recorder) all() []interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]interface{}(nil), r.messages...)
}

func (r *recorder) steps() []string {
	var out []string
	for _, m := range r.all() {
		if ev, ok := m.(LoginEvent); ok {
			out = append(out, ev.Step)
		}
	}

	return out
}

func saveToken(t *testing.T, db *gorm.DB, token string) {
	t.Helper()

	session, err := models.FetchSession(db)
	require.NoError(t, err)
	session.Token = token
	require.NoError(t, models.SaveSession(db, session))
}

func deliveryRow(id string, fecha string, canal string, codigo string) models.DeliveryRow {
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

func seedLocales(t *testing.T, db *gorm.DB, locales ...models.Locale) {
	t.Helper()
	require.NoError(t, models.ReplaceLocales(db, locales))
}

func seedDeliveries(t *testing.T, db *gorm.DB, localID string, fecha string, rows ...models.DeliveryRow) {
	t.Helper()
	_, err := models.UpsertDeliveries(db, localID, fecha, rows)
	require.NoError(t, err)
}

func upload(name string, content string) Upload {
	return Upload{
		Name: name,
		Size: int64(len(content)),
		Open: func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(content)), nil },
	}
}
