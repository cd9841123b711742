package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"salchimonster/restaurant-reports/models"
)

func newOrderFixture(t *testing.T) (*gorm.DB, *OrderService, *FotoStore) {
	t.Helper()

	db := newTestDB(t)
	seedLocales(t, db, models.Locale{ID: "1", Name: "Centro"}, models.Locale{ID: "2", Name: "Norte"})
	seedDeliveries(t, db, "1", "2026-02-10",
		deliveryRow("11", "2026-02-10 13:00:00", "Rappi", "R-1"),
		deliveryRow("12", "2026-02-10 14:00:00", "Didi Food", "#379001"),
	)
	seedDeliveries(t, db, "1", "2026-02-11", deliveryRow("13", "2026-02-11 12:00:00", "Rappi", "R-3"))
	seedDeliveries(t, db, "2", "2026-02-10", deliveryRow("21", "2026-02-10 20:00:00", "Rappi", "N-1"))

	fotos := NewFotoStore(t.TempDir())
	locales := NewLocaleService(db, &fakeAPI{}, models.LocaleFilter{})

	return db, NewOrderService(db, locales, fotos), fotos
}

func codigos(views []OrderView) []string {
	var out []string
	for _, v := range views {
		out = append(out, v.CodigoIntegracion)
	}

	return out
}

func TestOrdersList(t *testing.T) {
	db, svc, fotos := newOrderFixture(t)

	_, err := svc.List(OrderQuery{Fecha: "2026-02-10"})
	require.ErrorIs(t, err, models.ErrInvalidInput)

	views, err := svc.List(OrderQuery{Local: "Centro"})
	require.NoError(t, err)
	assert.Empty(t, views)

	views, err = svc.List(OrderQuery{Local: "Centro", Fecha: "2026-02-10"})
	require.NoError(t, err)
	assert.Equal(t, []string{"R-1", "379001"}, codigos(views))
	assert.Equal(t, "Centro-R-1-2026-02-10", views[0].RowKey)
	assert.Equal(t, "Ana Pérez", views[0].Cliente)
	assert.Equal(t, "13:00:00", views[0].Hora)

	views, err = svc.List(OrderQuery{Locales: "Centro, Norte", FechaDesde: "2026-02-11", FechaHasta: "2026-02-10"})
	require.NoError(t, err)
	assert.Equal(t, []string{"R-1", "379001", "R-3", "N-1"}, codigos(views))

	_, err = fotos.Save("R-1", FotoEntrega, "", []Upload{upload("a.jpg", "img")})
	require.NoError(t, err)
	_, err = svc.MarkNoEntregada("12")
	require.NoError(t, err)
	require.NoError(t, (&ApelacionService{db: db, now: Now}).Marcar(MarcarRequest{Codigo: "379001", MontoDescontado: 10}))

	views, err = svc.List(OrderQuery{Local: "Centro", Fecha: "2026-02-10"})
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.True(t, views[0].HasEntregaPhoto)
	assert.Len(t, views[0].FotosEntrega, 1)
	assert.True(t, views[1].NoEntregada)

	views, err = svc.List(OrderQuery{Local: "Centro", Fecha: "2026-02-10", ExcludeMarcadasApelacion: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"R-1"}, codigos(views))
}

func TestOrdersFindByCodigo(t *testing.T) {
	_, svc, _ := newOrderFixture(t)

	detail, err := svc.FindByCodigo("#379001")
	require.NoError(t, err)
	require.NotNil(t, detail.Order)
	assert.Equal(t, "12", detail.Order.DeliveryID)
	require.NotNil(t, detail.NoEntregada)
	assert.False(t, *detail.NoEntregada)

	detail, err = svc.FindByCodigo("ident-13")
	require.NoError(t, err)
	require.NotNil(t, detail.Order)
	assert.Equal(t, "R-3", detail.Order.CodigoIntegracion)

	detail, err = svc.FindByCodigo("nope")
	require.NoError(t, err)
	assert.Nil(t, detail.Order)
	assert.Empty(t, detail.Fotos.Entrega)
}

func TestOrdersUploadClearsNoEntregada(t *testing.T) {
	db, svc, _ := newOrderFixture(t)

	_, err := svc.MarkNoEntregada(" ")
	require.ErrorIs(t, err, models.ErrInvalidInput)

	id, err := svc.MarkNoEntregada("11")
	require.NoError(t, err)
	assert.Equal(t, "11", id)

	result, err := svc.UploadFotos("R-1", FotoApelacion, "Rappi", []Upload{upload("chat.png", "img")})
	require.NoError(t, err)
	require.NotNil(t, result.Canal)
	assert.Equal(t, "Rappi", *result.Canal)

	marks, err := models.FetchNoEntregadas(db)
	require.NoError(t, err)
	assert.Contains(t, marks, "11")

	result, err = svc.UploadFotos("R-1", FotoEntrega, "", []Upload{upload("puerta.jpg", "img")})
	require.NoError(t, err)
	assert.Nil(t, result.Canal)
	assert.Equal(t, []string{"puerta.jpg"}, result.Saved)

	marks, err = models.FetchNoEntregadas(db)
	require.NoError(t, err)
	assert.NotContains(t, marks, "11")
}

func TestOrdersOrganizeFotoRefs(t *testing.T) {
	_, svc, fotos := newOrderFixture(t)

	_, err := fotos.Save("ident-11", FotoEntrega, "", []Upload{upload("a.jpg", "img")})
	require.NoError(t, err)

	result, err := svc.OrganizeFotoRefs()
	require.NoError(t, err)
	assert.Equal(t, []OrganizeMove{{From: "ident-11", To: "R-1"}}, result.Moved)

	got, err := svc.Fotos("R-1")
	require.NoError(t, err)
	assert.Len(t, got.Entrega, 1)
}
