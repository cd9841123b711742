package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salchimonster/restaurant-reports/models"
)

func TestMergeAndNotify(t *testing.T) {
	db, orders, fotos := newOrderFixture(t)
	seedDeliveries(t, db, "2", "2026-02-10", deliveryRow("22", "2026-02-10 21:00:00", "Didi Food", "5764607523034368"))

	_, err := fotos.Save("5764607523034368", FotoEntrega, "", []Upload{upload("a.jpg", "img")})
	require.NoError(t, err)

	notifier := &recorder{}
	svc := NewMergeService(db, fotos, notifier)

	updated, err := svc.Merge("2026-02-10")
	require.NoError(t, err)
	assert.Zero(t, updated)

	_, err = models.MergeDidiOrders(db, "2026-02-10", "shop-2", map[string]string{
		"5764607523034368": "#379555",
		"999":              "#1",
	})
	require.NoError(t, err)

	require.NoError(t, svc.MergeAndNotify(context.Background(), "2026-02-10"))
	assert.Equal(t, []interface{}{
		NewSedeReady("1", "2026-02-10"),
		NewSedeReady("2", "2026-02-10"),
	}, notifier.all())

	byLocal, err := svc.RestaurantMap("2026-02-10")
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"1": {"#379001"}, "2": {"379555"}}, byLocal)

	detail, err := orders.FindByCodigo("379555")
	require.NoError(t, err)
	require.NotNil(t, detail.Order)
	assert.Equal(t, "22", detail.Order.DeliveryID)
	assert.True(t, *detail.HasEntregaPhoto)

	// A second pass finds nothing left to rename.
	updated, err = svc.Merge("2026-02-10")
	require.NoError(t, err)
	assert.Zero(t, updated)
}
