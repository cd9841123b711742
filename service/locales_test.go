package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salchimonster/restaurant-reports/models"
)

func TestLocalesSync(t *testing.T) {
	db := newTestDB(t)
	api := &fakeAPI{locales: []models.Locale{
		{ID: "10", Name: "Modelia"},
		{ID: "3", Name: "bosa"},
		{ID: "99", Name: "Pruebas"},
	}}
	filter := models.NewLocaleFilter([]string{"99"}, map[string]string{"3": "Bosa Centro"})
	svc := NewLocaleService(db, api, filter)

	_, err := svc.Sync(context.Background())
	require.ErrorIs(t, err, models.ErrNoToken)

	saveToken(t, db, "tok")
	saved, err := svc.Sync(context.Background())
	require.NoError(t, err)
	assert.Len(t, saved, 3)
	assert.Equal(t, []string{"tok"}, api.tokens)

	locales, err := svc.List()
	require.NoError(t, err)
	assert.Equal(t, []models.Locale{{ID: "3", Name: "Bosa Centro"}, {ID: "10", Name: "Modelia"}}, stripTimes(locales))

	id, ok := svc.IDByName("Bosa Centro")
	assert.True(t, ok)
	assert.Equal(t, "3", id)

	_, ok = svc.IDByName("Pruebas")
	assert.False(t, ok)
}

func TestLocalesCanales(t *testing.T) {
	db := newTestDB(t)
	svc := NewLocaleService(db, &fakeAPI{}, models.LocaleFilter{})

	seedDeliveries(t, db, "1", "2026-02-10",
		deliveryRow("1", "2026-02-10 13:00:00", "Rappi", "R-1"),
		deliveryRow("2", "2026-02-10 14:00:00", "Didi Food", "555000111"),
		deliveryRow("3", "2026-02-10 15:00:00", "Rappi", "R-2"),
	)

	canales, err := svc.Canales()
	require.NoError(t, err)
	assert.Equal(t, []string{"Didi Food", "Rappi"}, canales)
}

func stripTimes(locales []models.Locale) []models.Locale {
	out := make([]models.Locale, 0, len(locales))
	for _, l := range locales {
		out = append(out, models.Locale{ID: l.ID, Name: l.Name})
	}

	return out
}
