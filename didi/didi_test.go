package didi

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"salchimonster/restaurant-reports/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newGormStore(t *testing.T) *GormStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "didi.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.DidiHeartbeat{}))

	return NewGormStore(db)
}

func TestParseDailyOrders(t *testing.T) {
	body := []byte(`{"data":{
		"serving":[{"orderId":5764607523034234881,"displayNum":"#379001","shopId":"shop-9"},{"orderId":"","displayNum":"#1"}],
		"highlight":[{"orderId":"5764607523034234999","displayNum":" #379002 "}]
	}}`)

	got, err := ParseDailyOrders(body)
	require.NoError(t, err)
	assert.Equal(t, 3, got.OrdersCount)
	assert.Equal(t, "shop-9", got.ShopID)
	assert.Equal(t, map[string]string{
		"5764607523034234881": "#379001",
		"5764607523034234999": "#379002",
	}, got.Orders)

	_, err = ParseDailyOrders([]byte(`[1,2]`))
	require.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestParseShops(t *testing.T) {
	shops := ParseShops([]byte(`{"errno":0,"data":{"shopList":[{"shopId":11,"shopName":"Centro"},{"shopId":"12","shopName":"Norte"}]}}`))
	require.Len(t, shops, 2)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal(shops[0], &first))
	assert.Equal(t, "Centro", first["shopName"])

	assert.Empty(t, ParseShops([]byte(`{"data":[]}`)))
}

func TestMapaLoadSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "didi", "mapa.yaml")

	m, err := LoadMapa(path)
	require.NoError(t, err)
	assert.Empty(t, m.Sedes)

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`
sedes:
  - restaurant_id: "12"
    didi_shop_id: "shop-12"
    name_restaurant: Centro
`), 0o644))

	m, err = LoadMapa(path)
	require.NoError(t, err)
	assert.Equal(t, "shop-12", m.RestaurantToDidi["12"])
	assert.Equal(t, "12", m.DidiToRestaurant["shop-12"])

	m.Link(Sede{RestaurantID: "12", DidiShopID: "shop-99"})
	require.NoError(t, m.Save(path))

	m, err = LoadMapa(path)
	require.NoError(t, err)
	assert.Equal(t, "shop-99", m.RestaurantToDidi["12"])
	assert.NotContains(t, m.DidiToRestaurant, "shop-12")
	assert.Len(t, m.Sedes, 1)

	require.NoError(t, os.WriteFile(path, []byte("sedes: [\n"), 0o644))
	_, err = LoadMapa(path)
	require.Error(t, err)
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	store := newGormStore(t)

	now := time.Date(2026, 2, 14, 18, 0, 0, 0, time.UTC)
	reg := NewRegistry(store, 36*time.Second, []string{"shop-x"})
	reg.now = func() time.Time { return now }

	_, err := reg.Beat(ctx, json.RawMessage(`{"shopName":"sin id"}`))
	require.ErrorIs(t, err, models.ErrInvalidInput)

	hb, err := reg.Beat(ctx, json.RawMessage(`{"shopId":"shop-1","shopName":"Centro"}`))
	require.NoError(t, err)
	assert.Equal(t, "shop-1", hb.ShopID)
	_, err = reg.Beat(ctx, json.RawMessage(`{"shopId":"shop-x","shopName":"Pruebas"}`))
	require.NoError(t, err)

	mapa := emptyMapa()
	mapa.Link(Sede{RestaurantID: "12", DidiShopID: "shop-1"})
	mapa.Link(Sede{RestaurantID: "13", DidiShopID: "shop-2", NameDidi: "Norte Didi"})

	sedes := reg.Sedes(mapa)
	require.Len(t, sedes, 2)
	assert.Equal(t, "shop-1", sedes[0].ShopID)
	assert.True(t, sedes[0].Connected)
	require.NotNil(t, sedes[0].RestaurantID)
	assert.Equal(t, "12", *sedes[0].RestaurantID)
	assert.True(t, sedes[1].NeverInstalled)
	assert.Equal(t, "Norte Didi", sedes[1].ShopName)

	assert.Equal(t, ExtensionStatus{HasDidi: true, Active: true}, reg.ExtensionStatus(mapa, "12"))
	assert.Equal(t, ExtensionStatus{HasDidi: true}, reg.ExtensionStatus(mapa, "13"))
	assert.Equal(t, ExtensionStatus{}, reg.ExtensionStatus(mapa, "99"))

	now = now.Add(time.Minute)
	assert.False(t, reg.Sedes(mapa)[0].Connected)

	// a restarted registry keeps the installed shops
	restarted := NewRegistry(store, 36*time.Second, nil)
	require.NoError(t, restarted.Load(ctx))
	assert.Len(t, restarted.Sedes(emptyMapa()), 2)
}

type failingStore struct{}

func (failingStore) Save(ctx context.Context, hb Heartbeat) error {
	return errors.New("redis: connection refused")
}

func (failingStore) All(ctx context.Context) ([]Heartbeat, error) {
	return nil, nil
}

func TestRegistryBeatSurvivesStoreFailure(t *testing.T) {
	reg := NewRegistry(failingStore{}, 36*time.Second, nil)

	hb, err := reg.Beat(context.Background(), json.RawMessage(`{"shopId":"shop-1","shopName":"Centro"}`))
	require.NoError(t, err)
	assert.Equal(t, "shop-1", hb.ShopID)

	sedes := reg.Sedes(emptyMapa())
	require.Len(t, sedes, 1)
	assert.True(t, sedes[0].Connected)
}

func TestSuggest(t *testing.T) {
	locales := []models.Locale{
		{ID: "1", Name: "Salchimonster Centro"},
		{ID: "2", Name: "Norte Plaza"},
		{ID: "3", Name: "Laureles"},
		{ID: "4", Name: "Ya enlazada"},
	}
	shops := []SedeStatus{
		{ShopID: "a", ShopName: "Centro"},
		{ShopID: "b", ShopName: "Salchimonster Norte Plaza 2"},
		{ShopID: "c", ShopName: "Zzz"},
	}
	mapa := emptyMapa()
	mapa.Link(Sede{RestaurantID: "4", DidiShopID: "d"})

	got := Suggest(locales, shops, mapa)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].RestaurantID)
	assert.Equal(t, "a", got[0].ShopID)
	assert.Equal(t, 1.0, got[0].Correlation)
	assert.Equal(t, "2", got[1].RestaurantID)
	assert.Equal(t, "b", got[1].ShopID)
	assert.Equal(t, "b", got[1].Sede().DidiShopID)
}
