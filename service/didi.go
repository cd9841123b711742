package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"salchimonster/restaurant-reports/didi"
	"salchimonster/restaurant-reports/models"
)

type DailyOrdersResult struct {
	OK          bool    `json:"ok"`
	OrdersCount int     `json:"orders_count"`
	ShopID      *string `json:"shop_id"`
	MapFile     string  `json:"map_file"`
	MapEntries  int     `json:"map_entries"`
}

type HeartbeatResult struct {
	OK     bool   `json:"ok"`
	ShopID string `json:"shopId"`
}

type CaptureResult struct {
	OK          bool               `json:"ok"`
	Type        string             `json:"type"`
	DailyOrders *DailyOrdersResult `json:"daily_orders,omitempty"`
	Shops       int                `json:"shops,omitempty"`
}

type SedesPayload struct {
	Sedes []didi.SedeStatus `json:"sedes"`
}

// DidiService receives what the DiDi console extension and capturer send and keeps the
// restaurant.pe <-> DiDi shop map.
type DidiService struct {
	db       *gorm.DB
	registry *didi.Registry
	merge    *MergeService
	locales  *LocaleService
	sedes    Broadcaster
	mapaFile string
	now      func() time.Time

	mapaMu sync.Mutex
}

func NewDidiService(db *gorm.DB, registry *didi.Registry, merge *MergeService, locales *LocaleService, sedes Broadcaster, mapaFile string) *DidiService {
	return &DidiService{
		db:       db,
		registry: registry,
		merge:    merge,
		locales:  locales,
		sedes:    sedes,
		mapaFile: mapaFile,
		now:      Now,
	}
}

func (s *DidiService) today() string {
	return s.now().In(Colombia).Format(DateLayout)
}

// DailyOrdersPayload merges a dailyOrders/newOrders answer into today's DiDi map, then
// runs the merge and notifies the dashboards.
func (s *DidiService) DailyOrdersPayload(ctx context.Context, body []byte) (*DailyOrdersResult, error) {
	parsed, err := didi.ParseDailyOrders(body)
	if err != nil {
		return nil, err
	}

	fecha := s.today()
	entries, err := models.MergeDidiOrders(s.db, fecha, parsed.ShopID, parsed.Orders)
	if err != nil {
		return nil, err
	}

	if err = s.merge.MergeAndNotify(ctx, fecha); err != nil {
		log.Debugf("Merge al actualizar mapa DiDi: %v", err)
	}

	result := &DailyOrdersResult{
		OK:          true,
		OrdersCount: parsed.OrdersCount,
		MapFile:     "didi_orders:" + fecha,
		MapEntries:  entries,
	}
	if parsed.ShopID != "" {
		result.ShopID = &parsed.ShopID
	}

	return result, nil
}

func (s *DidiService) broadcastSedes(ctx context.Context) {
	if s.sedes == nil {
		return
	}
	s.sedes.Broadcast(ctx, s.CurrentSedes())
}

// Heartbeat records the {data: {shopId, shopName, ...}} the extension sends every ~30 s.
func (s *DidiService) Heartbeat(ctx context.Context, body []byte) (*HeartbeatResult, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		trimmed := bytes.TrimSpace(body)
		if json.Valid(trimmed) {
			return nil, fmt.Errorf("Body debe ser un objeto JSON: %w", models.ErrInvalidInput)
		}
		return nil, fmt.Errorf("Body debe ser JSON válido: %w", models.ErrInvalidInput)
	}

	data := bytes.TrimSpace(envelope["data"])
	if len(data) == 0 || data[0] != '{' {
		return nil, fmt.Errorf("Falta 'data' con shopId y shopName: %w", models.ErrInvalidInput)
	}

	hb, err := s.registry.Beat(ctx, json.RawMessage(data))
	if err != nil {
		return nil, err
	}
	s.broadcastSedes(ctx)

	return &HeartbeatResult{OK: true, ShopID: hb.ShopID}, nil
}

// Capture handles what the capturer forwards from the DiDi merchant console.
func (s *DidiService) Capture(ctx context.Context, captureType string, data json.RawMessage) (*CaptureResult, error) {
	result := &CaptureResult{OK: true, Type: captureType}

	switch captureType {
	case "dailyOrders", "newOrders":
		daily, err := s.DailyOrdersPayload(ctx, data)
		if err != nil {
			return nil, err
		}
		result.DailyOrders = daily
	case "getShops":
		for _, shop := range didi.ParseShops(data) {
			if _, err := s.registry.Beat(ctx, shop); err != nil {
				log.Warnf("DiDi capture: tienda ignorada: %v", err)
				continue
			}
			result.Shops++
		}
		s.broadcastSedes(ctx)
	default:
		return nil, fmt.Errorf("type debe ser dailyOrders, newOrders o getShops: %w", models.ErrInvalidInput)
	}

	return result, nil
}

func (s *DidiService) Mapa() (didi.Mapa, error) {
	s.mapaMu.Lock()
	defer s.mapaMu.Unlock()

	return didi.LoadMapa(s.mapaFile)
}

func (s *DidiService) SedesPayload() (SedesPayload, error) {
	mapa, err := s.Mapa()
	if err != nil {
		return SedesPayload{}, err
	}

	return SedesPayload{Sedes: s.registry.Sedes(mapa)}, nil
}

// CurrentSedes is the payload pushed on the sedes socket. A map that cannot be read
// only hides the never-installed entries.
func (s *DidiService) CurrentSedes() SedesPayload {
	payload, err := s.SedesPayload()
	if err != nil {
		log.Warnf("DiDi sedes: %v", err)
		return SedesPayload{Sedes: s.registry.Sedes(didi.Mapa{})}
	}

	return payload
}

func (s *DidiService) ExtensionStatus(restaurantID string) (didi.ExtensionStatus, error) {
	mapa, err := s.Mapa()
	if err != nil {
		return didi.ExtensionStatus{}, err
	}

	return s.registry.ExtensionStatus(mapa, restaurantID), nil
}

// Suggest proposes links between unmapped locations and DiDi shops by name.
func (s *DidiService) Suggest() ([]didi.Suggestion, error) {
	mapa, err := s.Mapa()
	if err != nil {
		return nil, err
	}

	locales, err := s.locales.List()
	if err != nil {
		return nil, err
	}

	suggestions := didi.Suggest(locales, s.registry.Sedes(mapa), mapa)
	if suggestions == nil {
		suggestions = []didi.Suggestion{}
	}

	return suggestions, nil
}

// Link stores a restaurant.pe <-> DiDi shop pair in the map file.
func (s *DidiService) Link(ctx context.Context, sede didi.Sede) (didi.Mapa, error) {
	if sede.RestaurantID == "" || sede.DidiShopID == "" {
		return didi.Mapa{}, fmt.Errorf("restaurant_id y didi_shop_id son requeridos: %w", models.ErrInvalidInput)
	}

	s.mapaMu.Lock()
	mapa, err := didi.LoadMapa(s.mapaFile)
	if err == nil {
		mapa.Link(sede)
		err = mapa.Save(s.mapaFile)
	}
	s.mapaMu.Unlock()
	if err != nil {
		return didi.Mapa{}, err
	}
	log.Infof("Mapa DiDi: restaurant %s -> shop %s", sede.RestaurantID, sede.DidiShopID)
	s.broadcastSedes(ctx)

	return mapa, nil
}

// MergeNow runs the merge for today without waiting for the scheduler or the extension.
func (s *DidiService) MergeNow(ctx context.Context) (string, error) {
	fecha := s.today()
	if err := s.merge.MergeAndNotify(ctx, fecha); err != nil {
		return "", err
	}

	return fecha, nil
}
