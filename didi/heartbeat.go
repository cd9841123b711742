package didi

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"salchimonster/restaurant-reports/models"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Heartbeat is the last signal of life from a shop's browser extension.
type Heartbeat struct {
	ShopID   string          `json:"shopId"`
	ShopName string          `json:"shopName"`
	LastSeen time.Time       `json:"lastSeen"`
	Data     json.RawMessage `json:"data"`
}

// Store persists heartbeats so a restart keeps the shops that were ever installed.
type Store interface {
	Save(ctx context.Context, hb Heartbeat) error
	All(ctx context.Context) ([]Heartbeat, error)
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Save(ctx context.Context, hb Heartbeat) error {
	row := models.DidiHeartbeat{
		ShopID:   hb.ShopID,
		ShopName: hb.ShopName,
		LastSeen: hb.LastSeen,
		Data:     string(hb.Data),
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("GormStore.Save: %w", err)
	}

	return nil
}

func (s *GormStore) All(ctx context.Context) ([]Heartbeat, error) {
	var rows []models.DidiHeartbeat
	if err := s.db.WithContext(ctx).Order("shop_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("GormStore.All: %w", err)
	}

	out := make([]Heartbeat, 0, len(rows))
	for _, r := range rows {
		hb := Heartbeat{ShopID: r.ShopID, ShopName: r.ShopName, LastSeen: r.LastSeen}
		if json.Valid([]byte(r.Data)) {
			hb.Data = json.RawMessage(r.Data)
		}
		out = append(out, hb)
	}

	return out, nil
}

const redisHeartbeatsKey = "didi:heartbeats"

// RedisStore keeps heartbeats in one hash, field shopId, value the JSON heartbeat.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// ConnectRedis accepts a redis:// URL or a plain host:port.
func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ConnectRedis: ping: %w", err)
	}

	return client, nil
}

func (s *RedisStore) Save(ctx context.Context, hb Heartbeat) error {
	raw, err := json.Marshal(hb)
	if err != nil {
		return fmt.Errorf("RedisStore.Save: %w", err)
	}

	if err := s.client.HSet(ctx, redisHeartbeatsKey, hb.ShopID, raw).Err(); err != nil {
		return fmt.Errorf("RedisStore.Save: %w", err)
	}

	return nil
}

func (s *RedisStore) All(ctx context.Context) ([]Heartbeat, error) {
	values, err := s.client.HGetAll(ctx, redisHeartbeatsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("RedisStore.All: %w", err)
	}

	out := make([]Heartbeat, 0, len(values))
	for _, v := range values {
		var hb Heartbeat
		if err := json.Unmarshal([]byte(v), &hb); err != nil {
			continue
		}
		out = append(out, hb)
	}

	return out, nil
}

// SedeStatus is one entry of the DiDi sedes list shown in the dashboard.
type SedeStatus struct {
	ShopID         string  `json:"shopId"`
	ShopName       string  `json:"shopName"`
	LastSeen       float64 `json:"lastSeen"`
	Connected      bool    `json:"connected"`
	NeverInstalled bool    `json:"neverInstalled"`
	RestaurantID   *string `json:"restaurant_id"`
}

type ExtensionStatus struct {
	HasDidi bool `json:"hasDidi"`
	Active  bool `json:"active"`
}

// Registry tracks heartbeats in memory, backed by a Store. Shops are never removed.
type Registry struct {
	store     Store
	stale     time.Duration
	blacklist map[string]struct{}
	now       func() time.Time

	mu    sync.RWMutex
	sedes map[string]Heartbeat
}

func NewRegistry(store Store, stale time.Duration, blacklist []string) *Registry {
	r := &Registry{
		store:     store,
		stale:     stale,
		blacklist: make(map[string]struct{}, len(blacklist)),
		now:       time.Now,
		sedes:     make(map[string]Heartbeat),
	}
	for _, id := range blacklist {
		if id = strings.TrimSpace(id); id != "" {
			r.blacklist[id] = struct{}{}
		}
	}

	return r
}

// Load restores the heartbeats persisted before a restart.
func (r *Registry) Load(ctx context.Context) error {
	all, err := r.store.All(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, hb := range all {
		r.sedes[hb.ShopID] = hb
	}

	return nil
}

// Beat records a heartbeat from the extension payload {shopId, shopName, ...}.
func (r *Registry) Beat(ctx context.Context, data json.RawMessage) (Heartbeat, error) {
	var fields struct {
		ShopID   interface{} `json:"shopId"`
		ShopName string      `json:"shopName"`
	}
	if err := decode(data, &fields); err != nil {
		return Heartbeat{}, fmt.Errorf("Falta 'data' con shopId y shopName: %w", models.ErrInvalidInput)
	}

	shopID := ""
	if fields.ShopID != nil {
		shopID = strings.TrimSpace(fmt.Sprint(fields.ShopID))
	}
	if shopID == "" {
		return Heartbeat{}, fmt.Errorf("data.shopId es requerido: %w", models.ErrInvalidInput)
	}

	hb := Heartbeat{
		ShopID:   shopID,
		ShopName: strings.TrimSpace(fields.ShopName),
		LastSeen: r.now(),
		Data:     data,
	}

	r.mu.Lock()
	r.sedes[shopID] = hb
	r.mu.Unlock()

	if err := r.store.Save(ctx, hb); err != nil {
		log.Warnf("DiDi heartbeat %s: no se pudo persistir: %v", shopID, err)
	}

	return hb, nil
}

func (r *Registry) connected(hb Heartbeat, now time.Time) bool {
	return !hb.LastSeen.IsZero() && now.Sub(hb.LastSeen) < r.stale
}

func (r *Registry) blacklisted(shopID string) bool {
	_, ok := r.blacklist[shopID]
	return ok
}

// Sedes lists every shop that ever sent a heartbeat plus the mapped shops that never
// did, minus the blacklist.
func (r *Registry) Sedes(mapa Mapa) []SedeStatus {
	now := r.now()

	r.mu.RLock()
	out := make([]SedeStatus, 0, len(r.sedes)+len(mapa.Sedes))
	seen := make(map[string]struct{}, len(r.sedes))
	for id, hb := range r.sedes {
		if r.blacklisted(id) {
			continue
		}
		name := hb.ShopName
		if name == "" {
			name = id
		}
		out = append(out, SedeStatus{
			ShopID:       id,
			ShopName:     name,
			LastSeen:     float64(hb.LastSeen.UnixMilli()) / 1000,
			Connected:    r.connected(hb, now),
			RestaurantID: lookup(mapa.DidiToRestaurant, id),
		})
		seen[id] = struct{}{}
	}
	r.mu.RUnlock()

	sortSedes(out)

	for _, s := range mapa.Sedes {
		id := strings.TrimSpace(s.DidiShopID)
		if id == "" || s.RestaurantID == "" || r.blacklisted(id) {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}

		name := s.NameRestaurant
		if name == "" {
			name = s.NameDidi
		}
		if name == "" {
			name = id
		}
		rid := s.RestaurantID
		out = append(out, SedeStatus{
			ShopID:         id,
			ShopName:       name,
			NeverInstalled: true,
			RestaurantID:   &rid,
		})
		seen[id] = struct{}{}
	}

	return out
}

// ExtensionStatus reports whether a restaurant has a DiDi shop and whether its
// extension is sending heartbeats.
func (r *Registry) ExtensionStatus(mapa Mapa, restaurantID string) ExtensionStatus {
	shopID, ok := mapa.RestaurantToDidi[strings.TrimSpace(restaurantID)]
	if !ok || shopID == "" {
		return ExtensionStatus{}
	}

	r.mu.RLock()
	hb, ok := r.sedes[shopID]
	r.mu.RUnlock()
	if !ok {
		return ExtensionStatus{HasDidi: true}
	}

	return ExtensionStatus{HasDidi: true, Active: r.connected(hb, r.now())}
}

func lookup(m map[string]string, key string) *string {
	v, ok := m[key]
	if !ok {
		return nil
	}

	return &v
}
