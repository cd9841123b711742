package didi

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sede links a restaurant.pe location to its DiDi Food shop.
type Sede struct {
	RestaurantID   string `yaml:"restaurant_id" json:"restaurant_id"`
	DidiShopID     string `yaml:"didi_shop_id" json:"didi_shop_id"`
	NameRestaurant string `yaml:"name_restaurant,omitempty" json:"name_restaurant,omitempty"`
	NameDidi       string `yaml:"name_didi,omitempty" json:"name_didi,omitempty"`
}

// Mapa is the restaurant_id <-> DiDi shopId map, maintained by hand in a YAML file.
type Mapa struct {
	RestaurantToDidi map[string]string `yaml:"restaurant_id_to_didi" json:"restaurant_id_to_didi"`
	DidiToRestaurant map[string]string `yaml:"didi_to_restaurant_id" json:"didi_to_restaurant_id"`
	Sedes            []Sede            `yaml:"sedes" json:"sedes"`
}

func emptyMapa() Mapa {
	return Mapa{
		RestaurantToDidi: map[string]string{},
		DidiToRestaurant: map[string]string{},
		Sedes:            []Sede{},
	}
}

// LoadMapa reads the map file. A missing file is an empty map.
func LoadMapa(path string) (Mapa, error) {
	m := emptyMapa()

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return m, fmt.Errorf("LoadMapa: %w", err)
	}

	if err := yaml.Unmarshal(raw, &m); err != nil {
		return emptyMapa(), fmt.Errorf("LoadMapa: invalid yaml in %s: %w", path, err)
	}
	m.normalize()

	return m, nil
}

// normalize fills missing directions of the map from the sedes list.
func (m *Mapa) normalize() {
	if m.RestaurantToDidi == nil {
		m.RestaurantToDidi = map[string]string{}
	}
	if m.DidiToRestaurant == nil {
		m.DidiToRestaurant = map[string]string{}
	}
	if m.Sedes == nil {
		m.Sedes = []Sede{}
	}

	for _, s := range m.Sedes {
		rid, sid := strings.TrimSpace(s.RestaurantID), strings.TrimSpace(s.DidiShopID)
		if rid == "" || sid == "" {
			continue
		}
		if _, ok := m.RestaurantToDidi[rid]; !ok {
			m.RestaurantToDidi[rid] = sid
		}
		if _, ok := m.DidiToRestaurant[sid]; !ok {
			m.DidiToRestaurant[sid] = rid
		}
	}
	for rid, sid := range m.RestaurantToDidi {
		if _, ok := m.DidiToRestaurant[sid]; !ok {
			m.DidiToRestaurant[sid] = rid
		}
	}
}

// Link adds or replaces the entry for a restaurant.
func (m *Mapa) Link(s Sede) {
	if old, ok := m.RestaurantToDidi[s.RestaurantID]; ok {
		delete(m.DidiToRestaurant, old)
	}
	m.RestaurantToDidi[s.RestaurantID] = s.DidiShopID
	m.DidiToRestaurant[s.DidiShopID] = s.RestaurantID

	for i := range m.Sedes {
		if m.Sedes[i].RestaurantID == s.RestaurantID {
			m.Sedes[i] = s
			return
		}
	}
	m.Sedes = append(m.Sedes, s)
}

func (m Mapa) Save(path string) error {
	raw, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("Mapa.Save: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("Mapa.Save: %w", err)
	}

	return os.WriteFile(path, raw, 0o644)
}
