package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"salchimonster/restaurant-reports/models"
)

// SedeReady tells the dashboards to reload the orders of a location.
type SedeReady struct {
	Type    string `json:"type"`
	LocalID string `json:"local_id"`
	Fecha   string `json:"fecha"`
}

func NewSedeReady(localID string, fecha string) SedeReady {
	return SedeReady{Type: "sede_ready", LocalID: localID, Fecha: fecha}
}

// MergeService replaces the long DiDi order ids restaurant.pe stores with the short
// display numbers captured from the DiDi console.
type MergeService struct {
	db       *gorm.DB
	fotos    *FotoStore
	notifier Broadcaster
}

func NewMergeService(db *gorm.DB, fotos *FotoStore, notifier Broadcaster) *MergeService {
	return &MergeService{db: db, fotos: fotos, notifier: notifier}
}

// RestaurantMap lists, per location, the DiDi Food codes stored for fecha.
func (s *MergeService) RestaurantMap(fecha string) (map[string][]string, error) {
	deliveries, err := models.FetchDeliveriesByFecha(s.db, fecha)
	if err != nil {
		return nil, err
	}

	byLocal := make(map[string][]string)
	seen := make(map[string]struct{})
	for _, d := range deliveries {
		cod := strings.TrimSpace(d.CodigoLima)
		if d.Canal != string(models.DidiFood) || cod == "" {
			continue
		}
		key := d.LocalID + "|" + cod
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		byLocal[d.LocalID] = append(byLocal[d.LocalID], cod)
	}

	return byLocal, nil
}

// Merge crosses the stored DiDi Food deliveries of fecha with the captured DiDi map.
// Photos under the old code are copied to the display number folder before the code
// changes. It returns the number of deliveries updated.
func (s *MergeService) Merge(fecha string) (int, error) {
	didiMap, err := models.FetchDidiOrders(s.db, fecha)
	if err != nil {
		return 0, err
	}
	if len(didiMap) == 0 {
		return 0, nil
	}

	deliveries, err := models.FetchDeliveriesByFecha(s.db, fecha)
	if err != nil {
		return 0, err
	}

	updated := 0
	err = s.db.Transaction(func(tx *gorm.DB) error {
		for _, d := range deliveries {
			if d.Canal != string(models.DidiFood) {
				continue
			}
			cod := strings.TrimSpace(d.CodigoLima)
			display := models.NormalizeDisplayNum(didiMap[cod])
			if cod == "" || display == "" || display == cod {
				continue
			}

			if _, err := s.fotos.CopyCodigo(cod, display); err != nil {
				log.Warnf("Merge DiDi: no se pudieron copiar fotos %s -> %s: %v", cod, display, err)
			}

			if err := tx.Model(&models.Delivery{}).Where("id = ?", d.ID).Update("codigo_lima", display).Error; err != nil {
				return fmt.Errorf("Merge: delivery %d: %w", d.ID, err)
			}
			updated++
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	if updated > 0 {
		log.Debugf("Mapa DiDi cruzado para %s: %d deliverys actualizados", fecha, updated)
	}

	return updated, nil
}

// MergeAndNotify merges fecha and sends sede_ready for every location with DiDi orders.
func (s *MergeService) MergeAndNotify(ctx context.Context, fecha string) error {
	if _, err := s.Merge(fecha); err != nil {
		return err
	}

	byLocal, err := s.RestaurantMap(fecha)
	if err != nil {
		return err
	}
	if s.notifier == nil {
		return nil
	}

	locales := make([]string, 0, len(byLocal))
	for localID := range byLocal {
		locales = append(locales, localID)
	}
	sort.Strings(locales)
	for _, localID := range locales {
		s.notifier.Broadcast(ctx, NewSedeReady(localID, fecha))
	}

	return nil
}
