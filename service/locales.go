package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"salchimonster/restaurant-reports/models"
	"salchimonster/restaurant-reports/service/external"
)

type LocaleService struct {
	db     *gorm.DB
	api    external.RestaurantAPI
	filter models.LocaleFilter
}

func NewLocaleService(db *gorm.DB, api external.RestaurantAPI, filter models.LocaleFilter) *LocaleService {
	return &LocaleService{db: db, api: api, filter: filter}
}

// Sync replaces the stored locations with the ones the logged-in user may see.
func (s *LocaleService) Sync(ctx context.Context) ([]models.Locale, error) {
	session, err := models.FetchSession(s.db)
	if err != nil {
		return nil, err
	}
	if session.Token == "" {
		return nil, models.ErrNoToken
	}

	locales, err := s.api.Locales(ctx, *session)
	if err != nil {
		return nil, fmt.Errorf("LocaleService.Sync: %w", err)
	}

	if err = models.ReplaceLocales(s.db, locales); err != nil {
		return nil, err
	}
	log.Infof("Locales: %d guardados", len(locales))

	return locales, nil
}

// List returns the stored locations minus the blacklist, with display renames applied.
func (s *LocaleService) List() ([]models.Locale, error) {
	locales, err := models.FetchLocales(s.db)
	if err != nil {
		return nil, err
	}

	return s.filter.Apply(locales), nil
}

// IDByName resolves a location name as shown in the dashboard to its restaurant.pe id.
func (s *LocaleService) IDByName(name string) (string, bool) {
	locales, err := s.List()
	if err != nil {
		return "", false
	}

	l, ok := models.FindLocaleByName(locales, name)
	return l.ID, ok
}

// Canales lists every delivery channel seen in stored deliveries or sales reports.
func (s *LocaleService) Canales() ([]string, error) {
	fromDeliveries, err := models.FetchCanales(s.db)
	if err != nil {
		return nil, err
	}
	fromReports, err := models.FetchReportCanales(s.db)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	canales := []string{}
	for _, c := range append(fromDeliveries, fromReports...) {
		c = strings.TrimSpace(c)
		if c == "" || c == models.EmptyField {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		canales = append(canales, c)
	}
	sort.Strings(canales)

	return canales, nil
}

// SyncLoop refreshes the locations every interval, skipping runs without a token.
func (s *LocaleService) SyncLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sync(ctx); err != nil {
				log.Warnf("Locales refresh: %v", err)
			}
		}
	}
}
