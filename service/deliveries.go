package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"salchimonster/restaurant-reports/models"
	"salchimonster/restaurant-reports/service/external"
)

type DeliveryService struct {
	db         *gorm.DB
	api        external.RestaurantAPI
	reportsDir string
}

func NewDeliveryService(db *gorm.DB, api external.RestaurantAPI, reportsDir string) *DeliveryService {
	return &DeliveryService{db: db, api: api, reportsDir: reportsDir}
}

func (s *DeliveryService) session() (*models.Session, error) {
	session, err := models.FetchSession(s.db)
	if err != nil {
		return nil, err
	}
	if session.Token == "" {
		return nil, models.ErrNoToken
	}

	return session, nil
}

// FetchForLocal downloads the latest deliveries of a location from restaurant.pe.
func (s *DeliveryService) FetchForLocal(ctx context.Context, localID string) ([]models.DeliveryRow, error) {
	session, err := s.session()
	if err != nil {
		return nil, err
	}

	rows, err := s.api.Deliveries(ctx, *session, localID)
	if err != nil {
		return nil, fmt.Errorf("FetchForLocal: local %s: %w", localID, err)
	}

	return rows, nil
}

// SaveForLocal stores the rows that belong to fecha. See models.UpsertDeliveries.
func (s *DeliveryService) SaveForLocal(localID string, fecha string, rows []models.DeliveryRow) (int, error) {
	return models.UpsertDeliveries(s.db, localID, fecha, rows)
}

// Refresh fetches and stores the deliveries of a location for fecha.
func (s *DeliveryService) Refresh(ctx context.Context, localID string, fecha string) (int, error) {
	rows, err := s.FetchForLocal(ctx, localID)
	if err != nil {
		return 0, err
	}

	saved, err := s.SaveForLocal(localID, fecha, rows)
	if err != nil {
		return 0, err
	}
	log.Debugf("Deliverys local %s: %d filas recibidas, %d del %s", localID, len(rows), saved, fecha)

	return saved, nil
}

type SalesReportResult struct {
	File string `json:"file"`
	Rows int    `json:"rows"`
}

// DownloadSalesReport saves the Excel sales report for [desde, hasta] and stores its rows.
func (s *DeliveryService) DownloadSalesReport(ctx context.Context, desde string, hasta string) (*SalesReportResult, error) {
	if _, err := ParseDate(desde); err != nil {
		return nil, fmt.Errorf("Fechas deben ser YYYY-MM-DD (ej: 2026-02-01): %w", models.ErrInvalidInput)
	}
	if _, err := ParseDate(hasta); err != nil {
		return nil, fmt.Errorf("Fechas deben ser YYYY-MM-DD (ej: 2026-02-01): %w", models.ErrInvalidInput)
	}

	session, err := s.session()
	if err != nil {
		return nil, err
	}

	data, err := s.api.SalesReport(ctx, *session, desde, hasta)
	if err != nil {
		if errors.Is(err, external.ErrUnauthorized) {
			return nil, models.ErrNoToken
		}
		return nil, fmt.Errorf("DownloadSalesReport: %w", err)
	}

	if err = os.MkdirAll(s.reportsDir, 0o755); err != nil {
		return nil, fmt.Errorf("DownloadSalesReport: %w", err)
	}
	file := filepath.Join(s.reportsDir, fmt.Sprintf("InformeVentas_%s_%s.xlsx", desde, hasta))
	if err = os.WriteFile(file, data, 0o644); err != nil {
		return nil, fmt.Errorf("DownloadSalesReport: %w", err)
	}

	rows, err := external.ParseSalesReport(data)
	if err == nil {
		err = models.SaveReportRows(s.db, rows)
	}
	if err != nil {
		log.Warnf("Informe de ventas: no se pudo extraer filas: %v", err)
		return &SalesReportResult{File: file}, nil
	}
	log.Infof("Informe de ventas %s..%s: %d filas", desde, hasta, len(rows))

	return &SalesReportResult{File: file, Rows: len(rows)}, nil
}
