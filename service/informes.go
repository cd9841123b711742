package service

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gorm.io/gorm"

	"salchimonster/restaurant-reports/models"
)

const (
	maestroDefaultRows = 20
	maestroMaxRows     = 500
)

type InformeService struct {
	db      *gorm.DB
	locales *LocaleService
	fotos   *FotoStore
}

func NewInformeService(db *gorm.DB, locales *LocaleService, fotos *FotoStore) *InformeService {
	return &InformeService{db: db, locales: locales, fotos: fotos}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func orEmpty(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return models.EmptyField
	}

	return s
}

func requireRange(desde string, hasta string) ([]string, error) {
	if strings.TrimSpace(desde) == "" || strings.TrimSpace(hasta) == "" {
		return nil, fmt.Errorf("fecha_desde y fecha_hasta requeridos (YYYY-MM-DD): %w", models.ErrInvalidInput)
	}

	return DateRange(desde, hasta)
}

type localOrders struct {
	local  string
	orders []models.Order
}

// ordersByLocal walks the listed locations, optionally only the one named local, and
// returns their orders with a usable code between desde and hasta.
func (s *InformeService) ordersByLocal(local string, desde string, hasta string) ([]localOrders, error) {
	locales, err := s.locales.List()
	if err != nil {
		return nil, err
	}

	var out []localOrders
	for _, l := range locales {
		if local != "" && l.Name != local {
			continue
		}

		deliveries, err := models.FetchDeliveries(s.db, l.ID, desde, hasta)
		if err != nil {
			return nil, err
		}

		lo := localOrders{local: l.Name}
		for _, d := range deliveries {
			o := d.Order()
			if cod := strings.TrimSpace(o.CodigoIntegracion); cod == "" || cod == models.EmptyField {
				continue
			}
			lo.orders = append(lo.orders, o)
		}
		out = append(out, lo)
	}

	return out, nil
}

// Informe builds the per day, location and channel series of the reports section.
func (s *InformeService) Informe(desde string, hasta string) (*models.Informe, error) {
	dates, err := requireRange(desde, hasta)
	if err != nil {
		return nil, err
	}
	desde, hasta = dates[0], dates[len(dates)-1]

	byLocal, err := s.ordersByLocal("", desde, hasta)
	if err != nil {
		return nil, err
	}

	ordenesDia := map[string]int{}
	ordenesSede := map[string]int{}
	ordenesCanal := map[string]int{}
	total := 0
	for _, lo := range byLocal {
		for _, o := range lo.orders {
			total++
			ordenesDia[o.Fecha]++
			ordenesSede[lo.local]++
			ordenesCanal[orEmpty(o.Canal)]++
		}
	}

	items, err := models.FetchApelaciones(s.db, models.ApelacionFilter{Desde: desde, Hasta: hasta})
	if err != nil {
		return nil, err
	}

	apelacionesDia := map[string]int{}
	apelacionesSede := map[string]int{}
	apelacionesCanal := map[string]int{}
	reembolsosDia := map[string]int{}
	perdidaDia := map[string]float64{}
	perdidaSede := map[string]float64{}
	perdidaCanal := map[string]float64{}

	informe := &models.Informe{}
	var descontado, devuelto float64
	for _, ap := range items {
		fecha := ap.Fecha
		if len(fecha) > 10 {
			fecha = fecha[:10]
		}
		local, canal := orEmpty(ap.Local), orEmpty(ap.Canal)
		perdida := ap.Perdida()

		apelacionesDia[fecha]++
		apelacionesSede[local]++
		apelacionesCanal[canal]++
		perdidaDia[fecha] += perdida
		perdidaSede[local] += perdida
		perdidaCanal[canal] += perdida

		descontado += ap.MontoDescontado
		devuelto += ap.MontoDevueltoValue()
		if ap.MontoDevueltoValue() > 0 && ap.TotalReembolsado() >= ap.MontoDevueltoValue() {
			informe.Resumen.TotalReembolsos++
			reembolsosDia[fecha]++
		}
	}

	informe.Resumen.TotalOrdenes = total
	informe.Resumen.TotalApelaciones = len(items)
	informe.Resumen.TotalDescontadoCanal = round2(descontado)
	informe.Resumen.TotalDevuelto = round2(devuelto)
	informe.Resumen.TotalPerdida = round2(descontado - devuelto)

	informe.PorDia = make([]models.InformeDia, 0, len(dates))
	for _, d := range dates {
		informe.PorDia = append(informe.PorDia, models.InformeDia{
			Fecha:       d,
			Ordenes:     ordenesDia[d],
			Apelaciones: apelacionesDia[d],
			Reembolsos:  reembolsosDia[d],
			Perdida:     round2(perdidaDia[d]),
		})
	}

	informe.PorSede = []models.InformeSede{}
	for _, local := range unionKeys(ordenesSede, apelacionesSede) {
		informe.PorSede = append(informe.PorSede, models.InformeSede{
			Local:       local,
			Ordenes:     ordenesSede[local],
			Apelaciones: apelacionesSede[local],
			Perdida:     round2(perdidaSede[local]),
		})
	}

	informe.PorCanal = []models.InformeCanal{}
	for _, canal := range unionKeys(ordenesCanal, apelacionesCanal) {
		informe.PorCanal = append(informe.PorCanal, models.InformeCanal{
			Canal:       canal,
			Ordenes:     ordenesCanal[canal],
			Apelaciones: apelacionesCanal[canal],
			Perdida:     round2(perdidaCanal[canal]),
		})
	}

	return informe, nil
}

func unionKeys(a map[string]int, b map[string]int) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

type MaestroQuery struct {
	Local  string
	Desde  string
	Hasta  string
	First  int
	Rows   int
	Filter string
}

// MaestroRow is one order of the master report joined with its dispute and photos.
type MaestroRow struct {
	Local            string                   `json:"local"`
	Fecha            string                   `json:"fecha"`
	Codigo           string                   `json:"codigo"`
	Canal            string                   `json:"canal"`
	Cliente          string                   `json:"cliente"`
	MontoPagado      *string                  `json:"monto_pagado"`
	Hora             string                   `json:"hora"`
	DeliveryID       string                   `json:"delivery_id"`
	HasEntregaPhoto  bool                     `json:"has_entrega_photo"`
	FotosEntrega     []string                 `json:"fotos_entrega"`
	FotosApelacion   map[string][]string      `json:"fotos_apelacion"`
	FotosRespuestas  []string                 `json:"fotos_respuestas"`
	Apelacion        *models.ApelacionView    `json:"apelacion"`
	EstadosApelacion []models.EstadoApelacion `json:"estados_apelacion"`
	EstadoApelacion  string                   `json:"estado_apelacion"`
	Perdida          float64                  `json:"perdida"`
}

func (r MaestroRow) matches(filter string) bool {
	for _, field := range []string{r.Local, r.Codigo, r.Canal, r.Cliente} {
		if strings.Contains(strings.ToLower(field), filter) {
			return true
		}
	}

	return false
}

type MaestroPage struct {
	Rows         []MaestroRow `json:"rows"`
	TotalRecords int          `json:"totalRecords"`
}

// MaestroRows returns every row of the master report, sorted by fecha, local and codigo
// and narrowed by the global filter.
func (s *InformeService) MaestroRows(q MaestroQuery) ([]MaestroRow, error) {
	dates, err := requireRange(q.Desde, q.Hasta)
	if err != nil {
		return nil, err
	}

	byLocal, err := s.ordersByLocal(strings.TrimSpace(q.Local), dates[0], dates[len(dates)-1])
	if err != nil {
		return nil, err
	}

	apelaciones, err := models.FetchApelacionesByCodigo(s.db)
	if err != nil {
		return nil, err
	}

	rows := []MaestroRow{}
	for _, lo := range byLocal {
		for _, o := range lo.orders {
			cod := strings.TrimSpace(o.CodigoIntegracion)
			fotos := s.fotos.ForOrder(o)
			row := MaestroRow{
				Local:            lo.local,
				Fecha:            o.Fecha,
				Codigo:           cod,
				Canal:            o.Canal,
				Cliente:          o.Cliente,
				MontoPagado:      o.MontoPagado,
				Hora:             o.Hora,
				DeliveryID:       o.DeliveryID,
				HasEntregaPhoto:  s.fotos.HasEntrega(o),
				FotosEntrega:     fotos.Entrega,
				FotosApelacion:   fotos.Apelacion,
				FotosRespuestas:  fotos.Respuestas,
				EstadosApelacion: []models.EstadoApelacion{},
			}

			if ap, ok := apelaciones[cod]; ok {
				view := ap.View()
				row.Apelacion = &view
				row.EstadosApelacion = view.Estados
				row.EstadoApelacion = string(view.Estado)
				row.Perdida = view.Perdida
			}
			rows = append(rows, row)
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Fecha != rows[j].Fecha {
			return rows[i].Fecha < rows[j].Fecha
		}
		if rows[i].Local != rows[j].Local {
			return rows[i].Local < rows[j].Local
		}
		return rows[i].Codigo < rows[j].Codigo
	})

	filter := strings.ToLower(strings.TrimSpace(q.Filter))
	if filter == "" {
		return rows, nil
	}

	filtered := []MaestroRow{}
	for _, r := range rows {
		if r.matches(filter) {
			filtered = append(filtered, r)
		}
	}

	return filtered, nil
}

// ReporteMaestro returns one page of the master report.
func (s *InformeService) ReporteMaestro(q MaestroQuery) (*MaestroPage, error) {
	if q.First < 0 {
		return nil, fmt.Errorf("first debe ser >= 0: %w", models.ErrInvalidInput)
	}
	if q.Rows == 0 {
		q.Rows = maestroDefaultRows
	}
	if q.Rows < 1 || q.Rows > maestroMaxRows {
		return nil, fmt.Errorf("rows debe estar entre 1 y %d: %w", maestroMaxRows, models.ErrInvalidInput)
	}

	rows, err := s.MaestroRows(q)
	if err != nil {
		return nil, err
	}

	page := &MaestroPage{Rows: []MaestroRow{}, TotalRecords: len(rows)}
	if q.First < len(rows) {
		end := q.First + q.Rows
		if end > len(rows) {
			end = len(rows)
		}
		page.Rows = rows[q.First:end]
	}

	return page, nil
}
