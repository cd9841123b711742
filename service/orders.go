package service

import (
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"salchimonster/restaurant-reports/models"
)

// OrderView is an order as listed in the dashboard, with its location and photo flags.
type OrderView struct {
	models.Order
	Local           string   `json:"Local"`
	RowKey          string   `json:"rowKey"`
	HasEntregaPhoto bool     `json:"has_entrega_photo"`
	FotosEntrega    []string `json:"fotos_entrega"`
	NoEntregada     bool     `json:"no_entregada"`
}

type OrderQuery struct {
	Local                    string
	Locales                  string
	Fecha                    string
	FechaDesde               string
	FechaHasta               string
	ExcludeMarcadasApelacion bool
}

// Sedes lists the requested locations: the comma separated Locales, or Local.
func (q OrderQuery) Sedes() []string {
	var sedes []string
	for _, s := range strings.Split(q.Locales, ",") {
		if s = strings.TrimSpace(s); s != "" {
			sedes = append(sedes, s)
		}
	}
	if len(sedes) == 0 && strings.TrimSpace(q.Local) != "" {
		sedes = []string{strings.TrimSpace(q.Local)}
	}

	return sedes
}

type OrderDetail struct {
	Order           *models.Order `json:"order"`
	HasEntregaPhoto *bool         `json:"has_entrega_photo,omitempty"`
	NoEntregada     *bool         `json:"no_entregada,omitempty"`
	Fotos           Fotos         `json:"fotos"`
}

type OrderService struct {
	db      *gorm.DB
	locales *LocaleService
	fotos   *FotoStore
}

func NewOrderService(db *gorm.DB, locales *LocaleService, fotos *FotoStore) *OrderService {
	return &OrderService{db: db, locales: locales, fotos: fotos}
}

// ForLocal returns the orders of a location (by display name) between desde and hasta.
func (s *OrderService) ForLocal(local string, desde string, hasta string) ([]models.Order, error) {
	localID, ok := s.locales.IDByName(local)
	if !ok {
		return nil, nil
	}

	deliveries, err := models.FetchDeliveries(s.db, localID, desde, hasta)
	if err != nil {
		return nil, err
	}

	orders := make([]models.Order, 0, len(deliveries))
	for _, d := range deliveries {
		orders = append(orders, d.Order())
	}

	return orders, nil
}

// List returns the orders of the requested locations. A range wins over a single day and
// no date at all yields an empty list.
func (s *OrderService) List(q OrderQuery) ([]OrderView, error) {
	sedes := q.Sedes()
	if len(sedes) == 0 {
		return nil, fmt.Errorf("Indica 'local' o 'locales' (nombres separados por coma): %w", models.ErrInvalidInput)
	}

	dates, err := ResolveDates(q.Fecha, q.FechaDesde, q.FechaHasta, "")
	if err != nil {
		return nil, err
	}
	views := []OrderView{}
	if len(dates) == 0 {
		return views, nil
	}
	desde, hasta := dates[0], dates[len(dates)-1]

	var marcados map[string]*models.Apelacion
	if q.ExcludeMarcadasApelacion {
		if marcados, err = models.FetchApelacionesByCodigo(s.db); err != nil {
			return nil, err
		}
	}

	noEntregadas, err := models.FetchNoEntregadas(s.db)
	if err != nil {
		return nil, err
	}

	for _, sede := range sedes {
		orders, err := s.ForLocal(sede, desde, hasta)
		if err != nil {
			return nil, err
		}

		for _, o := range orders {
			if _, ok := marcados[strings.TrimSpace(o.CodigoIntegracion)]; ok {
				continue
			}

			fotos := s.fotos.ForOrder(o)
			_, noEntregada := noEntregadas[strings.TrimSpace(o.DeliveryID)]
			views = append(views, OrderView{
				Order:           o,
				Local:           sede,
				RowKey:          fmt.Sprintf("%s-%s-%s", sede, strings.TrimSpace(o.CodigoIntegracion), o.Fecha),
				HasEntregaPhoto: s.fotos.HasEntrega(o),
				FotosEntrega:    fotos.Entrega,
				NoEntregada:     noEntregada,
			})
		}
	}

	return views, nil
}

func (s *OrderService) find(codigo string) (*models.Order, error) {
	d, err := models.FindDeliveryByCodigo(s.db, codigo)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	order := d.Order()
	return &order, nil
}

// FindByCodigo returns the order with its photos. Without an order, the photos stored
// under codigo are still returned.
func (s *OrderService) FindByCodigo(codigo string) (*OrderDetail, error) {
	order, err := s.find(codigo)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return &OrderDetail{Fotos: s.fotos.ForCodigo(codigo)}, nil
	}

	noEntregadas, err := models.FetchNoEntregadas(s.db)
	if err != nil {
		return nil, err
	}
	hasEntrega := s.fotos.HasEntrega(*order)
	_, noEntregada := noEntregadas[order.DeliveryID]

	return &OrderDetail{
		Order:           order,
		HasEntregaPhoto: &hasEntrega,
		NoEntregada:     &noEntregada,
		Fotos:           s.fotos.ForOrder(*order),
	}, nil
}

// Fotos lists the photos of every reference of the order behind codigo.
func (s *OrderService) Fotos(codigo string) (Fotos, error) {
	order, err := s.find(codigo)
	if err != nil {
		return Fotos{}, err
	}
	if order == nil {
		return s.fotos.ForCodigo(codigo), nil
	}

	return s.fotos.ForOrder(*order), nil
}

func (s *OrderService) MarkNoEntregada(deliveryID string) (string, error) {
	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		return "", fmt.Errorf("delivery_id requerido: %w", models.ErrInvalidInput)
	}
	if err := models.MarkNoEntregada(s.db, deliveryID); err != nil {
		return "", err
	}
	log.Infof("No entregada: marcado delivery_id=%s", deliveryID)

	return deliveryID, nil
}

type UploadResult struct {
	Saved []string `json:"saved"`
	Group string   `json:"group"`
	Canal *string  `json:"canal"`
}

// UploadFotos stores photos of an order. A delivery photo clears the no-entregada mark.
func (s *OrderService) UploadFotos(codigo string, group string, canal string, files []Upload) (*UploadResult, error) {
	saved, err := s.fotos.Save(codigo, group, canal, files)
	if err != nil {
		return nil, err
	}

	if group == FotoEntrega && len(saved) > 0 {
		order, err := s.find(codigo)
		if err != nil {
			return nil, err
		}
		if order != nil && order.DeliveryID != "" {
			removed, err := models.UnmarkNoEntregada(s.db, order.DeliveryID)
			if err != nil {
				return nil, err
			}
			if removed {
				log.Infof("No entregada: quitada marca delivery_id=%s (foto de entrega subida)", order.DeliveryID)
			}
		}
	}

	result := &UploadResult{Saved: saved, Group: group}
	if canal != "" {
		result.Canal = &canal
	}

	return result, nil
}

// OrganizeFotoRefs moves photo folders named by identificador único into the folder of
// the canonical code of each stored delivery.
func (s *OrderService) OrganizeFotoRefs() (OrganizeResult, error) {
	deliveries, err := models.FetchAllDeliveries(s.db)
	if err != nil {
		return OrganizeResult{}, err
	}

	altToCanon := make(map[string]string)
	for _, d := range deliveries {
		o := d.Order()
		canon := models.SanitizeCodigo(strings.TrimSpace(o.CodigoIntegracion))
		ident := strings.TrimSpace(o.IdentificadorUnico)
		if ident == "" || ident == models.EmptyField || o.CodigoIntegracion == models.EmptyField {
			continue
		}
		if alt := models.SanitizeCodigo(ident); alt != canon {
			altToCanon[alt] = canon
		}
	}

	return s.fotos.Organize(altToCanon), nil
}
