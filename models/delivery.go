package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeliveryRow is one item of obtenerDeliverysPorLocalSimple as sent by restaurant.pe.
type DeliveryRow map[string]interface{}

func (r DeliveryRow) Str(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// Canal reads the channel from the nested canaldelivery object, falling back to the flat field.
func (r DeliveryRow) Canal() string {
	if nested, ok := r["canaldelivery"].(map[string]interface{}); ok {
		if desc := DeliveryRow(nested).Str("canaldelivery_descripcion"); desc != "" {
			return desc
		}
	}

	return r.Str("canaldelivery_descripcion")
}

func (r DeliveryRow) Fecha() string {
	fechaHora := r.Str("delivery_fecha")
	if len(fechaHora) < 10 {
		return ""
	}

	return fechaHora[:10]
}

type Delivery struct {
	ID                 uint   `gorm:"primaryKey"`
	LocalID            string `gorm:"uniqueIndex:idx_delivery_key;size:32;not null"`
	Fecha              string `gorm:"uniqueIndex:idx_delivery_key;size:10;not null;index"`
	Key                string `gorm:"uniqueIndex:idx_delivery_key;size:191;not null"`
	DeliveryID         string `gorm:"index;size:64"`
	CodigoLima         string `gorm:"index;size:128"`
	CodigoIntegracion  string `gorm:"size:128"`
	IdentificadorUnico string `gorm:"index;size:128"`
	OrderIDCanal       string `gorm:"index;size:128"`
	FechaHora          string `gorm:"size:32"`
	Canal              string `gorm:"size:64"`
	Nombres            string
	Apellidos          string
	Celular            string `gorm:"size:32"`
	Importe            string `gorm:"size:32"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func NewDelivery(localID string, row DeliveryRow) Delivery {
	d := Delivery{
		LocalID:            localID,
		Fecha:              row.Fecha(),
		DeliveryID:         row.Str("delivery_id"),
		CodigoLima:         row.Str("delivery_codigolimadelivery"),
		CodigoIntegracion:  row.Str("delivery_codigointegracion"),
		IdentificadorUnico: row.Str("delivery_identificadorunico"),
		OrderIDCanal:       row.Str("delivery_codigolimadelivery_orderid"),
		FechaHora:          row.Str("delivery_fecha"),
		Canal:              row.Canal(),
		Nombres:            row.Str("delivery_nombres"),
		Apellidos:          row.Str("delivery_apellidos"),
		Celular:            row.Str("delivery_celular"),
		Importe:            row.Str("delivery_importe"),
	}
	d.Key = d.deliveryKey()

	return d
}

// Rows without a delivery_id are identified by their code and timestamp.
func (d Delivery) deliveryKey() string {
	if d.DeliveryID != "" {
		return d.DeliveryID
	}

	return fmt.Sprintf("%s|%s|%s", d.CodigoLima, d.IdentificadorUnico, d.FechaHora)
}

// Codigo is the canonical order code shown to users and used for photo folders.
func (d Delivery) Codigo() string {
	cod := d.CodigoLima
	if cod == "" {
		cod = d.CodigoIntegracion
	}
	cod = strings.TrimSpace(cod)
	if normalized := NormalizeDisplayNum(cod); normalized != "" {
		cod = normalized
	}
	if cod == "" {
		return EmptyField
	}

	return cod
}

func (d Delivery) Cliente() string {
	nombres := CleanPrivacyName(d.Nombres)
	apellidos := CleanPrivacyName(d.Apellidos)
	if apellidos != "" && apellidos != "." {
		return strings.TrimSpace(nombres + " " + apellidos)
	}
	if nombres == "" {
		return EmptyField
	}

	return nombres
}

func (d Delivery) Hora() string {
	switch {
	case len(d.FechaHora) >= 19:
		return d.FechaHora[11:19]
	case len(d.FechaHora) > 11:
		return d.FechaHora[11:]
	default:
		return ""
	}
}

func (d Delivery) Order() Order {
	canal := d.Canal
	if canal == "" {
		canal = EmptyField
	}

	var monto *string
	if d.Importe != "" {
		importe := d.Importe
		monto = &importe
	}

	return Order{
		CodigoIntegracion:  d.Codigo(),
		Cliente:            d.Cliente(),
		Canal:              canal,
		MontoPagado:        monto,
		Fecha:              d.Fecha,
		Hora:               d.Hora(),
		DeliveryID:         d.DeliveryID,
		IdentificadorUnico: d.IdentificadorUnico,
		OrderIDCanal:       d.OrderIDCanal,
		Celular:            d.Celular,
	}
}

// MatchesCodigo reports whether cod (with or without a leading #) refers to this delivery.
func (d Delivery) MatchesCodigo(cod string) bool {
	cod = strings.TrimPrefix(strings.TrimSpace(cod), "#")
	if cod == "" {
		return false
	}

	lima := d.CodigoLima
	if lima == "" {
		lima = d.CodigoIntegracion
	}

	return lima == cod || NormalizeDisplayNum(lima) == cod || d.IdentificadorUnico == cod || d.OrderIDCanal == cod
}

// UpsertDeliveries stores the rows of a location whose delivery_fecha falls on fecha.
// Existing rows are never deleted, and a stored DiDi display number survives a refresh
// that brings back the long order id. It returns the number of rows stored for fecha.
func UpsertDeliveries(db *gorm.DB, localID string, fecha string, rows []DeliveryRow) (int, error) {
	var saved int

	err := db.Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			if row.Fecha() != fecha {
				continue
			}

			incoming := NewDelivery(localID, row)

			var existing Delivery
			result := tx.Where(Delivery{LocalID: localID, Fecha: fecha, Key: incoming.Key}).Limit(1).Find(&existing)
			if result.Error != nil {
				return fmt.Errorf("UpsertDeliveries: find: %w", result.Error)
			}

			if result.RowsAffected > 0 {
				incoming.ID = existing.ID
				incoming.CreatedAt = existing.CreatedAt
				if LooksLikeDidiDisplayNum(existing.CodigoLima) {
					incoming.CodigoLima = existing.CodigoLima
				}
			}

			if err := tx.Save(&incoming).Error; err != nil {
				return fmt.Errorf("UpsertDeliveries: save %s: %w", incoming.Key, err)
			}
		}

		var count int64
		if err := tx.Model(&Delivery{}).Where("local_id = ? AND fecha = ?", localID, fecha).Count(&count).Error; err != nil {
			return fmt.Errorf("UpsertDeliveries: count: %w", err)
		}
		saved = int(count)

		return nil
	})

	return saved, err
}

func FetchDeliveries(db *gorm.DB, localID string, desde string, hasta string) ([]Delivery, error) {
	var deliveries []Delivery

	tx := db.Where("local_id = ? AND fecha >= ? AND fecha <= ?", localID, desde, hasta).
		Order("fecha").Order("fecha_hora").Order("id").
		Find(&deliveries)
	if tx.Error != nil {
		return nil, fmt.Errorf("FetchDeliveries: %w", tx.Error)
	}

	return deliveries, nil
}

func FetchDeliveriesByFecha(db *gorm.DB, fecha string) ([]Delivery, error) {
	var deliveries []Delivery

	if err := db.Where("fecha = ?", fecha).Order("local_id").Order("id").Find(&deliveries).Error; err != nil {
		return nil, fmt.Errorf("FetchDeliveriesByFecha: %w", err)
	}

	return deliveries, nil
}

func FetchAllDeliveries(db *gorm.DB) ([]Delivery, error) {
	var deliveries []Delivery

	if err := db.Order("id").Find(&deliveries).Error; err != nil {
		return nil, fmt.Errorf("FetchAllDeliveries: %w", err)
	}

	return deliveries, nil
}

// FindDeliveryByCodigo looks a delivery up by canonical code, identificador único or channel order id.
func FindDeliveryByCodigo(db *gorm.DB, codigo string) (*Delivery, error) {
	cod := strings.TrimPrefix(strings.TrimSpace(codigo), "#")
	if cod == "" {
		return nil, ErrNotFound
	}

	var candidates []Delivery
	tx := db.Where("codigo_lima IN ? OR codigo_integracion IN ? OR identificador_unico = ? OR order_id_canal = ?",
		[]string{cod, "#" + cod}, []string{cod, "#" + cod}, cod, cod).
		Order("id").Find(&candidates)
	if tx.Error != nil {
		return nil, fmt.Errorf("FindDeliveryByCodigo: %w", tx.Error)
	}

	for i := range candidates {
		if candidates[i].MatchesCodigo(cod) {
			return &candidates[i], nil
		}
	}

	return nil, ErrNotFound
}

func FetchCanales(db *gorm.DB) ([]string, error) {
	var canales []string

	tx := db.Model(&Delivery{}).Where("canal <> ''").Distinct().Order("canal").Pluck("canal", &canales)
	if tx.Error != nil {
		return nil, fmt.Errorf("FetchCanales: %w", tx.Error)
	}

	return canales, nil
}

type NoEntregada struct {
	DeliveryID string `gorm:"primaryKey;size:64"`
	CreatedAt  time.Time
}

func MarkNoEntregada(db *gorm.DB, deliveryID string) error {
	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		return fmt.Errorf("delivery_id requerido: %w", ErrInvalidInput)
	}

	err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&NoEntregada{DeliveryID: deliveryID}).Error
	if err != nil {
		return fmt.Errorf("MarkNoEntregada: %w", err)
	}

	return nil
}

// UnmarkNoEntregada reports whether a mark was removed.
func UnmarkNoEntregada(db *gorm.DB, deliveryID string) (bool, error) {
	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		return false, nil
	}

	tx := db.Delete(&NoEntregada{DeliveryID: deliveryID})
	if tx.Error != nil {
		return false, fmt.Errorf("UnmarkNoEntregada: %w", tx.Error)
	}

	return tx.RowsAffected > 0, nil
}

func FetchNoEntregadas(db *gorm.DB) (map[string]struct{}, error) {
	var ids []string
	if err := db.Model(&NoEntregada{}).Pluck("delivery_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("FetchNoEntregadas: %w", err)
	}

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}

	return set, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}
