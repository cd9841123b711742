package models

import (
	"fmt"
	"math"
	"strings"
	"time"

	"gorm.io/gorm"
)

type EstadoApelacion string

const (
	PendienteApelar     EstadoApelacion = "pendiente_apelar"
	Apelada             EstadoApelacion = "apelada"
	Reembolsada         EstadoApelacion = "reembolsada"
	DescuentoConfirmado EstadoApelacion = "descuento_confirmado"
	SedeDecidioNoApelar EstadoApelacion = "sede_decidio_no_apelar"
)

// Apelacion is an order marked to dispute a deduction made by a delivery channel.
type Apelacion struct {
	ID                       uint        `gorm:"primaryKey" json:"-"`
	Codigo                   string      `gorm:"uniqueIndex;size:128;not null" json:"codigo"`
	Canal                    string      `gorm:"size:64" json:"canal"`
	DeliveryID               string      `gorm:"size:64" json:"delivery_id"`
	MontoDescontado          float64     `json:"monto_descontado"`
	MontoDevuelto            *float64    `json:"monto_devuelto"`
	FechaMarcado             string      `gorm:"size:40" json:"fecha_marcado"`
	FechaApelado             *string     `gorm:"size:40" json:"fecha_apelado"`
	FechaEstimadaDevolucion  *string     `gorm:"size:10" json:"fecha_estimada_devolucion"`
	Local                    string      `gorm:"index;size:128" json:"local"`
	Fecha                    string      `gorm:"index;size:10" json:"fecha"`
	SedeDecidioNoApelar      bool        `json:"sede_decidio_no_apelar"`
	Reembolsado              bool        `json:"reembolsado"`
	MontoReembolsado         float64     `json:"monto_reembolsado"`
	FechaReembolso           *string     `gorm:"size:10" json:"fecha_reembolso"`
	DescuentoConfirmado      bool        `json:"descuento_confirmado"`
	FechaDescuentoConfirmado *string     `gorm:"size:10" json:"fecha_descuento_confirmado"`
	Reembolsos               []Reembolso `gorm:"constraint:OnDelete:CASCADE" json:"reembolsos"`
	Descuentos               []Descuento `gorm:"constraint:OnDelete:CASCADE" json:"descuentos"`
	CreatedAt                time.Time   `json:"-"`
	UpdatedAt                time.Time   `json:"-"`
}

// Reembolso is one refund payment received from the channel.
type Reembolso struct {
	ID          uint    `gorm:"primaryKey" json:"-"`
	ApelacionID uint    `gorm:"index;not null" json:"-"`
	Monto       float64 `json:"monto"`
	Fecha       string  `gorm:"size:10" json:"fecha"`
}

// Descuento is an amount deducted from the location's payroll in a quincena.
type Descuento struct {
	ID          uint    `gorm:"primaryKey" json:"-"`
	ApelacionID uint    `gorm:"index;not null" json:"-"`
	Monto       float64 `json:"monto"`
	Quincena    string  `gorm:"size:10;index" json:"quincena"`
	Fecha       string  `gorm:"size:10" json:"fecha"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (a Apelacion) TotalReembolsado() float64 {
	total := 0.0
	for _, r := range a.Reembolsos {
		total += r.Monto
	}

	return total
}

func (a Apelacion) TotalDescuentos() float64 {
	total := 0.0
	for _, d := range a.Descuentos {
		total += d.Monto
	}

	return total
}

// Perdida is what the location lost on the order: the deduction minus what the channel refunded.
func (a Apelacion) Perdida() float64 {
	return math.Max(0, a.MontoDescontado-a.TotalReembolsado())
}

func (a Apelacion) PerdidaRestante() float64 {
	return math.Max(0, a.Perdida()-a.TotalDescuentos())
}

func (a Apelacion) MontoDevueltoValue() float64 {
	if a.MontoDevuelto == nil {
		return 0
	}

	return *a.MontoDevuelto
}

func (a Apelacion) IsApelada() bool {
	return a.MontoDevuelto != nil
}

// IsPendingRefund reports whether the channel still owes part of the promised refund.
func (a Apelacion) IsPendingRefund() bool {
	return a.IsApelada() && a.TotalReembolsado() < a.MontoDevueltoValue()
}

func (a Apelacion) IsDescuentoCubierto() bool {
	perdida := a.Perdida()
	return perdida > 0 && a.TotalDescuentos() >= perdida
}

// Estados lists every state that applies to the dispute, in display order.
func (a Apelacion) Estados() []EstadoApelacion {
	var estados []EstadoApelacion

	devuelto := a.MontoDevueltoValue()
	if devuelto > 0 && a.TotalReembolsado() >= devuelto {
		estados = append(estados, Reembolsada)
	} else if devuelto > 0 {
		estados = append(estados, Apelada)
	}

	if a.IsDescuentoCubierto() {
		estados = append(estados, DescuentoConfirmado)
	}

	if a.SedeDecidioNoApelar {
		estados = append(estados, SedeDecidioNoApelar)
	}

	if len(estados) == 0 {
		if a.IsApelada() {
			estados = []EstadoApelacion{Apelada}
		} else {
			estados = []EstadoApelacion{PendienteApelar}
		}
	}

	return estados
}

// Estado is the last applicable state.
func (a Apelacion) Estado() EstadoApelacion {
	estados := a.Estados()
	return estados[len(estados)-1]
}

// IsPendienteApelar reports whether the location still has to answer the dispute.
func (a Apelacion) IsPendienteApelar() bool {
	return !a.IsApelada() && !a.DescuentoConfirmado && !a.SedeDecidioNoApelar
}

// syncDerived recomputes the flags kept for the dashboard from refunds and deductions.
func (a *Apelacion) syncDerived() {
	total := a.TotalReembolsado()
	a.MontoReembolsado = round2(total)
	a.Reembolsado = a.IsApelada() && total >= a.MontoDevueltoValue()
	a.DescuentoConfirmado = a.IsDescuentoCubierto()
}

// AddReembolso appends a refund payment and updates the derived fields.
func (a *Apelacion) AddReembolso(monto float64, fecha string) {
	a.Reembolsos = append(a.Reembolsos, Reembolso{ApelacionID: a.ID, Monto: monto, Fecha: fecha})
	a.FechaReembolso = &fecha
	a.syncDerived()
}

// AddDescuento appends a payroll deduction and updates the derived fields.
func (a *Apelacion) AddDescuento(monto float64, quincena string, fecha string) {
	a.Descuentos = append(a.Descuentos, Descuento{ApelacionID: a.ID, Monto: monto, Quincena: quincena, Fecha: fecha})
	a.FechaDescuentoConfirmado = &fecha
	a.syncDerived()
}

type ApelacionView struct {
	Apelacion
	Perdida             float64           `json:"perdida"`
	TotalReembolsado    float64           `json:"total_reembolsado"`
	TotalDescuentosSede float64           `json:"total_descuentos_sede"`
	PerdidaRestante     float64           `json:"perdida_restante"`
	Estados             []EstadoApelacion `json:"estados"`
	Estado              EstadoApelacion   `json:"estado"`
}

func (a Apelacion) View() ApelacionView {
	if a.Reembolsos == nil {
		a.Reembolsos = []Reembolso{}
	}
	if a.Descuentos == nil {
		a.Descuentos = []Descuento{}
	}

	estados := a.Estados()

	return ApelacionView{
		Apelacion:           a,
		Perdida:             round2(a.Perdida()),
		TotalReembolsado:    round2(a.TotalReembolsado()),
		TotalDescuentosSede: round2(a.TotalDescuentos()),
		PerdidaRestante:     round2(a.PerdidaRestante()),
		Estados:             estados,
		Estado:              estados[len(estados)-1],
	}
}

type ApelacionFilter struct {
	Local string
	Desde string
	Hasta string
}

func (f ApelacionFilter) apply(tx *gorm.DB) *gorm.DB {
	if local := strings.TrimSpace(f.Local); local != "" {
		tx = tx.Where("local = ?", local)
	}
	if f.Desde != "" {
		tx = tx.Where("fecha >= ?", f.Desde)
	}
	if f.Hasta != "" {
		tx = tx.Where("fecha <= ?", f.Hasta)
	}

	return tx
}

func FetchApelaciones(db *gorm.DB, filter ApelacionFilter) ([]Apelacion, error) {
	var items []Apelacion

	tx := filter.apply(db.Preload("Reembolsos", orderByID).Preload("Descuentos", orderByID)).Order("id").Find(&items)
	if tx.Error != nil {
		return nil, fmt.Errorf("FetchApelaciones: %w", tx.Error)
	}

	return items, nil
}

func orderByID(db *gorm.DB) *gorm.DB {
	return db.Order("id")
}

func FindApelacion(db *gorm.DB, codigo string) (*Apelacion, error) {
	var item Apelacion

	tx := db.Preload("Reembolsos", orderByID).Preload("Descuentos", orderByID).
		Where("codigo = ?", strings.TrimSpace(codigo)).Limit(1).Find(&item)
	if tx.Error != nil {
		return nil, fmt.Errorf("FindApelacion: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	return &item, nil
}

func FetchApelacionesByCodigo(db *gorm.DB) (map[string]*Apelacion, error) {
	items, err := FetchApelaciones(db, ApelacionFilter{})
	if err != nil {
		return nil, err
	}

	out := make(map[string]*Apelacion, len(items))
	for i := range items {
		out[items[i].Codigo] = &items[i]
	}

	return out, nil
}

func FetchDescuentosByQuincena(db *gorm.DB, quincena string) ([]Descuento, error) {
	var descuentos []Descuento

	if err := db.Where("quincena = ?", quincena).Order("id").Find(&descuentos).Error; err != nil {
		return nil, fmt.Errorf("FetchDescuentosByQuincena: %w", err)
	}

	return descuentos, nil
}
