package export

import (
	"strings"

	"github.com/gocarina/gocsv"

	"salchimonster/restaurant-reports/service"
)

// MaestroEntry is one line of the master report CSV.
type MaestroEntry struct {
	Fecha           string  `csv:"fecha"`
	Local           string  `csv:"local"`
	Codigo          string  `csv:"codigo"`
	Canal           string  `csv:"canal"`
	Cliente         string  `csv:"cliente"`
	Hora            string  `csv:"hora"`
	MontoPagado     string  `csv:"monto_pagado"`
	DeliveryID      string  `csv:"delivery_id"`
	FotoEntrega     bool    `csv:"foto_entrega"`
	EstadoApelacion string  `csv:"estado_apelacion"`
	Estados         string  `csv:"estados"`
	MontoDescontado float64 `csv:"monto_descontado"`
	MontoDevuelto   float64 `csv:"monto_devuelto"`
	Perdida         float64 `csv:"perdida"`
}

func NewMaestroEntries(rows []service.MaestroRow) []MaestroEntry {
	entries := make([]MaestroEntry, 0, len(rows))
	for _, r := range rows {
		e := MaestroEntry{
			Fecha:           r.Fecha,
			Local:           r.Local,
			Codigo:          r.Codigo,
			Canal:           r.Canal,
			Cliente:         r.Cliente,
			Hora:            r.Hora,
			DeliveryID:      r.DeliveryID,
			FotoEntrega:     r.HasEntregaPhoto,
			EstadoApelacion: r.EstadoApelacion,
			Perdida:         r.Perdida,
		}
		if r.MontoPagado != nil {
			e.MontoPagado = *r.MontoPagado
		}

		estados := make([]string, 0, len(r.EstadosApelacion))
		for _, estado := range r.EstadosApelacion {
			estados = append(estados, string(estado))
		}
		e.Estados = strings.Join(estados, "|")

		if r.Apelacion != nil {
			e.MontoDescontado = r.Apelacion.MontoDescontado
			e.MontoDevuelto = r.Apelacion.MontoDevueltoValue()
		}
		entries = append(entries, e)
	}

	return entries
}

// MaestroCSV renders the master report rows as CSV.
func MaestroCSV(rows []service.MaestroRow) ([]byte, error) {
	entries := NewMaestroEntries(rows)
	return gocsv.MarshalBytes(&entries)
}
