package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T {
	return &v
}

func TestApelacionEstados(t *testing.T) {
	tests := []struct {
		name    string
		item    Apelacion
		estados []EstadoApelacion
		perdida float64
	}{
		{
			name:    "marked only",
			item:    Apelacion{MontoDescontado: 20000},
			estados: []EstadoApelacion{PendienteApelar},
			perdida: 20000,
		},
		{
			name:    "appealed without refund",
			item:    Apelacion{MontoDescontado: 20000, MontoDevuelto: ptr(15000.0)},
			estados: []EstadoApelacion{Apelada},
			perdida: 20000,
		},
		{
			name:    "appealed with zero return",
			item:    Apelacion{MontoDescontado: 20000, MontoDevuelto: ptr(0.0)},
			estados: []EstadoApelacion{Apelada},
			perdida: 20000,
		},
		{
			name: "fully refunded",
			item: Apelacion{
				MontoDescontado: 20000,
				MontoDevuelto:   ptr(20000.0),
				Reembolsos:      []Reembolso{{Monto: 12000}, {Monto: 8000}},
			},
			estados: []EstadoApelacion{Reembolsada},
			perdida: 0,
		},
		{
			name: "partially refunded and deducted",
			item: Apelacion{
				MontoDescontado: 20000,
				MontoDevuelto:   ptr(15000.0),
				Reembolsos:      []Reembolso{{Monto: 15000}},
				Descuentos:      []Descuento{{Monto: 5000, Quincena: "2026-02-1"}},
			},
			estados: []EstadoApelacion{Reembolsada, DescuentoConfirmado},
			perdida: 5000,
		},
		{
			name: "declined and deducted",
			item: Apelacion{
				MontoDescontado:     10000,
				SedeDecidioNoApelar: true,
				Descuentos:          []Descuento{{Monto: 10000}},
			},
			estados: []EstadoApelacion{DescuentoConfirmado, SedeDecidioNoApelar},
			perdida: 10000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.estados, tt.item.Estados())
			require.Equal(t, tt.estados[len(tt.estados)-1], tt.item.Estado())
			require.InDelta(t, tt.perdida, tt.item.Perdida(), 0.001)
		})
	}
}

func TestApelacionAddReembolsoAndDescuento(t *testing.T) {
	a := Apelacion{ID: 3, MontoDescontado: 30000, MontoDevuelto: ptr(25000.0)}

	a.AddReembolso(10000, "2026-02-03")
	require.False(t, a.Reembolsado)
	require.True(t, a.IsPendingRefund())
	require.Equal(t, 10000.0, a.MontoReembolsado)
	require.Equal(t, "2026-02-03", *a.FechaReembolso)

	a.AddReembolso(15000, "2026-02-10")
	require.True(t, a.Reembolsado)
	require.False(t, a.IsPendingRefund())
	require.Equal(t, uint(3), a.Reembolsos[1].ApelacionID)
	require.InDelta(t, 5000, a.Perdida(), 0.001)

	a.AddDescuento(2000, "2026-02-2", "2026-02-15")
	require.False(t, a.DescuentoConfirmado)
	require.InDelta(t, 3000, a.PerdidaRestante(), 0.001)

	a.AddDescuento(3000, "2026-03-1", "2026-03-01")
	require.True(t, a.DescuentoConfirmado)
	require.Equal(t, DescuentoConfirmado, a.Estado())
}

func TestApelacionView(t *testing.T) {
	a := Apelacion{Codigo: "379001", MontoDescontado: 10000.456}

	v := a.View()
	require.Equal(t, 10000.46, v.Perdida)
	require.Equal(t, PendienteApelar, v.Estado)
	require.NotNil(t, v.Reembolsos)
	require.NotNil(t, v.Descuentos)
	require.True(t, a.IsPendienteApelar())
}

func TestNewApelacionesReporte(t *testing.T) {
	r := NewApelacionesReporte([]Apelacion{
		{Codigo: "1", Local: "Centro", MontoDescontado: 10000, MontoDevuelto: ptr(4000.0)},
		{Codigo: "2", Local: "Norte", MontoDescontado: 5000},
	})

	require.Equal(t, 15000.0, r.TotalDescontado)
	require.Equal(t, 4000.0, r.TotalDevuelto)
	require.Equal(t, 11000.0, r.TotalPerdido)
	require.Contains(t, r.Show("Apelaciones"), "Total perdido: $11000.00")
}
