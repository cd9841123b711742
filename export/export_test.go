package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salchimonster/restaurant-reports/models"
	"salchimonster/restaurant-reports/service"
)

func TestApelacionesPDF(t *testing.T) {
	devuelto := 20000.0
	reporte := models.NewApelacionesReporte([]models.Apelacion{
		{Codigo: "R-1", Canal: "Rappi", Local: "Centro", Fecha: "2026-02-10", MontoDescontado: 30000, MontoDevuelto: &devuelto},
		{Codigo: "379001", Canal: "Didi Food", Local: "Bogotá Norte", Fecha: "2026-02-11", MontoDescontado: 12000},
	})

	data, err := ApelacionesPDFBytes("Apelaciones 2026-02-01 a 2026-02-15", reporte)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
	assert.Greater(t, len(data), 500)
}

func TestReporteTitle(t *testing.T) {
	assert.Equal(t, "Reporte de apelaciones", ReporteTitle(models.ApelacionFilter{}))
	assert.Equal(t, "Reporte de apelaciones - Centro (2026-02-01 a "+models.EmptyField+")",
		ReporteTitle(models.ApelacionFilter{Local: "Centro", Desde: "2026-02-01"}))
}

func TestMaestroCSV(t *testing.T) {
	monto := "35000"
	devuelto := 20000.0
	view := models.Apelacion{Codigo: "R-1", MontoDescontado: 30000, MontoDevuelto: &devuelto}.View()

	data, err := MaestroCSV([]service.MaestroRow{
		{
			Fecha: "2026-02-10", Local: "Centro", Codigo: "R-1", Canal: "Rappi", Cliente: "Ana Pérez",
			Hora: "13:00:00", MontoPagado: &monto, DeliveryID: "11", HasEntregaPhoto: true,
			Apelacion: &view, EstadosApelacion: view.Estados, EstadoApelacion: string(view.Estado), Perdida: view.Perdida,
		},
		{Fecha: "2026-02-10", Local: "Centro", Codigo: "379001", Canal: "Didi Food", Cliente: "—"},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "fecha,local,codigo,canal,cliente,hora,monto_pagado,delivery_id,foto_entrega,estado_apelacion,estados,monto_descontado,monto_devuelto,perdida", lines[0])
	assert.Equal(t, "2026-02-10,Centro,R-1,Rappi,Ana Pérez,13:00:00,35000,11,true,apelada,apelada,30000,20000,30000", lines[1])
	assert.Equal(t, "2026-02-10,Centro,379001,Didi Food,—,,,,false,,,0,0,0", lines[2])
}
