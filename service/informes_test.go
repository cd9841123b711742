package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salchimonster/restaurant-reports/models"
)

func newInformeFixture(t *testing.T) (*InformeService, *ApelacionService) {
	t.Helper()

	db, orders, fotos := newOrderFixture(t)
	apelaciones := NewApelacionService(db, orders, fotos)
	marcar(t, apelaciones, "R-1", 30000)
	require.NoError(t, apelaciones.Apelar(ApelarRequest{Codigo: "R-1", MontoDevuelto: 20000}))
	require.NoError(t, apelaciones.Reembolsar(ReembolsarRequest{Codigo: "R-1", FechaReembolso: "2026-02-15"}))

	locales := NewLocaleService(db, &fakeAPI{}, models.LocaleFilter{})

	return NewInformeService(db, locales, fotos), apelaciones
}

func TestInforme(t *testing.T) {
	svc, _ := newInformeFixture(t)

	_, err := svc.Informe("", "2026-02-11")
	require.ErrorIs(t, err, models.ErrInvalidInput)

	informe, err := svc.Informe("2026-02-11", "2026-02-10")
	require.NoError(t, err)

	assert.Equal(t, models.InformeResumen{
		TotalOrdenes:         4,
		TotalApelaciones:     1,
		TotalReembolsos:      1,
		TotalDescontadoCanal: 30000,
		TotalDevuelto:        20000,
		TotalPerdida:         10000,
	}, informe.Resumen)

	assert.Equal(t, []models.InformeDia{
		{Fecha: "2026-02-10", Ordenes: 3, Apelaciones: 1, Reembolsos: 1, Perdida: 10000},
		{Fecha: "2026-02-11", Ordenes: 1},
	}, informe.PorDia)

	assert.Equal(t, []models.InformeSede{
		{Local: "Centro", Ordenes: 3, Apelaciones: 1, Perdida: 10000},
		{Local: "Norte", Ordenes: 1},
	}, informe.PorSede)

	assert.Equal(t, []models.InformeCanal{
		{Canal: "Didi Food", Ordenes: 1},
		{Canal: "Rappi", Ordenes: 3, Apelaciones: 1, Perdida: 10000},
	}, informe.PorCanal)
}

func TestReporteMaestro(t *testing.T) {
	svc, _ := newInformeFixture(t)

	page, err := svc.ReporteMaestro(MaestroQuery{Desde: "2026-02-10", Hasta: "2026-02-11"})
	require.NoError(t, err)
	assert.Equal(t, 4, page.TotalRecords)
	require.Len(t, page.Rows, 4)

	assert.Equal(t, "Centro", page.Rows[0].Local)
	assert.Equal(t, "2026-02-10", page.Rows[0].Fecha)
	assert.Equal(t, "379001", page.Rows[0].Codigo)
	assert.Equal(t, "R-1", page.Rows[1].Codigo)
	require.NotNil(t, page.Rows[1].Apelacion)
	assert.Equal(t, string(models.Reembolsada), page.Rows[1].EstadoApelacion)
	assert.Equal(t, 10000.0, page.Rows[1].Perdida)
	assert.Equal(t, "Norte", page.Rows[2].Local)
	assert.Equal(t, "2026-02-11", page.Rows[3].Fecha)
	assert.Empty(t, page.Rows[0].EstadosApelacion)

	page, err = svc.ReporteMaestro(MaestroQuery{Desde: "2026-02-10", Hasta: "2026-02-11", First: 1, Rows: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, page.TotalRecords)
	require.Len(t, page.Rows, 2)
	assert.Equal(t, "R-1", page.Rows[0].Codigo)

	page, err = svc.ReporteMaestro(MaestroQuery{Desde: "2026-02-10", Hasta: "2026-02-11", First: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Rows)

	page, err = svc.ReporteMaestro(MaestroQuery{Desde: "2026-02-10", Hasta: "2026-02-11", Filter: "didi"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalRecords)

	page, err = svc.ReporteMaestro(MaestroQuery{Local: "Norte", Desde: "2026-02-10", Hasta: "2026-02-11"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalRecords)

	_, err = svc.ReporteMaestro(MaestroQuery{Desde: "2026-02-10", Hasta: "2026-02-11", Rows: 501})
	require.ErrorIs(t, err, models.ErrInvalidInput)
	_, err = svc.ReporteMaestro(MaestroQuery{Desde: "2026-02-10", Hasta: "2026-02-11", First: -1})
	require.ErrorIs(t, err, models.ErrInvalidInput)
}
