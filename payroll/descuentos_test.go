package payroll

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salchimonster/restaurant-reports/models"
)

func fixture() Entries {
	apelaciones := map[uint]models.Apelacion{
		1: {ID: 1, Codigo: "R-1", Canal: "Rappi", Local: "Norte", Fecha: "2026-02-03", MontoDescontado: 30000,
			Reembolsos: []models.Reembolso{{Monto: 10000}}},
		2: {ID: 2, Codigo: "379001", Canal: "Didi Food", Local: "Centro", Fecha: "2026-02-04", MontoDescontado: 12000},
	}
	descuentos := []models.Descuento{
		{ApelacionID: 1, Monto: 15000, Quincena: "2026-02-1", Fecha: "2026-02-14"},
		{ApelacionID: 2, Monto: 12000, Quincena: "2026-02-1", Fecha: "2026-02-14"},
	}

	return NewEntries("2026-02-1", descuentos, apelaciones)
}

func TestNewEntries(t *testing.T) {
	entries := fixture()
	require.Len(t, entries, 2)

	assert.Equal(t, "Centro", entries[0].Local)
	assert.Equal(t, "R-1", entries[1].Codigo)
	assert.Equal(t, 20000.0, entries[1].Perdida)
	assert.Equal(t, 20000.0, entries[1].PerdidaRestante)
	assert.Equal(t, map[string]float64{"Centro": 12000, "Norte": 15000}, entries.TotalsByLocal())
}

func TestEntriesCSV(t *testing.T) {
	entries := fixture()

	data, err := entries.Bytes()
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "quincena,local,codigo,canal,fecha_orden,fecha_descuento,monto,perdida,perdida_restante", lines[0])
	assert.Equal(t, "2026-02-1,Centro,379001,Didi Food,2026-02-04,2026-02-14,12000,12000,12000", lines[1])

	path := filepath.Join(t.TempDir(), "descuentos.csv")
	file, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, entries.ToCSV(file))
	require.NoError(t, file.Close())

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(written))
}
