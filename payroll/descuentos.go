package payroll

import (
	"os"
	"sort"

	"github.com/gocarina/gocsv"

	"salchimonster/restaurant-reports/models"
)

// Entry is one payroll deduction line: an amount taken from a location's staff in a
// quincena to cover what a delivery channel did not refund.
type Entry struct {
	Quincena        string  `csv:"quincena"`
	Local           string  `csv:"local"`
	Codigo          string  `csv:"codigo"`
	Canal           string  `csv:"canal"`
	FechaOrden      string  `csv:"fecha_orden"`
	FechaDescuento  string  `csv:"fecha_descuento"`
	Monto           float64 `csv:"monto"`
	Perdida         float64 `csv:"perdida"`
	PerdidaRestante float64 `csv:"perdida_restante"`
}

type Entries []Entry

// NewEntries joins the deductions of a quincena with their dispute, sorted by local and codigo.
func NewEntries(quincena string, descuentos []models.Descuento, apelaciones map[uint]models.Apelacion) Entries {
	entries := make(Entries, 0, len(descuentos))
	for _, d := range descuentos {
		ap := apelaciones[d.ApelacionID]
		entries = append(entries, Entry{
			Quincena:        quincena,
			Local:           ap.Local,
			Codigo:          ap.Codigo,
			Canal:           ap.Canal,
			FechaOrden:      ap.Fecha,
			FechaDescuento:  d.Fecha,
			Monto:           d.Monto,
			Perdida:         ap.Perdida(),
			PerdidaRestante: ap.PerdidaRestante(),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Local != entries[j].Local {
			return entries[i].Local < entries[j].Local
		}
		return entries[i].Codigo < entries[j].Codigo
	})

	return entries
}

// TotalsByLocal sums the deducted amounts per location.
func (entries Entries) TotalsByLocal() map[string]float64 {
	totals := make(map[string]float64)
	for _, e := range entries {
		totals[e.Local] += e.Monto
	}

	return totals
}

func (entries Entries) ToCSV(file *os.File) error {
	return gocsv.MarshalFile(&entries, file)
}

func (entries Entries) Bytes() ([]byte, error) {
	return gocsv.MarshalBytes(&entries)
}
