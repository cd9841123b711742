package export

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"

	"salchimonster/restaurant-reports/models"
)

// ReporteTitle names the disputes report after its filter.
func ReporteTitle(f models.ApelacionFilter) string {
	title := "Reporte de apelaciones"
	if f.Local != "" {
		title += " - " + f.Local
	}
	if f.Desde != "" || f.Hasta != "" {
		title += fmt.Sprintf(" (%s a %s)", orDash(f.Desde), orDash(f.Hasta))
	}

	return title
}

func orDash(s string) string {
	if s == "" {
		return models.EmptyField
	}
	return s
}

// ApelacionesPDF renders the disputes report as a one column A4 document.
func ApelacionesPDF(w io.Writer, title string, reporte models.ApelacionesReporte) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetTitle(tr(title), false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.MultiCell(0, 10, tr(title), "", "", false)

	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 6, tr(fmt.Sprintf("%d apelaciones", len(reporte.Items))), "", "", false)
	pdf.MultiCell(0, 6, "\n", "", "", false)
	pdf.MultiCell(0, 6, tr(reporte.Show("Detalle por sede")), "", "", false)

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("ApelacionesPDF: %w", err)
	}

	return pdf.Output(w)
}

func ApelacionesPDFBytes(title string, reporte models.ApelacionesReporte) ([]byte, error) {
	var buf bytes.Buffer
	if err := ApelacionesPDF(&buf, title, reporte); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
