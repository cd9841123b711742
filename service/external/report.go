package external

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"salchimonster/restaurant-reports/models"

	"github.com/xuri/excelize/v2"
)

// reportColumns maps each extracted column to the header aliases seen in InformeVentas.
var reportColumns = []struct {
	key     string
	aliases []string
}{
	{"Fecha", []string{"Fecha", "fecha"}},
	{"Hora", []string{"Hora", "hora"}},
	{"Cliente", []string{"Cliente", "cliente"}},
	{"Local", []string{"Local", "local"}},
	{"Monto pagado", []string{"Monto pagado", "monto pagado"}},
	{"Canal de delivery", []string{"Canal de delivery", "canal de delivery"}},
	{"Codigo integracion", []string{"Codigo integracion", "Codigo integración delivery", "Codigo integración", "codigo integracion"}},
}

const (
	sinLocal = "Sin local"
	sinCanal = "Sin canal"
)

// ParseSalesReport reads the active sheet of an InformeVentas workbook and returns the
// rows that carry a Fecha, located after the header row.
func ParseSalesReport(data []byte) ([]models.ReportRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("ParseSalesReport: failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("ParseSalesReport: failed to read sheet %q: %w", sheet, err)
	}

	cols := map[string]int{}
	headerFound := false
	positions := map[string]uint{}
	var out []models.ReportRow

	for _, row := range rows {
		if !headerFound {
			if idx := indexOf(row, "Fecha"); idx < 0 && indexOf(row, "fecha") < 0 {
				continue
			}
			for _, c := range reportColumns {
				for _, alias := range c.aliases {
					if idx := indexOf(row, alias); idx >= 0 {
						cols[c.key] = idx
						break
					}
				}
			}
			headerFound = true
			continue
		}

		fecha, ok := parseReportDate(cell(row, cols, "Fecha"))
		if !ok {
			continue
		}

		local := cell(row, cols, "Local")
		if local == "" {
			local = sinLocal
		}
		canal := cell(row, cols, "Canal de delivery")
		if canal == "" {
			canal = sinCanal
		}

		r := models.ReportRow{
			Local:             local,
			Fecha:             fecha,
			Hora:              parseReportTime(cell(row, cols, "Hora")),
			Cliente:           cell(row, cols, "Cliente"),
			Canal:             canal,
			CodigoIntegracion: cell(row, cols, "Codigo integracion"),
		}
		if v, err := strconv.ParseFloat(strings.ReplaceAll(cell(row, cols, "Monto pagado"), ",", ""), 64); err == nil {
			r.MontoPagado = &v
		}

		key := local + "|" + fecha
		r.Position = positions[key]
		positions[key]++

		out = append(out, r)
	}

	return out, nil
}

func indexOf(row []string, value string) int {
	for i, c := range row {
		if strings.TrimSpace(c) == value {
			return i
		}
	}

	return -1
}

func cell(row []string, cols map[string]int, key string) string {
	idx, ok := cols[key]
	if !ok || idx >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[idx])
}

// parseReportDate accepts DD-MM-YYYY, YYYY-MM-DD, DD/MM/YYYY or an Excel serial date.
func parseReportDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	head := s
	if len(head) > 10 {
		head = head[:10]
	}
	for _, layout := range []string{"02-01-2006", "2006-01-02", "02/01/2006"} {
		if t, err := time.Parse(layout, head); err == nil {
			return t.Format("2006-01-02"), true
		}
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return t.Format("2006-01-02"), true
		}
	}

	return "", false
}

// parseReportTime renders fractional-day cells as HH:MM:SS and leaves text untouched.
func parseReportTime(s string) string {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return s
	}

	_, frac := math.Modf(v)
	secs := int(math.Round(frac * 24 * 60 * 60))
	return fmt.Sprintf("%02d:%02d:%02d", (secs/3600)%24, (secs/60)%60, secs%60)
}
