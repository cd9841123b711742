package models

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReportRow is one line of the restaurant.pe sales report (InformeVentas Excel).
type ReportRow struct {
	gorm.Model
	Local             string   `gorm:"uniqueIndex:compositeReportRow;size:128;not null" json:"Local"`
	Fecha             string   `gorm:"uniqueIndex:compositeReportRow;size:10;not null" json:"Fecha"`
	Position          uint     `gorm:"uniqueIndex:compositeReportRow;not null" json:"-"`
	Hora              string   `gorm:"size:16" json:"Hora"`
	Cliente           string   `json:"Cliente"`
	MontoPagado       *float64 `json:"Monto pagado"`
	Canal             string   `gorm:"size:64;index" json:"Canal de delivery"`
	CodigoIntegracion string   `gorm:"size:128" json:"Codigo integracion"`
}

// SaveReportRows replaces the report lines of every (local, fecha) present in rows,
// so that downloading an overlapping range twice does not duplicate lines.
func SaveReportRows(db *gorm.DB, rows []ReportRow) error {
	type day struct{ local, fecha string }

	return db.Transaction(func(tx *gorm.DB) error {
		seen := make(map[day]struct{})
		for _, row := range rows {
			key := day{row.Local, row.Fecha}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}

			err := tx.Unscoped().Where("local = ? AND fecha = ?", row.Local, row.Fecha).Delete(&ReportRow{}).Error
			if err != nil {
				return fmt.Errorf("SaveReportRows: delete %s %s: %w", row.Local, row.Fecha, err)
			}
		}

		if len(rows) == 0 {
			return nil
		}

		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&rows, 200).Error; err != nil {
			return fmt.Errorf("SaveReportRows: create: %w", err)
		}

		return nil
	})
}

func FetchReportCanales(db *gorm.DB) ([]string, error) {
	var canales []string

	tx := db.Model(&ReportRow{}).Where("canal <> ''").Distinct().Order("canal").Pluck("canal", &canales)
	if tx.Error != nil {
		return nil, fmt.Errorf("FetchReportCanales: %w", tx.Error)
	}

	return canales, nil
}

