package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DidiOrder maps a DiDi order id (what restaurant.pe stores as codigo lima) to the
// short display number shown in the DiDi merchant console, per day.
type DidiOrder struct {
	Fecha      string `gorm:"primaryKey;size:10"`
	OrderID    string `gorm:"primaryKey;size:64"`
	DisplayNum string `gorm:"size:32"`
	ShopID     string `gorm:"size:64"`
	UpdatedAt  time.Time
}

// MergeDidiOrders upserts entries for fecha and returns the size of that day's map.
func MergeDidiOrders(db *gorm.DB, fecha string, shopID string, entries map[string]string) (int, error) {
	if len(entries) > 0 {
		rows := make([]DidiOrder, 0, len(entries))
		for orderID, display := range entries {
			rows = append(rows, DidiOrder{Fecha: fecha, OrderID: orderID, DisplayNum: display, ShopID: shopID})
		}

		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "fecha"}, {Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_num", "shop_id", "updated_at"}),
		}).Create(&rows).Error
		if err != nil {
			return 0, fmt.Errorf("MergeDidiOrders: %w", err)
		}
	}

	var count int64
	if err := db.Model(&DidiOrder{}).Where("fecha = ?", fecha).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("MergeDidiOrders: count: %w", err)
	}

	return int(count), nil
}

func FetchDidiOrders(db *gorm.DB, fecha string) (map[string]string, error) {
	var rows []DidiOrder
	if err := db.Where("fecha = ?", fecha).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("FetchDidiOrders: %w", err)
	}

	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.OrderID] = r.DisplayNum
	}

	return out, nil
}

// DidiHeartbeat is the last heartbeat a DiDi shop's browser extension sent.
type DidiHeartbeat struct {
	ShopID   string    `gorm:"primaryKey;size:64"`
	ShopName string    `gorm:"size:128"`
	LastSeen time.Time `gorm:"index"`
	Data     string    `gorm:"type:text"`
}
