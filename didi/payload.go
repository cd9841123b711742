package didi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"salchimonster/restaurant-reports/models"
)

// DailyOrders is the useful part of a dailyOrders/newOrders answer from the DiDi console.
type DailyOrders struct {
	Orders      map[string]string
	OrdersCount int
	ShopID      string
}

type didiOrderDTO struct {
	OrderID    interface{} `json:"orderId"`
	DisplayNum interface{} `json:"displayNum"`
	ShopID     interface{} `json:"shopId"`
}

type dailyOrdersDTO struct {
	ShopID interface{} `json:"shop_id"`
	Data   struct {
		Serving   []json.RawMessage `json:"serving"`
		Highlight []json.RawMessage `json:"highlight"`
	} `json:"data"`
}

func decode(raw []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}

func str(v interface{}) string {
	if v == nil {
		return ""
	}

	return strings.TrimSpace(fmt.Sprint(v))
}

// ParseDailyOrders maps orderId -> displayNum over data.serving and data.highlight.
// Order ids are kept as exact strings; they do not fit a float64.
func ParseDailyOrders(body []byte) (DailyOrders, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return DailyOrders{}, fmt.Errorf("Body debe ser un objeto JSON: %w", models.ErrInvalidInput)
	}

	var dto dailyOrdersDTO
	if err := decode(trimmed, &dto); err != nil {
		return DailyOrders{}, fmt.Errorf("Body debe ser JSON válido: %w", models.ErrInvalidInput)
	}

	out := DailyOrders{
		Orders:      make(map[string]string),
		OrdersCount: len(dto.Data.Serving) + len(dto.Data.Highlight),
		ShopID:      str(dto.ShopID),
	}

	for i, raw := range append(dto.Data.Serving, dto.Data.Highlight...) {
		var o didiOrderDTO
		if err := decode(raw, &o); err != nil {
			continue
		}
		if i == 0 && out.ShopID == "" && len(dto.Data.Serving) > 0 {
			out.ShopID = str(o.ShopID)
		}

		oid, display := str(o.OrderID), str(o.DisplayNum)
		if oid != "" && display != "" {
			out.Orders[oid] = display
		}
	}

	return out, nil
}

// ParseShops collects every object carrying a shopId in a getShops answer.
func ParseShops(body []byte) []json.RawMessage {
	var root interface{}
	if err := decode(body, &root); err != nil {
		return nil
	}

	var shops []json.RawMessage
	var walk func(v interface{}, depth int)
	walk = func(v interface{}, depth int) {
		if depth > 4 {
			return
		}
		switch t := v.(type) {
		case map[string]interface{}:
			if str(t["shopId"]) != "" {
				if raw, err := json.Marshal(t); err == nil {
					shops = append(shops, raw)
				}
				return
			}
			keys := make([]string, 0, len(t))
			for k := range t {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				walk(t[k], depth+1)
			}
		case []interface{}:
			for _, item := range t {
				walk(item, depth+1)
			}
		}
	}
	walk(root, 0)

	return shops
}

func sortSedes(sedes []SedeStatus) {
	sort.Slice(sedes, func(i, j int) bool {
		return sedes[i].ShopID < sedes[j].ShopID
	})
}
