package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Order is the dashboard view of a delivery.
type Order struct {
	CodigoIntegracion  string  `json:"Codigo integracion"`
	Cliente            string  `json:"Cliente"`
	Canal              string  `json:"Canal de delivery"`
	MontoPagado        *string `json:"Monto pagado"`
	Fecha              string  `json:"Fecha"`
	Hora               string  `json:"Hora"`
	DeliveryID         string  `json:"delivery_id"`
	IdentificadorUnico string  `json:"delivery_identificadorunico"`
	OrderIDCanal       string  `json:"delivery_orderid_canal"`
	Celular            string  `json:"delivery_celular"`
}

// FotoCandidates lists the codes under which the photos of an order may have been stored,
// canonical code first.
func (o Order) FotoCandidates() []string {
	seen := make(map[string]struct{})
	var out []string

	for _, c := range []string{o.CodigoIntegracion, o.OrderIDCanal, o.IdentificadorUnico} {
		if c == "" || c == EmptyField {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}

	return out
}

type MerchantOrders map[ThirdPartyMerchant][]*Order

func (o *MerchantOrders) Add(merchant ThirdPartyMerchant, order *Order) {
	(*o)[merchant] = append((*o)[merchant], order)
}

func GroupByMerchant(orders []Order) MerchantOrders {
	grouped := make(MerchantOrders)
	for i := range orders {
		_, merchant := IsDeliveryServiceName(orders[i].Canal)
		grouped.Add(merchant, &orders[i])
	}

	return grouped
}

func (o MerchantOrders) Show() string {
	merchants := make([]string, 0, len(o))
	for merchant := range o {
		merchants = append(merchants, string(merchant))
	}
	sort.Strings(merchants)

	output := strings.Builder{}
	for _, merchant := range merchants {
		orders := o[ThirdPartyMerchant(merchant)]
		total := 0.0
		for _, order := range orders {
			if order.MontoPagado == nil {
				continue
			}
			if v, err := strconv.ParseFloat(*order.MontoPagado, 64); err == nil {
				total += v
			}
		}
		output.WriteString(fmt.Sprintf("-> %s: %d orden(es), $%.2f\n", merchant, len(orders), total))
	}

	return output.String()
}
