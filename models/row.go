package models

type Row []interface{}
type Rows [][]interface{}

var InformeDiaHeader = Row{"Fecha", "Órdenes", "Apelaciones", "Reembolsos", "Pérdida"}

// InformeDiaRows converts the per-day series into spreadsheet rows, header first.
func InformeDiaRows(dias []InformeDia) Rows {
	rows := Rows{InformeDiaHeader}
	for _, d := range dias {
		rows = append(rows, Row{d.Fecha, d.Ordenes, d.Apelaciones, d.Reembolsos, d.Perdida})
	}

	return rows
}
