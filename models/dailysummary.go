package models

import (
	"fmt"
	"sort"
	"strings"
)

type InformeResumen struct {
	TotalOrdenes         int     `json:"total_ordenes"`
	TotalApelaciones     int     `json:"total_apelaciones"`
	TotalReembolsos      int     `json:"total_reembolsos"`
	TotalDescontadoCanal float64 `json:"total_descontado_canal"`
	TotalDevuelto        float64 `json:"total_devuelto"`
	TotalPerdida         float64 `json:"total_perdida"`
}

type InformeDia struct {
	Fecha       string  `json:"fecha"`
	Ordenes     int     `json:"ordenes"`
	Apelaciones int     `json:"apelaciones"`
	Reembolsos  int     `json:"reembolsos"`
	Perdida     float64 `json:"perdida"`
}

type InformeSede struct {
	Local       string  `json:"local"`
	Ordenes     int     `json:"ordenes"`
	Apelaciones int     `json:"apelaciones"`
	Perdida     float64 `json:"perdida"`
}

type InformeCanal struct {
	Canal       string  `json:"canal"`
	Ordenes     int     `json:"ordenes"`
	Apelaciones int     `json:"apelaciones"`
	Perdida     float64 `json:"perdida"`
}

// Informe holds the metrics shown in the dashboard's reports section.
type Informe struct {
	Resumen  InformeResumen `json:"resumen"`
	PorDia   []InformeDia   `json:"por_dia"`
	PorSede  []InformeSede  `json:"por_sede"`
	PorCanal []InformeCanal `json:"por_canal"`
}

func (s Informe) Show(desde string, hasta string) string {
	output := strings.Builder{}

	output.WriteString(fmt.Sprintf("Informe %s - %s\n", desde, hasta))
	output.WriteString("-----------------------\n")
	output.WriteString(fmt.Sprintf("Órdenes: %d\n", s.Resumen.TotalOrdenes))
	output.WriteString(fmt.Sprintf("Apelaciones: %d\n", s.Resumen.TotalApelaciones))
	output.WriteString(fmt.Sprintf("Reembolsos completos: %d\n", s.Resumen.TotalReembolsos))
	output.WriteString(fmt.Sprintf("Descontado por canales: $%.2f\n", s.Resumen.TotalDescontadoCanal))
	output.WriteString(fmt.Sprintf("Devuelto: $%.2f\n", s.Resumen.TotalDevuelto))
	output.WriteString(fmt.Sprintf("Pérdida: $%.2f\n", s.Resumen.TotalPerdida))

	if len(s.PorSede) > 0 {
		output.WriteString("\nPor sede\n")
		for _, sede := range s.PorSede {
			output.WriteString(fmt.Sprintf("-> %s: %d órdenes, %d apelaciones, $%.2f pérdida\n", sede.Local, sede.Ordenes, sede.Apelaciones, sede.Perdida))
		}
	}

	if len(s.PorCanal) > 0 {
		output.WriteString("\nPor canal\n")
		for _, canal := range s.PorCanal {
			output.WriteString(fmt.Sprintf("-> %s: %d órdenes, %d apelaciones, $%.2f pérdida\n", canal.Canal, canal.Ordenes, canal.Apelaciones, canal.Perdida))
		}
	}

	return output.String()
}

// ApelacionesReporte totals what channels deducted and returned.
type ApelacionesReporte struct {
	TotalDescontado float64     `json:"total_descontado"`
	TotalDevuelto   float64     `json:"total_devuelto"`
	TotalPerdido    float64     `json:"total_perdido"`
	Items           []Apelacion `json:"items"`
}

func NewApelacionesReporte(items []Apelacion) ApelacionesReporte {
	r := ApelacionesReporte{Items: items}
	for _, item := range items {
		r.TotalDescontado += item.MontoDescontado
		r.TotalDevuelto += item.MontoDevueltoValue()
	}
	r.TotalPerdido = round2(r.TotalDescontado - r.TotalDevuelto)
	r.TotalDescontado = round2(r.TotalDescontado)
	r.TotalDevuelto = round2(r.TotalDevuelto)
	if r.Items == nil {
		r.Items = []Apelacion{}
	}

	return r
}

func (r ApelacionesReporte) Show(title string) string {
	output := strings.Builder{}

	output.WriteString(fmt.Sprintf("%s\n\n", title))

	bySede := make(map[string][]Apelacion)
	for _, item := range r.Items {
		bySede[item.Local] = append(bySede[item.Local], item)
	}

	sedes := make([]string, 0, len(bySede))
	for sede := range bySede {
		sedes = append(sedes, sede)
	}
	sort.Strings(sedes)

	for _, sede := range sedes {
		name := sede
		if name == "" {
			name = EmptyField
		}
		output.WriteString(fmt.Sprintf("%s\n", name))
		for _, item := range bySede[sede] {
			output.WriteString(fmt.Sprintf("  #%s %s (%s): -$%.2f, devuelto $%.2f [%s]\n",
				item.Codigo, item.Canal, item.Fecha, item.MontoDescontado, item.MontoDevueltoValue(), item.Estado()))
		}
	}

	output.WriteString(fmt.Sprintf("\nTotal descontado: $%.2f\n", r.TotalDescontado))
	output.WriteString(fmt.Sprintf("Total devuelto: $%.2f\n", r.TotalDevuelto))
	output.WriteString(fmt.Sprintf("Total perdido: $%.2f\n", r.TotalPerdido))

	return output.String()
}
