package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"salchimonster/restaurant-reports/export"
	"salchimonster/restaurant-reports/models"
	"salchimonster/restaurant-reports/payroll"
	"salchimonster/restaurant-reports/service"
	"salchimonster/restaurant-reports/service/sheets"
)

var (
	exportQuincena string
	payrollOut     string
	pdfOut         string
	exportFilter   models.ApelacionFilter
)

func init() {
	payrollCmd.Flags().StringVar(&exportQuincena, "quincena", "", "quincena to export, e.g. 2026-02-1 (current one when empty)")
	payrollCmd.Flags().StringVarP(&payrollOut, "out", "o", "", "CSV file (descuentos_<quincena>.csv when empty)")

	pdfCmd.Flags().StringVar(&exportFilter.Local, "local", "", "location name")
	pdfCmd.Flags().StringVar(&exportFilter.Desde, "desde", "", "first day (YYYY-MM-DD)")
	pdfCmd.Flags().StringVar(&exportFilter.Hasta, "hasta", "", "last day (YYYY-MM-DD)")
	pdfCmd.Flags().StringVarP(&pdfOut, "out", "o", "apelaciones.pdf", "PDF file")

	sheetsCmd.Flags().StringVar(&exportFilter.Desde, "desde", "", "first day (YYYY-MM-DD)")
	sheetsCmd.Flags().StringVar(&exportFilter.Hasta, "hasta", "", "last day (YYYY-MM-DD)")
	_ = sheetsCmd.MarkFlagRequired("desde")
	_ = sheetsCmd.MarkFlagRequired("hasta")

	exportCmd.AddCommand(payrollCmd, pdfCmd, sheetsCmd)
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Exports deductions and dispute reports.",
}

var payrollCmd = &cobra.Command{
	Use:   "payroll",
	Short: "Writes the payroll deductions of a quincena as CSV.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			quincena := exportQuincena
			if quincena == "" {
				quincena = service.Quincena(service.Now())
			}

			descuentos, apelaciones, err := a.apelaciones.DescuentosQuincena(quincena)
			if err != nil {
				return err
			}
			entries := payroll.NewEntries(quincena, descuentos, apelaciones)

			out := payrollOut
			if out == "" {
				out = fmt.Sprintf("descuentos_%s.csv", quincena)
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()

			if err = entries.ToCSV(f); err != nil {
				return err
			}

			totals := entries.TotalsByLocal()
			locales := make([]string, 0, len(totals))
			for local := range totals {
				locales = append(locales, local)
			}
			sort.Strings(locales)

			t := newTable()
			t.AppendHeader(table.Row{"Local", "Descontado"})
			for _, local := range locales {
				t.AppendRow(table.Row{local, fmt.Sprintf("$%.2f", totals[local])})
			}
			t.Render()
			fmt.Printf("%d descuentos en %s\n", len(entries), out)

			return nil
		})
	},
}

var pdfCmd = &cobra.Command{
	Use:   "pdf",
	Short: "Writes the disputes report as PDF.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			reporte, err := a.apelaciones.Reporte(exportFilter)
			if err != nil {
				return err
			}

			f, err := os.Create(pdfOut)
			if err != nil {
				return err
			}
			defer f.Close()

			if err = export.ApelacionesPDF(f, export.ReporteTitle(exportFilter), reporte); err != nil {
				return err
			}
			fmt.Printf("%d apelaciones en %s\n", len(reporte.Items), pdfOut)

			return nil
		})
	},
}

var sheetsCmd = &cobra.Command{
	Use:   "sheets",
	Short: "Appends the daily series of the reports section to the Google Sheet.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Sheets.SpreadsheetID == "" {
			return fmt.Errorf("sheets.spreadsheet_id no configurado: %w", models.ErrUnavailable)
		}

		return withApp(cmd.Context(), func(a *app) error {
			informe, err := a.informes.Informe(exportFilter.Desde, exportFilter.Hasta)
			if err != nil {
				return err
			}

			srv, err := sheets.NewService(cmd.Context(), cfg.Sheets.CredentialsFile)
			if err != nil {
				return err
			}

			appended, err := sheets.NewClient(srv).AppendInforme(cmd.Context(), cfg.Sheets.SpreadsheetID, cfg.Sheets.SheetName, informe)
			if err != nil {
				return err
			}
			fmt.Print(informe.Show(exportFilter.Desde, exportFilter.Hasta))
			fmt.Printf("%d filas agregadas a %s\n", appended, cfg.Sheets.SheetName)

			return nil
		})
	},
}
