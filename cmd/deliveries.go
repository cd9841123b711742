package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"salchimonster/restaurant-reports/models"
	"salchimonster/restaurant-reports/service"
)

var (
	fetchLocal string
	fetchFecha string

	reportDesde string
	reportHasta string
)

func init() {
	localesCmd.AddCommand(localesSyncCmd, localesListCmd)
	rootCmd.AddCommand(localesCmd)

	fetchCmd.Flags().StringVar(&fetchLocal, "local", "", "restaurant.pe location id, all locations when empty")
	fetchCmd.Flags().StringVar(&fetchFecha, "fecha", "", "day the deliveries are stored under (YYYY-MM-DD), today when empty")
	showCmd.Flags().StringVar(&fetchLocal, "local", "", "location name")
	showCmd.Flags().StringVar(&fetchFecha, "fecha", "", "day (YYYY-MM-DD), today when empty")
	_ = showCmd.MarkFlagRequired("local")
	deliveriesCmd.AddCommand(fetchCmd, showCmd)
	rootCmd.AddCommand(deliveriesCmd)

	downloadCmd.Flags().StringVar(&reportDesde, "desde", "", "first day (YYYY-MM-DD)")
	downloadCmd.Flags().StringVar(&reportHasta, "hasta", "", "last day (YYYY-MM-DD)")
	_ = downloadCmd.MarkFlagRequired("desde")
	_ = downloadCmd.MarkFlagRequired("hasta")
	reportCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(reportCmd)
}

func printLocales(locales []models.Locale) {
	t := newTable()
	t.AppendHeader(table.Row{"ID", "Local"})
	for _, l := range locales {
		t.AppendRow(table.Row{l.ID, l.Name})
	}
	t.Render()
}

var localesCmd = &cobra.Command{
	Use:   "locales",
	Short: "Lists and refreshes the restaurant.pe locations.",
}

var localesSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Downloads the allowed locations with the stored session.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			locales, err := a.locales.Sync(cmd.Context())
			if err != nil {
				return err
			}

			printLocales(locales)
			return nil
		})
	},
}

var localesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Shows the stored locations after the blacklist and renames.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			locales, err := a.locales.List()
			if err != nil {
				return err
			}

			printLocales(locales)
			return nil
		})
	},
}

var deliveriesCmd = &cobra.Command{
	Use:   "deliveries",
	Short: "Works with the restaurant.pe deliveries.",
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetches the deliveries of one or every location and runs the DiDi merge.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			fecha := fetchFecha
			if fecha == "" {
				fecha = service.Today()
			}
			if _, err := service.ParseDate(fecha); err != nil {
				return err
			}

			locales := []models.Locale{{ID: fetchLocal, Name: fetchLocal}}
			if fetchLocal == "" {
				var err error
				if locales, err = a.locales.List(); err != nil {
					return err
				}
			}

			t := newTable()
			t.AppendHeader(table.Row{"ID", "Local", "Filas", "Error"})
			total := 0
			for _, l := range locales {
				saved, err := a.deliveries.Refresh(cmd.Context(), l.ID, fecha)
				msg := ""
				if err != nil {
					msg = err.Error()
				}
				total += saved
				t.AppendRow(table.Row{l.ID, l.Name, saved, msg})
			}
			t.AppendFooter(table.Row{"", "Total", total, ""})
			t.Render()

			if err := a.merge.MergeAndNotify(cmd.Context(), fecha); err != nil {
				log.Warnf("Merge DiDi %s: %v", fecha, err)
			}

			return nil
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Shows the stored orders of a location and their totals per channel.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			fecha := fetchFecha
			if fecha == "" {
				fecha = service.Today()
			}

			orders, err := a.orders.ForLocal(fetchLocal, fecha, fecha)
			if err != nil {
				return err
			}

			t := newTable()
			t.AppendHeader(table.Row{"Hora", "Código", "Canal", "Cliente", "Monto"})
			for _, o := range orders {
				monto := models.EmptyField
				if o.MontoPagado != nil {
					monto = *o.MontoPagado
				}
				t.AppendRow(table.Row{o.Hora, o.CodigoIntegracion, o.Canal, o.Cliente, monto})
			}
			t.Render()
			fmt.Print(models.GroupByMerchant(orders).Show())

			return nil
		})
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Works with the restaurant.pe sales report.",
}

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Downloads the sales report Excel for a date range.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			result, err := a.deliveries.DownloadSalesReport(cmd.Context(), reportDesde, reportHasta)
			if err != nil {
				return err
			}

			fmt.Printf("%s (%d filas)\n", result.File, result.Rows)
			return nil
		})
	},
}
