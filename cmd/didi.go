package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"salchimonster/restaurant-reports/service/browser"
)

var linkSuggestions bool

func init() {
	suggestCmd.Flags().BoolVar(&linkSuggestions, "link", false, "store every suggestion in the map file")
	didiCmd.AddCommand(captureCmd, suggestCmd)
	rootCmd.AddCommand(didiCmd)
}

var didiCmd = &cobra.Command{
	Use:   "didi",
	Short: "Works with the DiDi Food merchant console.",
}

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Opens the DiDi console and forwards its order and shop answers to the server.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return browser.CaptureDidi(cmd.Context(), browserOptions(cfg), cfg.Didi.ConsoleURL, browser.NewCapturePoster(cfg.Didi.CaptureEndpoint))
	},
}

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Proposes restaurant.pe <-> DiDi shop links by name.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			suggestions, err := a.didi.Suggest()
			if err != nil {
				return err
			}

			t := newTable()
			t.AppendHeader(table.Row{"Restaurant", "Local", "Shop", "Tienda DiDi", "Correlación"})
			for _, s := range suggestions {
				t.AppendRow(table.Row{s.RestaurantID, s.RestaurantName, s.ShopID, s.ShopName, fmt.Sprintf("%.2f", s.Correlation)})
			}
			t.Render()

			if !linkSuggestions {
				return nil
			}
			for _, s := range suggestions {
				if _, err = a.didi.Link(cmd.Context(), s.Sede()); err != nil {
					return err
				}
			}
			fmt.Printf("%d sedes enlazadas en %s\n", len(suggestions), cfg.Didi.MapaFile)

			return nil
		})
	},
}
