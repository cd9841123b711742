package cmd

import (
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"salchimonster/restaurant-reports/mailer"
	"salchimonster/restaurant-reports/models"
	"salchimonster/restaurant-reports/service"
	"salchimonster/restaurant-reports/sftp"
)

var planillasFecha string

func init() {
	planillasCmd.PersistentFlags().StringVar(&planillasFecha, "fecha", "", "day (YYYY-MM-DD), yesterday when empty")
	planillasCmd.AddCommand(pushCmd, remindCmd)
	rootCmd.AddCommand(planillasCmd)
}

func planillasDay() string {
	if planillasFecha != "" {
		return planillasFecha
	}
	return service.Now().AddDate(0, 0, -1).Format(service.DateLayout)
}

var planillasCmd = &cobra.Command{
	Use:   "planillas",
	Short: "Archives the daily planillas and chases the missing ones.",
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Uploads the planillas of a day to the SFTP archive.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.SFTP.Server == "" {
			return fmt.Errorf("sftp.server no configurado: %w", models.ErrUnavailable)
		}

		key, err := os.ReadFile(cfg.SFTP.PrivateKeyFile)
		if err != nil {
			return fmt.Errorf("sftp.private_key_file: %w", err)
		}

		client, err := sftp.New(sftp.Config{
			Username:   cfg.SFTP.Username,
			PrivateKey: string(key),
			HostKey:    cfg.SFTP.HostKey,
			Server:     cfg.SFTP.Server,
			Timeout:    30 * time.Second,
		})
		if err != nil {
			return err
		}
		defer client.Close()

		return withApp(cmd.Context(), func(a *app) error {
			fecha := planillasDay()
			sent, err := a.planillas.Push(fecha, cfg.SFTP.RemoteDir, client)
			if err != nil {
				return err
			}

			fmt.Printf("%d planillas de %s enviadas a %s\n", sent, fecha, cfg.SFTP.Server)
			return nil
		})
	},
}

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Mails the list of locations without a planilla for the day.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.SMTP.Server == "" || len(cfg.SMTP.Recipients) == 0 {
			return fmt.Errorf("smtp.server y smtp.recipients son requeridos: %w", models.ErrUnavailable)
		}

		return withApp(cmd.Context(), func(a *app) error {
			fecha := planillasDay()
			pendientes, err := a.planillas.Pending(fecha)
			if err != nil {
				return err
			}
			if len(pendientes) == 0 {
				log.Infof("Todas las sedes subieron la planilla del %s", fecha)
				return nil
			}
			printLocales(pendientes)

			subject, body := mailer.PlanillasPendientes(fecha, pendientes)
			m := mailer.New(mailer.Config{
				Server:       cfg.SMTP.Server,
				Port:         cfg.SMTP.Port,
				EmailAddress: cfg.SMTP.EmailAddress,
				Password:     cfg.SMTP.Password,
			})

			return m.Send(cfg.SMTP.Recipients, subject, body)
		})
	},
}
