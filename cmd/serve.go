package cmd

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"salchimonster/restaurant-reports/api"
	"salchimonster/restaurant-reports/auth"
	"salchimonster/restaurant-reports/notify"
	"salchimonster/restaurant-reports/service"
)

var skipHourCheck bool

func init() {
	serveCmd.Flags().BoolVar(&skipHourCheck, "skip-hour-check", false, "poll deliveries outside opening hours")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the dashboard API, its WebSocket hubs and the background pollers.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

// originHosts turns the CORS origins into the host patterns the WebSocket handshake checks.
func originHosts(origins []string) []string {
	var hosts []string
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
		}
	}

	return hosts
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func serve(ctx context.Context) error {
	origins := originHosts(cfg.HTTP.CorsOrigins)
	credentialsHub := notify.NewHub("credentials").WithOrigins(origins)
	reportHub := notify.NewHub("report").WithOrigins(origins)
	// The DiDi extension connects from chrome-extension:// origins.
	sedesHub := notify.NewHub("didi-sedes").WithOrigins([]string{"*"})

	a, err := newApp(ctx, cfg, notifiers{credentials: credentialsHub, report: reportHub, sedes: sedesHub})
	if err != nil {
		return err
	}
	defer a.Close()

	scheduler := service.NewDeliveriesScheduler(a.db, a.deliveries, a.locales, a.merge, reportHub, service.SchedulerOptions{
		Interval:      seconds(cfg.Scheduler.DeliveriesIntervalSeconds),
		DelayBetween:  time.Duration(cfg.Scheduler.DelayBetweenLocalesMillis) * time.Millisecond,
		OpeningHours:  service.OpeningHours{OpenAt: cfg.OpeningHours.OpenAt, CloseAt: cfg.OpeningHours.CloseAt},
		SkipHourCheck: skipHourCheck,
	})
	schedulerStatus := func() interface{} { return scheduler.Status() }
	currentSedes := func() interface{} { return a.didi.CurrentSedes() }
	reportHub.WithGreeting(schedulerStatus)
	sedesHub.WithGreeting(currentSedes)

	signer := auth.NewSigner(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TTLHours)*time.Hour)
	if !signer.Enabled() {
		log.Warn("auth.jwt_secret vacío: rutas de administración sin autenticación")
	}

	router := api.NewRouter(&api.Server{
		Session:        a.session,
		Locales:        a.locales,
		Deliveries:     a.deliveries,
		Orders:         a.orders,
		Apelaciones:    a.apelaciones,
		Informes:       a.informes,
		Planillas:      a.planillas,
		Fotos:          a.fotos,
		Didi:           a.didi,
		Auth:           signer,
		CredentialsHub: credentialsHub,
		ReportHub:      reportHub,
		SedesHub:       sedesHub,
		CorsOrigins:    cfg.HTTP.CorsOrigins,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	background := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	//--- Session and locations
	background(func() {
		if _, err := a.session.Token(); err == nil {
			return
		}
		if _, err := a.session.Login(ctx); err != nil {
			log.Warnf("Login inicial: %v", err)
			return
		}
		if _, err := a.locales.Sync(ctx); err != nil {
			log.Warnf("Locales: %v", err)
		}
	})
	if cfg.Scheduler.LoginRefreshHours > 0 {
		background(func() { a.session.RefreshLoop(ctx, time.Duration(cfg.Scheduler.LoginRefreshHours)*time.Hour) })
	}
	if cfg.Scheduler.LocalesIntervalSeconds > 0 {
		background(func() { a.locales.SyncLoop(ctx, seconds(cfg.Scheduler.LocalesIntervalSeconds)) })
	}

	//--- Deliveries polling and dashboards
	background(func() { scheduler.Run(ctx) })
	background(func() { reportHub.BroadcastEvery(ctx, time.Second, schedulerStatus) })
	if cfg.Didi.BroadcastMillis > 0 {
		background(func() {
			sedesHub.BroadcastEvery(ctx, time.Duration(cfg.Didi.BroadcastMillis)*time.Millisecond, currentSedes)
		})
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Escuchando en %s", cfg.HTTP.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err = <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			cancel()
			wg.Wait()
			return err
		}
	}

	log.Info("Deteniendo servidor...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	err = srv.Shutdown(shutdownCtx)

	cancel()
	wg.Wait()

	return err
}
