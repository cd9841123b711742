package cmd

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"salchimonster/restaurant-reports/config"
	"salchimonster/restaurant-reports/database"
	"salchimonster/restaurant-reports/didi"
	"salchimonster/restaurant-reports/models"
	"salchimonster/restaurant-reports/service"
	"salchimonster/restaurant-reports/service/browser"
	"salchimonster/restaurant-reports/service/external"
)

// notifiers are the push channels of the dashboards. Commands that do not serve leave
// them empty.
type notifiers struct {
	credentials service.Broadcaster
	report      service.Broadcaster
	sedes       service.Broadcaster
}

// app wires the services every command works with.
type app struct {
	db       *gorm.DB
	closers  []func()
	registry *didi.Registry

	session     *service.SessionService
	locales     *service.LocaleService
	deliveries  *service.DeliveryService
	orders      *service.OrderService
	apelaciones *service.ApelacionService
	informes    *service.InformeService
	planillas   *service.PlanillaStore
	fotos       *service.FotoStore
	merge       *service.MergeService
	didi        *service.DidiService
}

func browserOptions(c config.Config) browser.Options {
	return browser.Options{
		UserAgent: c.Restaurant.UserAgent,
		Headless:  true,
		Timeout:   time.Duration(c.Restaurant.TimeoutSeconds) * time.Second,
	}
}

func formLogin(c config.Config) service.FormLoginFunc {
	opts := browserOptions(c)
	loginURL := c.Restaurant.URL(c.Restaurant.LoginPath)

	return func(ctx context.Context, creds models.Credentials, cookies []models.Cookie) (*browser.FormLoginResult, error) {
		return browser.FormLogin(ctx, opts, loginURL, creds, cookies)
	}
}

// heartbeatStore keeps DiDi heartbeats in redis when redis.url is set and in the
// database otherwise.
func heartbeatStore(ctx context.Context, c config.Config, db *gorm.DB) (didi.Store, func(), error) {
	if c.Redis.URL == "" {
		return didi.NewGormStore(db), func() {}, nil
	}

	client, err := didi.ConnectRedis(ctx, c.Redis.URL)
	if err != nil {
		return nil, nil, err
	}
	log.Infof("Heartbeats DiDi en redis")

	return didi.NewRedisStore(client), func() { client.Close() }, nil
}

func newApp(ctx context.Context, c config.Config, n notifiers) (*app, error) {
	db, err := database.Setup(ctx, c.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("newApp: %w", err)
	}
	a := &app{db: db, closers: []func(){func() { database.Close(db) }}}

	client, err := external.NewRestaurantClient(c.Restaurant)
	if err != nil {
		a.Close()
		return nil, err
	}
	client.WithPaging(c.Scheduler.DeliveriesPageSize, c.Scheduler.MaxDeliveriesPerLocal)

	store, closeStore, err := heartbeatStore(ctx, c, db)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closeStore)

	a.registry = didi.NewRegistry(store, time.Duration(c.Didi.StaleSeconds)*time.Second, c.Didi.Blacklist)
	if err = a.registry.Load(ctx); err != nil {
		log.Warnf("Heartbeats DiDi: no se pudieron cargar: %v", err)
	}

	a.fotos = service.NewFotoStore(c.UploadsDir())
	a.session = service.NewSessionService(db, client, formLogin(c), n.credentials)
	a.locales = service.NewLocaleService(db, client, models.NewLocaleFilter(c.Locales.BlacklistIDs, c.Locales.Rename))
	a.deliveries = service.NewDeliveryService(db, client, c.ReportsDir())
	a.orders = service.NewOrderService(db, a.locales, a.fotos)
	a.apelaciones = service.NewApelacionService(db, a.orders, a.fotos)
	a.informes = service.NewInformeService(db, a.locales, a.fotos)
	a.planillas = service.NewPlanillaStore(c.PlanillasDir(), a.locales)
	a.merge = service.NewMergeService(db, a.fotos, n.report)
	a.didi = service.NewDidiService(db, a.registry, a.merge, a.locales, n.sedes, c.Didi.MapaFile)

	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// withApp runs fn with the services of a command that does not serve.
func withApp(ctx context.Context, fn func(a *app) error) error {
	a, err := newApp(ctx, cfg, notifiers{})
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(a)
}
