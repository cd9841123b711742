package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"salchimonster/restaurant-reports/models"
)

const (
	StatusWaiting          = "waiting"
	StatusCallingDeliverys = "calling_deliverys"
	StatusDeliverysReady   = "deliverys_ready"
)

// ErrRunSkipped marks a scheduler run that did not call restaurant.pe.
var ErrRunSkipped = errors.New("consulta omitida")

// SchedulerStatus is what the dashboards show about the deliveries polling.
type SchedulerStatus struct {
	Status           string  `json:"status"`
	Message          string  `json:"message"`
	SecondsUntilNext *int    `json:"seconds_until_next"`
	NextRunAt        *string `json:"next_run_at"`
	LastReportAt     *string `json:"last_report_at"`
	LastError        *string `json:"last_error"`
	LastFilas        int     `json:"last_filas"`
	IntervalSeconds  int     `json:"interval_seconds"`
}

type SchedulerOptions struct {
	Interval      time.Duration
	DelayBetween  time.Duration
	OpeningHours  OpeningHours
	SkipHourCheck bool
}

// DeliveriesScheduler polls the deliveries of every location during opening hours, then
// crosses them with the DiDi map.
type DeliveriesScheduler struct {
	db         *gorm.DB
	deliveries *DeliveryService
	locales    *LocaleService
	merge      *MergeService
	notifier   Broadcaster
	opts       SchedulerOptions
	now        func() time.Time

	mu         sync.Mutex
	status     string
	nextRun    time.Time
	lastReport time.Time
	lastErr    string
	lastFilas  int
}

func NewDeliveriesScheduler(db *gorm.DB, deliveries *DeliveryService, locales *LocaleService, merge *MergeService, notifier Broadcaster, opts SchedulerOptions) *DeliveriesScheduler {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Minute
	}

	return &DeliveriesScheduler{
		db:         db,
		deliveries: deliveries,
		locales:    locales,
		merge:      merge,
		notifier:   notifier,
		opts:       opts,
		now:        Now,
		status:     StatusWaiting,
	}
}

func (s *DeliveriesScheduler) setStatus(status string) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

func formatTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	v := t.In(Colombia).Format(time.RFC3339)
	return &v
}

// Status builds the current status payload.
func (s *DeliveriesScheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := SchedulerStatus{
		Status:          s.status,
		NextRunAt:       formatTime(s.nextRun),
		LastReportAt:    formatTime(s.lastReport),
		LastFilas:       s.lastFilas,
		IntervalSeconds: int(s.opts.Interval / time.Second),
	}
	if s.lastErr != "" {
		lastErr := s.lastErr
		out.LastError = &lastErr
	}

	if s.nextRun.IsZero() {
		out.Message = "Iniciando... Próxima consulta deliverys en breve."
		return out
	}

	secs := int(s.nextRun.Sub(s.now()).Seconds())
	if secs < 0 {
		secs = 0
	}
	out.SecondsUntilNext = &secs

	switch {
	case s.status == StatusCallingDeliverys:
		out.Message = "Llamando API deliverys (fecha hoy, todos los locales)..."
	case s.status == StatusDeliverysReady && s.lastErr != "":
		out.Message = fmt.Sprintf("Última consulta deliverys: error (%s). Próxima en %d s.", s.lastErr, secs)
	case s.status == StatusDeliverysReady:
		out.Message = fmt.Sprintf("Deliverys listos (%d registros). Próxima consulta en %d s.", s.lastFilas, secs)
	default:
		out.Message = fmt.Sprintf("Próxima consulta deliverys en %d s.", secs)
	}

	return out
}

func (s *DeliveriesScheduler) hasToken() bool {
	session, err := models.FetchSession(s.db)
	return err == nil && session.Token != ""
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RunOnce fetches today's deliveries of every location and runs the DiDi merge. It
// returns the number of rows received. Outside opening hours, without locations or
// without a token it does nothing and returns ErrRunSkipped.
func (s *DeliveriesScheduler) RunOnce(ctx context.Context) (int, error) {
	now := s.now()
	if !s.opts.SkipHourCheck && !s.opts.OpeningHours.Contains(now) {
		return 0, fmt.Errorf("%w: fuera del horario de atención", ErrRunSkipped)
	}

	locales, err := s.locales.List()
	if err != nil {
		return 0, err
	}
	if len(locales) == 0 {
		return 0, fmt.Errorf("%w: no hay locales", ErrRunSkipped)
	}
	if !s.hasToken() {
		return 0, fmt.Errorf("%w: %w", ErrRunSkipped, models.ErrNoToken)
	}

	s.setStatus(StatusCallingDeliverys)
	fecha := now.In(Colombia).Format(DateLayout)

	total := 0
	var lastErr error
	for i, l := range locales {
		if i > 0 {
			if err := sleepCtx(ctx, s.opts.DelayBetween); err != nil {
				return total, err
			}
		}

		rows, err := s.deliveries.FetchForLocal(ctx, l.ID)
		if err == nil {
			_, err = s.deliveries.SaveForLocal(l.ID, fecha, rows)
		}
		if err != nil {
			log.Warnf("Deliverys local %s (%s): %v", l.ID, l.Name, err)
			lastErr = err
			if errors.Is(err, models.ErrNoToken) {
				break
			}
			continue
		}
		total += len(rows)
	}

	if err := s.merge.MergeAndNotify(ctx, fecha); err != nil {
		log.Warnf("Merge DiDi %s: %v", fecha, err)
	}

	return total, lastErr
}

func (s *DeliveriesScheduler) run(ctx context.Context) {
	filas, err := s.RunOnce(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextRun = s.now().Add(s.opts.Interval)
	if errors.Is(err, ErrRunSkipped) {
		log.Debugf("Deliverys: %v", err)
		s.status = StatusWaiting
		return
	}

	s.status = StatusDeliverysReady
	s.lastReport = s.now()
	s.lastFilas = filas
	s.lastErr = ""
	if err != nil {
		s.lastErr = err.Error()
	}
	log.Infof("Deliverys: %d filas recibidas", filas)
}

// Run polls until ctx is done. The first run happens right away.
func (s *DeliveriesScheduler) Run(ctx context.Context) {
	for {
		s.run(ctx)

		s.mu.Lock()
		wait := s.nextRun.Sub(s.now())
		s.mu.Unlock()

		if err := sleepCtx(ctx, wait); err != nil {
			return
		}
	}
}
