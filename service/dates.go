package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"salchimonster/restaurant-reports/models"
)

const DateLayout = "2006-01-02"

var Colombia *time.Location

func init() {
	var err error
	Colombia, err = time.LoadLocation("America/Bogota")
	if err != nil {
		panic(err)
	}
}

// Now is the current time in Colombia, where every location operates. Dates such as
// "today" and quincenas must never follow the server's own timezone.
func Now() time.Time {
	return time.Now().In(Colombia)
}

func Today() string {
	return Now().Format(DateLayout)
}

// FetchedAt formats t the way consultation timestamps are shown: YYYY-MM-DD HH:MM:SS (Colombia).
func FetchedAt(t time.Time) string {
	return t.In(Colombia).Format("2006-01-02 15:04:05") + " (Colombia)"
}

func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > 10 {
		s = s[:10]
	}

	t, err := time.ParseInLocation(DateLayout, s, Colombia)
	if err != nil {
		return time.Time{}, fmt.Errorf("fecha %q debe ser YYYY-MM-DD: %w", s, models.ErrInvalidInput)
	}

	return t, nil
}

// DateRange returns every date from desde to hasta inclusive. A reversed range is swapped.
func DateRange(desde string, hasta string) ([]string, error) {
	start, err := ParseDate(desde)
	if err != nil {
		return nil, err
	}
	end, err := ParseDate(hasta)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		start, end = end, start
	}

	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(DateLayout))
	}

	return dates, nil
}

// ResolveDates picks a range when both ends are present, otherwise the single day,
// otherwise fallback. An empty fallback yields no dates.
func ResolveDates(fecha string, desde string, hasta string, fallback string) ([]string, error) {
	desde, hasta = strings.TrimSpace(desde), strings.TrimSpace(hasta)
	if desde != "" && hasta != "" {
		return DateRange(desde, hasta)
	}

	day := strings.TrimSpace(fecha)
	if day == "" {
		day = fallback
	}
	if day == "" {
		return nil, nil
	}

	t, err := ParseDate(day)
	if err != nil {
		return nil, err
	}

	return []string{t.Format(DateLayout)}, nil
}

func parseHHMM(s string) (int, int) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0
	}

	h, errH := strconv.Atoi(strings.TrimSpace(parts[0]))
	m, errM := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errH != nil || errM != nil {
		return 0, 0
	}

	return h % 24, m % 60
}

// OpeningHours is the daily window during which orders are fetched. A close time at or
// before the open time means the window runs past midnight.
type OpeningHours struct {
	OpenAt  string
	CloseAt string
}

func (o OpeningHours) Contains(t time.Time) bool {
	t = t.In(Colombia)
	now := t.Hour()*60 + t.Minute()

	openH, openM := parseHHMM(o.OpenAt)
	closeH, closeM := parseHHMM(o.CloseAt)
	open := openH*60 + openM
	closing := closeH*60 + closeM

	if closing <= open {
		return now >= open || now < closing
	}

	return open <= now && now < closing
}

// Quincena names the payroll half-month t falls in, e.g. 2026-02-1 or 2026-02-2.
func Quincena(t time.Time) string {
	half := 1
	if t.Day() > 15 {
		half = 2
	}

	return fmt.Sprintf("%s-%d", t.Format("2006-01"), half)
}

// DefaultQuincena is the first quincena of the current month.
func DefaultQuincena(t time.Time) string {
	return t.Format("2006-01") + "-1"
}

// QuincenaRange returns the first and last date covered by a quincena name.
func QuincenaRange(quincena string) (string, string, error) {
	idx := strings.LastIndex(quincena, "-")
	if idx < 0 {
		return "", "", fmt.Errorf("QuincenaRange: invalid quincena %q", quincena)
	}

	month, err := time.ParseInLocation("2006-01", quincena[:idx], Colombia)
	if err != nil {
		return "", "", fmt.Errorf("QuincenaRange: invalid quincena %q: %w", quincena, err)
	}

	switch quincena[idx+1:] {
	case "1":
		return month.Format(DateLayout), month.AddDate(0, 0, 14).Format(DateLayout), nil
	case "2":
		return month.AddDate(0, 0, 15).Format(DateLayout), month.AddDate(0, 1, -1).Format(DateLayout), nil
	default:
		return "", "", fmt.Errorf("QuincenaRange: invalid quincena %q", quincena)
	}
}
