package decision

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Budget caps the water applied per local day. The day's allowance is
// base + coeff*max(0, ET0-rain); doses consumed by irrigation cycles are
// deducted and automatic irrigation stops when the allowance is spent.
type Budget struct {
	base  float64
	coeff float64
	wc    WeatherClient
	loc   *time.Location
	log   *zap.SugaredLogger

	mu        sync.Mutex
	day       time.Time
	total     float64
	remaining float64
}

const (
	// Fallbacks when the weather service is unreachable.
	fallbackET0  = 4.0
	fallbackRain = 0.0
)

func NewBudget(baseMM, etoCoeff float64, wc WeatherClient, loc *time.Location, log *zap.SugaredLogger) *Budget {
	if loc == nil {
		loc = time.Local
	}
	return &Budget{base: baseMM, coeff: etoCoeff, wc: wc, loc: loc, log: log}
}

// Remaining returns the unspent allowance for the day containing now,
// computing the day's budget on first use.
func (b *Budget) Remaining(ctx context.Context, now time.Time) float64 {
	dayStart := midnight(now, b.loc)

	b.mu.Lock()
	if b.day.Equal(dayStart) {
		rem := b.remaining
		b.mu.Unlock()
		return rem
	}
	b.mu.Unlock()

	eto, rain := fallbackET0, fallbackRain
	if b.wc != nil {
		e, r, err := b.wc.DailyET0AndRain(ctx, dayStart)
		if err != nil {
			b.log.Warnw("weather lookup failed, using defaults", "err", err)
		} else {
			eto, rain = e, r
		}
	}
	total := b.base + b.coeff*math.Max(0, eto-rain)
	if total < 0 {
		total = 0
	}

	b.mu.Lock()
	b.day = dayStart
	b.total = total
	b.remaining = total
	b.mu.Unlock()

	b.log.Infow("daily water budget computed",
		"day", dayStart.Format("2006-01-02"), "et0_mm", eto, "rain_mm", rain, "budget_mm", total)
	return total
}

// Consume deducts applied millimetres from the current day's allowance.
func (b *Budget) Consume(now time.Time, mm float64) float64 {
	dayStart := midnight(now, b.loc)

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.day.Equal(dayStart) {
		// A dose applied across midnight counts against the new day,
		// whose budget has not been computed yet.
		b.day = dayStart
		b.total = 0
		b.remaining = 0
		return 0
	}
	b.remaining -= mm
	if b.remaining < 0 {
		b.remaining = 0
	}
	return b.remaining
}

func midnight(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}
