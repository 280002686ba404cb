package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"hotel_rates/internal/adapters/observability"
	"hotel_rates/internal/domain"
)

// Pacer blocks until the next PMS call may start. *rate.Limiter satisfies it.
type Pacer interface {
	Wait(ctx context.Context) error
}

// NewIntervalPacer allows one call per interval.
func NewIntervalPacer(interval time.Duration) Pacer {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// Pusher sends push payloads to the PMS one item at a time. Pushes for the same
// property never overlap, so an older payload cannot overwrite a fresher one mid-flight.
type Pusher struct {
	pms   domain.PMS
	pacer Pacer

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewPusher(pms domain.PMS, pacer Pacer) *Pusher {
	return &Pusher{pms: pms, pacer: pacer, locks: map[string]*sync.Mutex{}}
}

func (p *Pusher) lockFor(propertyID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[propertyID]
	if !ok {
		l = &sync.Mutex{}
		p.locks[propertyID] = l
	}
	return l
}

// Push posts every item in order. A failed item is recorded and the queue moves on;
// cancellation stops the queue and marks the remainder not attempted. Nothing already
// written to the calendar is rolled back.
func (p *Pusher) Push(ctx context.Context, propertyID string, items []domain.PushItem) domain.PushReport {
	l := p.lockFor(propertyID)
	l.Lock()
	defer l.Unlock()

	logger := log.With().Str("pms_property_id", propertyID).Logger()
	report := domain.PushReport{Results: make([]domain.PushResult, len(items))}
	for i, it := range items {
		report.Results[i] = domain.PushResult{Item: it, Status: domain.PushNotAttempted}
	}

	for i := range report.Results {
		res := &report.Results[i]
		if err := ctx.Err(); err != nil {
			res.Error = err.Error()
			break
		}
		if !domain.ValidRate(res.Item.Rate) {
			res.Status, res.Error = domain.PushFailed, "refusing to push a non-positive rate"
			logger.Error().Str("date", res.Item.Date).Str("rate_id", res.Item.RateID).Msg("non-positive rate reached the push queue")
			observability.ObservePush(string(res.Status))
			continue
		}
		if p.pacer != nil {
			if err := p.pacer.Wait(ctx); err != nil {
				res.Error = err.Error()
				break
			}
		}

		job, err := p.pms.PostRate(ctx, propertyID, res.Item.RateID, res.Item.Date, res.Item.Rate)
		if err != nil {
			res.Status, res.Error = domain.PushFailed, err.Error()
			logger.Warn().Err(err).Str("date", res.Item.Date).Str("rate_id", res.Item.RateID).Msg("pms push failed")
		} else {
			res.Status, res.JobReferenceID = domain.PushOK, job
		}
		observability.ObservePush(string(res.Status))
	}

	logger.Info().
		Int("ok", report.Count(domain.PushOK)).
		Int("failed", report.Count(domain.PushFailed)).
		Int("not_attempted", report.Count(domain.PushNotAttempted)).
		Msg("push queue drained")
	return report
}
