package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"hotel_rates/internal/adapters/observability"
	"hotel_rates/internal/domain"
	"hotel_rates/internal/pricing"
)

// RateService turns rate decisions into calendar rows, price history and PMS push payloads.
type RateService struct {
	repo    domain.Repository
	pms     domain.PMS
	cache   domain.Cache
	workers int
	now     func() time.Time
}

func NewRateService(r domain.Repository, pms domain.PMS, cache domain.Cache, workers int) *RateService {
	if workers <= 0 {
		workers = 4
	}
	return &RateService{repo: r, pms: pms, cache: cache, workers: workers, now: time.Now}
}

// WithClock replaces the wall clock used for "today".
func (s *RateService) WithClock(now func() time.Time) *RateService {
	s.now = now
	return s
}

func (s *RateService) loadConfig(ctx context.Context, hotelID string) (domain.HotelPricingConfig, error) {
	cfg, err := s.repo.GetConfig(ctx, hotelID)
	if err != nil {
		return domain.HotelPricingConfig{}, err
	}
	return cfg.WithDefaults(), nil
}

// baseRoom resolves the room the rates are entered for, falling back to the
// configured base room. Without one there is nothing to anchor differentials on.
func baseRoom(cfg domain.HotelPricingConfig, roomTypeID string) (string, error) {
	if roomTypeID == "" {
		roomTypeID = cfg.BaseRoomTypeID
	}
	if roomTypeID == "" {
		return "", fmt.Errorf("hotel %s: %w: base room type is not set", cfg.HotelID, domain.ErrInvalidConfig)
	}
	return roomTypeID, nil
}

// ApplyOverrides writes a batch of base-room rates for one hotel and returns the PMS
// payload for the base room and every differential room. Bad rows are reported and
// skipped; they never abort the batch. Pushing the payload is the caller's job.
func (s *RateService) ApplyOverrides(ctx context.Context, hotelID, pmsPropertyID, baseRoomTypeID string, overrides []domain.RateOverride, source domain.Source) (domain.BatchReport, error) {
	cfg, err := s.loadConfig(ctx, hotelID)
	if err != nil {
		return domain.BatchReport{}, err
	}
	if len(cfg.RateIDMap) == 0 {
		return domain.BatchReport{}, fmt.Errorf("hotel %s: %w", hotelID, domain.ErrRateMapMissing)
	}
	if baseRoomTypeID, err = baseRoom(cfg, baseRoomTypeID); err != nil {
		return domain.BatchReport{}, err
	}
	if source == "" {
		source = domain.SourceManual
	}

	report := domain.BatchReport{
		ID:         uuid.NewString(),
		HotelID:    hotelID,
		PropertyID: pmsPropertyID,
		Source:     source,
		Items:      make([]domain.ItemOutcome, len(overrides)),
	}
	logger := log.With().Str("batch_id", report.ID).Str("hotel_id", hotelID).
		Str("room_type_id", baseRoomTypeID).Logger()

	// validate, and let the last override for a date win
	last := make(map[string]int, len(overrides))
	for i, o := range overrides {
		it := &report.Items[i]
		it.Date, it.Rate = o.Date, o.Rate
		if !domain.ValidRate(o.Rate) || !domain.ValidRate(pricing.Round2(o.Rate)) {
			it.Outcome, it.Reason = domain.OutcomeInvalid, "rate must be a positive number"
			it.Rate = 0
			logger.Warn().Str("date", o.Date).Msg("dropping override with invalid rate")
			continue
		}
		if _, err := domain.ParseDate(o.Date); err != nil {
			it.Outcome, it.Reason = domain.OutcomeInvalid, "date must be YYYY-MM-DD"
			logger.Warn().Str("date", o.Date).Msg("dropping override with invalid date")
			continue
		}
		it.Rate = pricing.Round2(o.Rate)
		if j, dup := last[o.Date]; dup {
			report.Items[j].Outcome, report.Items[j].Reason = domain.OutcomeSkipped, "superseded by a later override for the same date"
		}
		last[o.Date] = i
	}

	// calendar upserts are idempotent per key, so dates are written concurrently
	g := new(errgroup.Group)
	g.SetLimit(s.workers)
	for i := range report.Items {
		if report.Items[i].Outcome != "" {
			continue
		}
		it := &report.Items[i]
		g.Go(func() error {
			changed, err := s.writeDay(ctx, hotelID, baseRoomTypeID, it.Date, it.Rate, source)
			if err != nil {
				it.Outcome, it.Reason = domain.OutcomeFailed, err.Error()
				logger.Error().Err(err).Str("date", it.Date).Msg("calendar write failed")
				return nil
			}
			it.Outcome, it.Changed = domain.OutcomeApplied, changed
			return nil
		})
	}
	_ = g.Wait()

	for i := range report.Items {
		it := &report.Items[i]
		observability.ObserveBatchItem(string(source), string(it.Outcome))
		if it.Outcome != domain.OutcomeApplied {
			continue
		}
		report.Payload = append(report.Payload, s.payloadFor(cfg, baseRoomTypeID, it, logger)...)
	}

	s.evictContext(ctx, hotelID)
	logger.Info().
		Int("applied", report.Count(domain.OutcomeApplied)).
		Int("invalid", report.Count(domain.OutcomeInvalid)).
		Int("failed", report.Count(domain.OutcomeFailed)).
		Int("payload", len(report.Payload)).
		Msg("override batch processed")
	return report, nil
}

// writeDay appends history when the value changed and upserts the calendar row.
func (s *RateService) writeDay(ctx context.Context, hotelID, roomTypeID, date string, rate float64, source domain.Source) (bool, error) {
	var old *float64
	prior, err := s.repo.GetCalendarEntry(ctx, hotelID, roomTypeID, date)
	switch {
	case err == nil:
		v := prior.Rate
		old = &v
	case !errors.Is(err, domain.ErrNotFound):
		return false, fmt.Errorf("read calendar: %w", err)
	}

	changed := old == nil || pricing.Round2(*old) != rate
	if changed {
		rec := domain.PriceHistoryRecord{
			HotelID: hotelID, RoomTypeID: roomTypeID, StayDate: date,
			OldPrice: old, NewPrice: rate, Source: source, CreatedAt: s.now().UTC(),
		}
		if err := s.repo.InsertPriceHistory(ctx, rec); err != nil {
			return false, fmt.Errorf("insert price history: %w", err)
		}
	}

	entry := domain.CalendarEntry{
		HotelID: hotelID, RoomTypeID: roomTypeID, StayDate: date,
		Rate: rate, Source: source, LastUpdatedAt: s.now().UTC(),
	}
	if err := s.repo.UpsertCalendarEntry(ctx, entry); err != nil {
		return changed, fmt.Errorf("upsert calendar: %w", err)
	}
	return changed, nil
}

func (s *RateService) payloadFor(cfg domain.HotelPricingConfig, baseRoomTypeID string, it *domain.ItemOutcome, logger zerolog.Logger) []domain.PushItem {
	var out []domain.PushItem
	if rateID, ok := cfg.RateIDFor(baseRoomTypeID); ok {
		out = append(out, domain.PushItem{RoomTypeID: baseRoomTypeID, RateID: rateID, Date: it.Date, Rate: it.Rate})
	} else {
		it.Warnings = append(it.Warnings, "no rate plan mapped for base room "+baseRoomTypeID)
		logger.Warn().Str("date", it.Date).Msg("base room has no rate plan, push skipped")
	}

	for _, rule := range cfg.RoomDifferentials {
		if rule.RoomTypeID == baseRoomTypeID {
			continue
		}
		derived, ok := pricing.ComputeDifferential(it.Rate, rule.RoomTypeID, cfg.RoomDifferentials)
		if !ok {
			it.Warnings = append(it.Warnings, "no valid derived rate for room "+rule.RoomTypeID)
			continue
		}
		rateID, ok := cfg.RateIDFor(rule.RoomTypeID)
		if !ok {
			it.Warnings = append(it.Warnings, "no rate plan mapped for room "+rule.RoomTypeID)
			logger.Warn().Str("date", it.Date).Str("derived_room_type_id", rule.RoomTypeID).
				Msg("derived room has no rate plan, push skipped")
			continue
		}
		out = append(out, domain.PushItem{RoomTypeID: rule.RoomTypeID, RateID: rateID, Date: it.Date, Rate: derived})
	}
	return out
}

// PreviewCalendar computes, without writing anything, what each date in [start, end]
// would sell at. A stored MANUAL override wins over the computed rate for display.
func (s *RateService) PreviewCalendar(ctx context.Context, hotelID, pmsPropertyID, baseRoomTypeID, start, end string) ([]domain.PreviewRow, error) {
	dates, err := domain.DateRange(start, end)
	if err != nil {
		return nil, fmt.Errorf("invalid date range: %w", err)
	}
	cfg, err := s.loadConfig(ctx, hotelID)
	if err != nil {
		return nil, err
	}
	if baseRoomTypeID, err = baseRoom(cfg, baseRoomTypeID); err != nil {
		return nil, err
	}

	live := s.liveRates(ctx, pmsPropertyID, baseRoomTypeID, start, end)

	stored, err := s.repo.ListCalendar(ctx, hotelID, baseRoomTypeID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list calendar: %w", err)
	}
	manual := make(map[string]float64, len(stored))
	for _, e := range stored {
		if e.Source == domain.SourceManual && domain.ValidRate(e.Rate) {
			manual[e.StayDate] = e.Rate
		}
	}

	today := s.now()
	rows := make([]domain.PreviewRow, 0, len(dates))
	for _, d := range dates {
		row := domain.PreviewRow{Date: d, Source: string(domain.SourceAuto)}

		lr, ok := live[d]
		if ok && domain.ValidRate(lr) {
			row.LiveRate = ptr(lr)
		} else {
			lr = math.NaN()
		}
		suggested := math.NaN()
		if sell, ok := pricing.ComputeSellRate(lr, pricing.ContextFor(cfg, d)); ok {
			suggested = sell
			row.SuggestedRate = ptr(sell)
		}

		day, _ := domain.ParseDate(d)
		gr := pricing.ApplyGuardrails(suggested, lr, cfg, day, today)
		row.IsFrozen, row.IsFloorActive, row.Reason = gr.IsFrozen, gr.IsFloorActive, string(gr.Reason)
		if gr.Publishable() {
			row.FinalRate = ptr(gr.FinalRate)
		}
		if gr.IsFrozen {
			row.Source = string(domain.SourceFrozen)
		}
		if m, ok := manual[d]; ok {
			row.FinalRate, row.Source = ptr(m), string(domain.SourceManual)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// liveRates fetches live PMS rates by date. Adapter failures degrade to an empty map.
func (s *RateService) liveRates(ctx context.Context, propertyID, roomTypeID, start, end string) map[string]float64 {
	out := map[string]float64{}
	rates, err := s.pms.GetRates(ctx, propertyID, roomTypeID, start, end)
	if err != nil {
		log.Warn().Err(err).Str("pms_property_id", propertyID).Str("room_type_id", roomTypeID).
			Msg("live rate fetch failed")
		return out
	}
	for _, r := range rates {
		out[r.Date] = r.Rate
	}
	return out
}

// AutoPrice runs the preview for a range and applies every publishable computed rate
// with source AUTO. Days held by a MANUAL override or frozen are left alone.
func (s *RateService) AutoPrice(ctx context.Context, hotelID, pmsPropertyID, baseRoomTypeID, start, end string) (domain.BatchReport, error) {
	rows, err := s.PreviewCalendar(ctx, hotelID, pmsPropertyID, baseRoomTypeID, start, end)
	if err != nil {
		return domain.BatchReport{}, err
	}
	var (
		overrides []domain.RateOverride
		skipped   []domain.ItemOutcome
	)
	for _, r := range rows {
		observability.ObserveGuardrail(r.Reason)
		switch {
		case r.Source == string(domain.SourceManual):
			skipped = append(skipped, domain.ItemOutcome{Date: r.Date, Outcome: domain.OutcomeSkipped, Reason: "manual override holds this date"})
		case r.IsFrozen:
			skipped = append(skipped, domain.ItemOutcome{Date: r.Date, Outcome: domain.OutcomeSkipped, Reason: "inside rate freeze period"})
		case r.FinalRate == nil:
			skipped = append(skipped, domain.ItemOutcome{Date: r.Date, Outcome: domain.OutcomeSkipped, Reason: "no publishable rate: " + r.Reason})
		default:
			overrides = append(overrides, domain.RateOverride{Date: r.Date, Rate: *r.FinalRate})
		}
	}
	report, err := s.ApplyOverrides(ctx, hotelID, pmsPropertyID, baseRoomTypeID, overrides, domain.SourceAuto)
	if err != nil {
		return domain.BatchReport{}, err
	}
	report.Items = append(report.Items, skipped...)
	return report, nil
}

// PromotePredictions is the explicit act that turns pending shadow predictions into
// live overrides. Each suggestion still goes through the guardrails.
func (s *RateService) PromotePredictions(ctx context.Context, hotelID, pmsPropertyID, baseRoomTypeID, start, end string) (domain.BatchReport, error) {
	cfg, err := s.loadConfig(ctx, hotelID)
	if err != nil {
		return domain.BatchReport{}, err
	}
	if baseRoomTypeID, err = baseRoom(cfg, baseRoomTypeID); err != nil {
		return domain.BatchReport{}, err
	}
	preds, err := s.repo.ListPendingPredictions(ctx, hotelID, baseRoomTypeID, start, end)
	if err != nil {
		return domain.BatchReport{}, fmt.Errorf("list predictions: %w", err)
	}
	if len(preds) == 0 {
		return domain.BatchReport{HotelID: hotelID, PropertyID: pmsPropertyID, Source: domain.SourceAI}, nil
	}

	live := s.liveRates(ctx, pmsPropertyID, baseRoomTypeID, start, end)
	today := s.now()
	var (
		overrides []domain.RateOverride
		skipped   []domain.ItemOutcome
	)
	for _, p := range preds {
		day, err := domain.ParseDate(p.StayDate)
		if err != nil {
			skipped = append(skipped, domain.ItemOutcome{Date: p.StayDate, Outcome: domain.OutcomeInvalid, Reason: "date must be YYYY-MM-DD"})
			continue
		}
		lr, ok := live[p.StayDate]
		if !ok {
			lr = math.NaN()
		}
		gr := pricing.ApplyGuardrails(p.SuggestedRate, lr, cfg, day, today)
		observability.ObserveGuardrail(string(gr.Reason))
		switch {
		case gr.IsFrozen:
			skipped = append(skipped, domain.ItemOutcome{Date: p.StayDate, Outcome: domain.OutcomeSkipped, Reason: "inside rate freeze period"})
		case !gr.Publishable():
			skipped = append(skipped, domain.ItemOutcome{Date: p.StayDate, Outcome: domain.OutcomeInvalid, Reason: string(gr.Reason)})
		default:
			overrides = append(overrides, domain.RateOverride{Date: p.StayDate, Rate: gr.FinalRate})
		}
	}

	report, err := s.ApplyOverrides(ctx, hotelID, pmsPropertyID, baseRoomTypeID, overrides, domain.SourceAI)
	if err != nil {
		return domain.BatchReport{}, err
	}
	var applied []string
	for _, it := range report.Items {
		if it.Outcome == domain.OutcomeApplied {
			applied = append(applied, it.Date)
		}
	}
	if len(applied) > 0 {
		if err := s.repo.MarkPredictionsApplied(ctx, hotelID, baseRoomTypeID, applied); err != nil {
			return report, fmt.Errorf("mark predictions applied: %w", err)
		}
	}
	report.Items = append(report.Items, skipped...)
	return report, nil
}

func (s *RateService) evictContext(ctx context.Context, hotelID string) {
	if s.cache != nil {
		_ = s.cache.Del(ctx, ContextCacheKey(hotelID))
	}
}

func ptr[T any](v T) *T { return &v }
