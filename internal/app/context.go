package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"hotel_rates/internal/domain"
)

func ContextCacheKey(hotelID string) string { return "context:" + hotelID }

// ContextService serves the AI bridge: a read-side hotel snapshot and a write-side
// sink for shadow predictions.
type ContextService struct {
	repo     domain.Repository
	cache    domain.Cache
	cacheTTL time.Duration
	now      func() time.Time
}

func NewContextService(r domain.Repository, c domain.Cache, ttl time.Duration) *ContextService {
	return &ContextService{repo: r, cache: c, cacheTTL: ttl, now: time.Now}
}

func (s *ContextService) WithClock(now func() time.Time) *ContextService {
	s.now = now
	return s
}

// GetHotelContext assembles config, the forward calendar with its latest change,
// daily max constraints, pace curves and pickup velocity for one hotel.
func (s *ContextService) GetHotelContext(ctx context.Context, hotelID string) (domain.HotelContext, error) {
	key := ContextCacheKey(hotelID)
	var hc domain.HotelContext
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &hc); ok {
			return hc, nil
		}
	}

	today := domain.FormatDate(s.now())
	var (
		cfg   domain.HotelPricingConfig
		cal   []domain.CalendarEntry
		hist  []domain.PriceHistoryRecord
		occ   []domain.Occupancy
		snaps []domain.PacingSnapshot
	)
	// independent reads, all scoped by hotel
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		cfg, err = s.repo.GetConfig(gctx, hotelID)
		return err
	})
	g.Go(func() (err error) {
		cal, err = s.repo.ListCalendar(gctx, hotelID, "", today, "")
		return err
	})
	g.Go(func() (err error) {
		hist, err = s.repo.LatestPriceHistory(gctx, hotelID, today)
		return err
	})
	g.Go(func() (err error) {
		occ, err = s.repo.ListOccupancy(gctx, hotelID, today)
		return err
	})
	g.Go(func() (err error) {
		snaps, err = s.repo.ListPacingSnapshots(gctx, hotelID, today)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.HotelContext{}, fmt.Errorf("assemble context for %s: %w", hotelID, err)
	}

	hc = domain.HotelContext{
		HotelID:     hotelID,
		Today:       today,
		GeneratedAt: s.now().UTC(),
		Config:      contextConfig(cfg),
		Calendar:    forwardCalendar(cal, hist),
		DailyMax:    dailyMax(cfg, today),
		PaceCurves:  paceCurves(snaps),
		Velocity:    pickupVelocity(occ, snaps, today),
	}

	if s.cache != nil && s.cacheTTL > 0 {
		_ = s.cache.Set(ctx, key, hc, int(s.cacheTTL.Seconds()))
	}
	return hc, nil
}

func contextConfig(cfg domain.HotelPricingConfig) domain.ContextConfig {
	var cc domain.ContextConfig
	cc.BaseRoomTypeID = cfg.BaseRoomTypeID
	cc.MonthlyMinRates = cfg.MonthlyMinRates
	cc.GuardrailMax = cfg.GuardrailMax
	cc.RateFreezePeriod = cfg.RateFreezePeriod
	cc.LastMinuteFloor.Enabled = cfg.LastMinuteFloor.Enabled
	cc.LastMinuteFloor.Days = cfg.LastMinuteFloor.Days
	cc.LastMinuteFloor.Rate = cfg.LastMinuteFloor.Rate
	cc.LastMinuteFloor.DaysOfWeek = cfg.LastMinuteFloor.DaysOfWeek
	cc.Seasonality = cfg.Seasonality
	cc.Strategy.Mode = cfg.Strategy.Mode
	cc.Strategy.TargetOccupancy = cfg.Strategy.TargetOccupancy
	cc.Strategy.Notes = cfg.Strategy.Notes
	return cc
}

func forwardCalendar(cal []domain.CalendarEntry, hist []domain.PriceHistoryRecord) []domain.ContextCalendarDay {
	type key struct{ room, date string }
	latest := make(map[key]domain.PriceHistoryRecord, len(hist))
	for _, h := range hist {
		k := key{h.RoomTypeID, h.StayDate}
		if cur, ok := latest[k]; !ok || h.CreatedAt.After(cur.CreatedAt) {
			latest[k] = h
		}
	}
	out := make([]domain.ContextCalendarDay, 0, len(cal))
	for _, e := range cal {
		day := domain.ContextCalendarDay{
			RoomTypeID:    e.RoomTypeID,
			StayDate:      e.StayDate,
			Rate:          e.Rate,
			Source:        e.Source,
			LastUpdatedAt: e.LastUpdatedAt,
		}
		if h, ok := latest[key{e.RoomTypeID, e.StayDate}]; ok {
			at, price := h.CreatedAt, h.NewPrice
			day.LastChangeAt, day.LastChangePrice = &at, &price
		}
		out = append(out, day)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StayDate != out[j].StayDate {
			return out[i].StayDate < out[j].StayDate
		}
		return out[i].RoomTypeID < out[j].RoomTypeID
	})
	return out
}

func dailyMax(cfg domain.HotelPricingConfig, today string) []domain.DailyMaxConstraint {
	var out []domain.DailyMaxConstraint
	for d, v := range cfg.DailyMaxRates {
		if d >= today && domain.ValidRate(v) {
			out = append(out, domain.DailyMaxConstraint{StayDate: d, MaxPrice: v})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StayDate < out[j].StayDate })
	return out
}

func paceCurves(snaps []domain.PacingSnapshot) []domain.PaceCurve {
	byDate := map[string][]domain.PacingSnapshot{}
	for _, s := range snaps {
		byDate[s.StayDate] = append(byDate[s.StayDate], s)
	}
	out := make([]domain.PaceCurve, 0, len(byDate))
	for d, pts := range byDate {
		sort.Slice(pts, func(i, j int) bool { return pts[i].SnapshotDate < pts[j].SnapshotDate })
		out = append(out, domain.PaceCurve{StayDate: d, Points: pts})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StayDate < out[j].StayDate })
	return out
}

// pickupVelocity compares today's rooms sold with the latest snapshot taken strictly
// before today. No prior snapshot counts as zero.
func pickupVelocity(occ []domain.Occupancy, snaps []domain.PacingSnapshot, today string) []domain.PickupVelocity {
	prior := map[string]domain.PacingSnapshot{}
	for _, s := range snaps {
		if s.SnapshotDate >= today {
			continue
		}
		if cur, ok := prior[s.StayDate]; !ok || s.SnapshotDate > cur.SnapshotDate {
			prior[s.StayDate] = s
		}
	}
	out := make([]domain.PickupVelocity, 0, len(occ))
	for _, o := range occ {
		v := domain.PickupVelocity{StayDate: o.StayDate, RoomsSold: o.RoomsSold}
		if p, ok := prior[o.StayDate]; ok {
			v.PriorRoomsSold, v.PriorSnapshot = p.RoomsSold, p.SnapshotDate
		}
		v.Velocity = v.RoomsSold - v.PriorRoomsSold
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StayDate < out[j].StayDate })
	return out
}

// SaveDecisions stores AI suggestions as shadow predictions. Incomplete records are
// dropped; a refreshed suggestion resets to unapplied.
func (s *ContextService) SaveDecisions(ctx context.Context, decisions []domain.RatePrediction) (domain.DecisionReport, error) {
	var (
		rep    domain.DecisionReport
		valid  []domain.RatePrediction
		hotels = map[string]bool{}
	)
	for i, d := range decisions {
		reason := ""
		switch {
		case d.HotelID == "" || d.RoomTypeID == "" || d.StayDate == "":
			reason = "missing hotel, room type or stay date"
		case !domain.ValidRate(d.SuggestedRate):
			reason = "missing or non-positive suggested rate"
		default:
			if _, err := domain.ParseDate(d.StayDate); err != nil {
				reason = "stay date must be YYYY-MM-DD"
			}
		}
		if reason != "" {
			rep.Dropped++
			rep.Reasons = append(rep.Reasons, fmt.Sprintf("#%d: %s", i, reason))
			log.Warn().Int("index", i).Str("hotel_id", d.HotelID).Str("reason", reason).Msg("dropping ai decision")
			continue
		}
		d.IsApplied = false
		valid = append(valid, d)
		hotels[d.HotelID] = true
	}
	if len(valid) == 0 {
		return rep, nil
	}
	if err := s.repo.UpsertPredictions(ctx, valid); err != nil {
		return rep, fmt.Errorf("upsert predictions: %w", err)
	}
	rep.Saved = len(valid)
	if s.cache != nil {
		for h := range hotels {
			_ = s.cache.Del(ctx, ContextCacheKey(h))
		}
	}
	return rep, nil
}
