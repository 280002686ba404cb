package app_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"hotel_rates/internal/domain"
)

// ---- in-memory repository ----

type calKey struct{ hotel, room, date string }

type memRepo struct {
	mu        sync.Mutex
	configs   map[string]domain.HotelPricingConfig
	calendar  map[calKey]domain.CalendarEntry
	history   []domain.PriceHistoryRecord
	occupancy []domain.Occupancy
	snapshots []domain.PacingSnapshot
	preds     map[calKey]domain.RatePrediction

	failUpsertDate string
	reads          int
}

func newMemRepo() *memRepo {
	return &memRepo{
		configs:  map[string]domain.HotelPricingConfig{},
		calendar: map[calKey]domain.CalendarEntry{},
		preds:    map[calKey]domain.RatePrediction{},
	}
}

func (m *memRepo) GetConfig(_ context.Context, hotelID string) (domain.HotelPricingConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	c, ok := m.configs[hotelID]
	if !ok {
		return domain.HotelPricingConfig{}, domain.ErrConfigMissing
	}
	return c, nil
}

func (m *memRepo) SaveConfig(_ context.Context, cfg domain.HotelPricingConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[cfg.HotelID] = cfg
	return nil
}

func (m *memRepo) UpdateConfig(_ context.Context, hotelID string, fn func(*domain.HotelPricingConfig) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.configs[hotelID]
	if !ok {
		return domain.ErrConfigMissing
	}
	if err := fn(&c); err != nil {
		return err
	}
	m.configs[hotelID] = c
	return nil
}

func (m *memRepo) GetCalendarEntry(_ context.Context, hotelID, roomTypeID, date string) (domain.CalendarEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.calendar[calKey{hotelID, roomTypeID, date}]
	if !ok {
		return domain.CalendarEntry{}, domain.ErrNotFound
	}
	return e, nil
}

func (m *memRepo) ListCalendar(_ context.Context, hotelID, roomTypeID, from, to string) ([]domain.CalendarEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.CalendarEntry
	for k, e := range m.calendar {
		if k.hotel != hotelID || (roomTypeID != "" && k.room != roomTypeID) {
			continue
		}
		if k.date < from || (to != "" && k.date > to) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StayDate < out[j].StayDate })
	return out, nil
}

func (m *memRepo) UpsertCalendarEntry(_ context.Context, e domain.CalendarEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.StayDate == m.failUpsertDate {
		return errors.New("deadlock found when trying to get lock")
	}
	m.calendar[calKey{e.HotelID, e.RoomTypeID, e.StayDate}] = e
	return nil
}

func (m *memRepo) InsertPriceHistory(_ context.Context, rec domain.PriceHistoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.ID = int64(len(m.history) + 1)
	m.history = append(m.history, rec)
	return nil
}

func (m *memRepo) LatestPriceHistory(_ context.Context, hotelID, from string) ([]domain.PriceHistoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PriceHistoryRecord
	for _, h := range m.history {
		if h.HotelID == hotelID && h.StayDate >= from {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *memRepo) ListOccupancy(_ context.Context, hotelID, from string) ([]domain.Occupancy, error) {
	var out []domain.Occupancy
	for _, o := range m.occupancy {
		if o.HotelID == hotelID && o.StayDate >= from {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memRepo) ListPacingSnapshots(_ context.Context, hotelID, from string) ([]domain.PacingSnapshot, error) {
	var out []domain.PacingSnapshot
	for _, s := range m.snapshots {
		if s.HotelID == hotelID && s.StayDate >= from {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memRepo) UpsertPredictions(_ context.Context, ps []domain.RatePrediction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range ps {
		p.IsApplied = false
		p.CreatedAt = time.Now()
		m.preds[calKey{p.HotelID, p.RoomTypeID, p.StayDate}] = p
	}
	return nil
}

func (m *memRepo) ListPendingPredictions(_ context.Context, hotelID, roomTypeID, from, to string) ([]domain.RatePrediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.RatePrediction
	for k, p := range m.preds {
		if k.hotel == hotelID && k.room == roomTypeID && k.date >= from && k.date <= to && !p.IsApplied {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StayDate < out[j].StayDate })
	return out, nil
}

func (m *memRepo) MarkPredictionsApplied(_ context.Context, hotelID, roomTypeID string, dates []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range dates {
		k := calKey{hotelID, roomTypeID, d}
		if p, ok := m.preds[k]; ok {
			p.IsApplied = true
			m.preds[k] = p
		}
	}
	return nil
}

func (m *memRepo) historyFor(date string) []domain.PriceHistoryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PriceHistoryRecord
	for _, h := range m.history {
		if h.StayDate == date {
			out = append(out, h)
		}
	}
	return out
}

// ---- fake PMS ----

type posted struct {
	ratePlanID, date string
	rate             float64
}

type fakePMS struct {
	mu       sync.Mutex
	rates    map[string]float64
	ratesErr error
	rooms    []domain.RoomType
	plans    []domain.RatePlan
	posts    []posted
	failDate string
	onPost   func()
}

func (f *fakePMS) PostRate(_ context.Context, _, ratePlanID, date string, rate float64) (string, error) {
	if f.onPost != nil {
		f.onPost()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if date == f.failDate {
		return "", errors.New("pms: remote 503")
	}
	f.posts = append(f.posts, posted{ratePlanID, date, rate})
	return "job-" + date + "-" + ratePlanID, nil
}

func (f *fakePMS) GetRates(_ context.Context, _, _, start, end string) ([]domain.LiveRate, error) {
	if f.ratesErr != nil {
		return nil, f.ratesErr
	}
	var out []domain.LiveRate
	for d, r := range f.rates {
		if d >= start && d <= end {
			out = append(out, domain.LiveRate{Date: d, Rate: r})
		}
	}
	return out, nil
}

func (f *fakePMS) GetRoomTypes(context.Context, string) ([]domain.RoomType, error) {
	return f.rooms, nil
}

func (f *fakePMS) GetRatePlans(context.Context, string) ([]domain.RatePlan, error) {
	return f.plans, nil
}

// ---- fake cache ----

type fakeCache struct {
	mu    sync.Mutex
	store map[string]any
	dels  []string
}

func (c *fakeCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.store[key]
	if !ok {
		return false, nil
	}
	if d, ok := dst.(*domain.HotelContext); ok {
		*d = v.(domain.HotelContext)
	}
	return true, nil
}

func (c *fakeCache) Set(_ context.Context, key string, v any, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string]any{}
	}
	c.store[key] = v
	return nil
}

func (c *fakeCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	c.dels = append(c.dels, key)
	return nil
}

// ---- helpers ----

// Saturday 2025-01-04, mid-afternoon UTC
func fixedNow() time.Time { return time.Date(2025, time.January, 4, 15, 0, 0, 0, time.UTC) }

func baseConfig() domain.HotelPricingConfig {
	return domain.HotelPricingConfig{
		HotelID:        "h1",
		Multiplier:     1.3,
		Tax:            domain.Tax{Type: domain.TaxInclusive},
		BaseRoomTypeID: "dbl",
		RoomDifferentials: []domain.RoomDifferentialRule{
			{RoomTypeID: "ste", Operator: domain.DiffPlus, Value: 20},
			{RoomTypeID: "sgl", Operator: domain.DiffMinus, Value: 10},
		},
		RateIDMap: map[string]string{"dbl": "rp-dbl", "ste": "rp-ste"},
	}
}
