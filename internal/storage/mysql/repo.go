package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"hotel_rates/internal/domain"
)

func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

var _ domain.Repository = (*Repo)(nil)

// -----------------------------------------------------------------------------
// CONFIG
// -----------------------------------------------------------------------------

func (r *Repo) GetConfig(ctx context.Context, hotelID string) (domain.HotelPricingConfig, error) {
	return getConfig(ctx, r.db, getConfigSQL, hotelID)
}

func (r *Repo) SaveConfig(ctx context.Context, cfg domain.HotelPricingConfig) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		return saveConfig(ctx, tx, cfg)
	})
}

func (r *Repo) UpdateConfig(ctx context.Context, hotelID string, fn func(*domain.HotelPricingConfig) error) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		cfg, err := getConfig(ctx, tx, getConfigForUpdateSQL, hotelID)
		if err != nil {
			return err
		}
		if err := fn(&cfg); err != nil {
			return err
		}
		cfg.HotelID = hotelID
		return saveConfig(ctx, tx, cfg)
	})
}

func (r *Repo) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func getConfig(ctx context.Context, q querier, query, hotelID string) (domain.HotelPricingConfig, error) {
	var (
		c   domain.HotelPricingConfig
		b   configBlobs
		upd sql.NullTime
	)
	err := q.QueryRowContext(ctx, query, hotelID).Scan(
		&c.HotelID, &c.Multiplier,
		&b.tax, &b.campaigns, &b.mobile, &b.nonRef, &b.country,
		&c.LoyaltyPercent, &c.GuardrailMax, &c.RateFreezePeriod,
		&b.floor, &b.monthlyMin, &b.seasonality, &b.strategy,
		&c.BaseRoomTypeID, &b.differentials, &b.rateIDMap, &upd,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.HotelPricingConfig{}, domain.ErrConfigMissing
	}
	if err != nil {
		return domain.HotelPricingConfig{}, err
	}
	if upd.Valid {
		c.UpdatedAt = upd.Time
	}
	if err := decodeConfig(&c, b); err != nil {
		return domain.HotelPricingConfig{}, err
	}

	rows, err := q.QueryContext(ctx, listDailyMaxSQL, hotelID)
	if err != nil {
		return domain.HotelPricingConfig{}, err
	}
	defer rows.Close()
	c.DailyMaxRates = map[string]float64{}
	for rows.Next() {
		var (
			date string
			ceil float64
		)
		if err := rows.Scan(&date, &ceil); err != nil {
			return domain.HotelPricingConfig{}, err
		}
		c.DailyMaxRates[date] = ceil
	}
	if err := rows.Err(); err != nil {
		return domain.HotelPricingConfig{}, err
	}
	return c.WithDefaults(), nil
}

func saveConfig(ctx context.Context, q querier, c domain.HotelPricingConfig) error {
	b, err := encodeConfig(c)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, upsertConfigSQL,
		c.HotelID, c.Multiplier,
		string(b.tax), string(b.campaigns), string(b.mobile), string(b.nonRef), string(b.country),
		c.LoyaltyPercent, c.GuardrailMax, c.RateFreezePeriod,
		string(b.floor), string(b.monthlyMin), string(b.seasonality), string(b.strategy),
		c.BaseRoomTypeID, string(b.differentials), string(b.rateIDMap),
	)
	if err != nil {
		return fmt.Errorf("upsert config %s: %w", c.HotelID, err)
	}

	// daily max rates are replaced wholesale with the config
	if _, err := q.ExecContext(ctx, deleteDailyMaxSQL, c.HotelID); err != nil {
		return err
	}
	var (
		values []string
		args   []any
	)
	for date, ceil := range c.DailyMaxRates {
		if !domain.ValidRate(ceil) {
			continue
		}
		values = append(values, "(?,?,?)")
		args = append(args, c.HotelID, date, ceil)
	}
	if len(values) == 0 {
		return nil
	}
	_, err = q.ExecContext(ctx, insertDailyMaxPrefix+strings.Join(values, ","), args...)
	return err
}

// -----------------------------------------------------------------------------
// CALENDAR & HISTORY
// -----------------------------------------------------------------------------

func scanCalendar(s interface{ Scan(...any) error }) (domain.CalendarEntry, error) {
	var (
		e   domain.CalendarEntry
		src string
	)
	if err := s.Scan(&e.HotelID, &e.RoomTypeID, &e.StayDate, &e.Rate, &src, &e.LastUpdatedAt); err != nil {
		return domain.CalendarEntry{}, err
	}
	e.Source = domain.Source(src)
	return e, nil
}

func (r *Repo) GetCalendarEntry(ctx context.Context, hotelID, roomTypeID, date string) (domain.CalendarEntry, error) {
	e, err := scanCalendar(r.db.QueryRowContext(ctx, getCalendarEntrySQL, hotelID, roomTypeID, date))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CalendarEntry{}, domain.ErrNotFound
	}
	return e, err
}

func (r *Repo) ListCalendar(ctx context.Context, hotelID, roomTypeID, from, to string) ([]domain.CalendarEntry, error) {
	q := listCalendarSQL
	args := []any{hotelID, from}
	if to != "" {
		q += " AND stay_date <= ?"
		args = append(args, to)
	}
	if roomTypeID != "" {
		q += " AND room_type_id = ?"
		args = append(args, roomTypeID)
	}
	q += " ORDER BY stay_date, room_type_id"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.CalendarEntry
	for rows.Next() {
		e, err := scanCalendar(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repo) UpsertCalendarEntry(ctx context.Context, e domain.CalendarEntry) error {
	at := e.LastUpdatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, upsertCalendarSQL,
		e.HotelID, e.RoomTypeID, e.StayDate, e.Rate, string(e.Source), at)
	return err
}

func (r *Repo) InsertPriceHistory(ctx context.Context, rec domain.PriceHistoryRecord) error {
	at := rec.CreatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, insertHistorySQL,
		rec.HotelID, rec.RoomTypeID, rec.StayDate, valF64(rec.OldPrice), rec.NewPrice, string(rec.Source), at)
	return err
}

func (r *Repo) LatestPriceHistory(ctx context.Context, hotelID, from string) ([]domain.PriceHistoryRecord, error) {
	rows, err := r.db.QueryContext(ctx, latestHistorySQL, hotelID, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.PriceHistoryRecord
	for rows.Next() {
		var (
			h   domain.PriceHistoryRecord
			old sql.NullFloat64
			src string
		)
		if err := rows.Scan(&h.ID, &h.HotelID, &h.RoomTypeID, &h.StayDate, &old, &h.NewPrice, &src, &h.CreatedAt); err != nil {
			return nil, err
		}
		if old.Valid {
			v := old.Float64
			h.OldPrice = &v
		}
		h.Source = domain.Source(src)
		out = append(out, h)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------
// PACING
// -----------------------------------------------------------------------------

func (r *Repo) ListOccupancy(ctx context.Context, hotelID, from string) ([]domain.Occupancy, error) {
	rows, err := r.db.QueryContext(ctx, listOccupancySQL, hotelID, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Occupancy
	for rows.Next() {
		var o domain.Occupancy
		if err := rows.Scan(&o.HotelID, &o.StayDate, &o.RoomsSold, &o.RoomsAvailable); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Repo) ListPacingSnapshots(ctx context.Context, hotelID, from string) ([]domain.PacingSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, listSnapshotsSQL, hotelID, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.PacingSnapshot
	for rows.Next() {
		var s domain.PacingSnapshot
		if err := rows.Scan(&s.HotelID, &s.StayDate, &s.SnapshotDate, &s.RoomsSold); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------
// PREDICTIONS
// -----------------------------------------------------------------------------

func (r *Repo) UpsertPredictions(ctx context.Context, ps []domain.RatePrediction) error {
	if len(ps) == 0 {
		return nil
	}
	values := make([]string, 0, len(ps))
	args := make([]any, 0, len(ps)*7)
	for _, p := range ps {
		values = append(values, "(?,?,?,?,?,?,?,FALSE)")
		args = append(args, p.HotelID, p.RoomTypeID, p.StayDate, p.SuggestedRate, p.Confidence, p.Reasoning, p.ModelVersion)
	}
	_, err := r.db.ExecContext(ctx, insertPredictionsPrefix+strings.Join(values, ",")+insertPredictionsOnDup, args...)
	return err
}

func (r *Repo) ListPendingPredictions(ctx context.Context, hotelID, roomTypeID, from, to string) ([]domain.RatePrediction, error) {
	rows, err := r.db.QueryContext(ctx, listPendingPredictionsSQL, hotelID, roomTypeID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.RatePrediction
	for rows.Next() {
		var (
			p         domain.RatePrediction
			reasoning sql.NullString
		)
		if err := rows.Scan(&p.HotelID, &p.RoomTypeID, &p.StayDate, &p.SuggestedRate, &p.Confidence,
			&reasoning, &p.ModelVersion, &p.IsApplied, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Reasoning = reasoning.String
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) MarkPredictionsApplied(ctx context.Context, hotelID, roomTypeID string, dates []string) error {
	if len(dates) == 0 {
		return nil
	}
	marks := make([]string, len(dates))
	args := make([]any, 0, len(dates)+2)
	args = append(args, hotelID, roomTypeID)
	for i, d := range dates {
		marks[i] = "?"
		args = append(args, d)
	}
	_, err := r.db.ExecContext(ctx, markAppliedPrefix+"("+strings.Join(marks, ",")+")", args...)
	return err
}
