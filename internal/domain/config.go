package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const DefaultMultiplier = 1.3

type TaxMode string

const (
	TaxInclusive TaxMode = "inclusive"
	TaxExclusive TaxMode = "exclusive"
)

type Tax struct {
	Type    TaxMode
	Percent float64
}

// Discount is an on/off percentage adjustment (mobile, non-refundable, country rate).
type Discount struct {
	Active  bool
	Percent float64
}

type Campaign struct {
	Slug      string
	Discount  float64
	StartDate string // YYYY-MM-DD, inclusive
	EndDate   string // YYYY-MM-DD, inclusive
	Active    bool
}

// Matches reports whether the campaign is active and date falls inside its window.
// An empty bound is open.
func (c Campaign) Matches(date string) bool {
	if !c.Active {
		return false
	}
	if c.StartDate != "" && date < c.StartDate {
		return false
	}
	if c.EndDate != "" && date > c.EndDate {
		return false
	}
	return true
}

type LastMinuteFloor struct {
	Enabled    bool
	Days       int
	Rate       float64
	DaysOfWeek []string // mon|tue|wed|thu|fri|sat|sun
}

var weekdayKeys = map[time.Weekday]string{
	time.Sunday: "sun", time.Monday: "mon", time.Tuesday: "tue", time.Wednesday: "wed",
	time.Thursday: "thu", time.Friday: "fri", time.Saturday: "sat",
}

// CoversWeekday is true when wd is in the configured day-of-week set.
func (l LastMinuteFloor) CoversWeekday(wd time.Weekday) bool {
	key := weekdayKeys[wd]
	for _, d := range l.DaysOfWeek {
		d = strings.ToLower(strings.TrimSpace(d))
		if len(d) > 3 {
			d = d[:3]
		}
		if d == key {
			return true
		}
	}
	return false
}

type DiffOperator string

const (
	DiffPlus  DiffOperator = "+"
	DiffMinus DiffOperator = "-"
)

type RoomDifferentialRule struct {
	RoomTypeID string
	Operator   DiffOperator
	Value      float64 // percent; NaN when the stored value was not numeric
}

type Strategy struct {
	Mode            string  // e.g. conservative|balanced|aggressive
	TargetOccupancy float64 // percent
	Notes           string
}

// HotelPricingConfig is the per-hotel pricing configuration, loaded and saved as a unit.
type HotelPricingConfig struct {
	HotelID string

	Multiplier     float64
	Tax            Tax
	Campaigns      []Campaign
	Mobile         Discount
	NonRef         Discount
	Country        Discount
	LoyaltyPercent float64

	GuardrailMax     float64
	RateFreezePeriod int
	LastMinuteFloor  LastMinuteFloor
	MonthlyMinRates  [12]float64        // index 0 = January
	DailyMaxRates    map[string]float64 // YYYY-MM-DD -> max price
	Seasonality      [12]string
	Strategy         Strategy

	BaseRoomTypeID    string
	RoomDifferentials []RoomDifferentialRule
	RateIDMap         map[string]string // room type id -> rate plan id

	UpdatedAt time.Time
}

// WithDefaults fills unset fields with their defaults.
func (c HotelPricingConfig) WithDefaults() HotelPricingConfig {
	if c.Multiplier == 0 {
		c.Multiplier = DefaultMultiplier
	}
	if c.Tax.Type == "" {
		c.Tax.Type = TaxInclusive
	}
	if c.DailyMaxRates == nil {
		c.DailyMaxRates = map[string]float64{}
	}
	if c.RateIDMap == nil {
		c.RateIDMap = map[string]string{}
	}
	return c
}

func (c HotelPricingConfig) Validate() error {
	if c.HotelID == "" {
		return fmt.Errorf("%w: hotel id is required", ErrInvalidConfig)
	}
	if !(c.Multiplier > 0) || math.IsInf(c.Multiplier, 0) {
		return fmt.Errorf("%w: multiplier must be > 0, got %v", ErrInvalidConfig, c.Multiplier)
	}
	if c.Tax.Type != TaxInclusive && c.Tax.Type != TaxExclusive {
		return fmt.Errorf("%w: unknown tax type %q", ErrInvalidConfig, c.Tax.Type)
	}
	pcts := map[string]float64{
		"tax":     c.Tax.Percent,
		"mobile":  c.Mobile.Percent,
		"nonRef":  c.NonRef.Percent,
		"country": c.Country.Percent,
		"loyalty": c.LoyaltyPercent,
	}
	for _, cp := range c.Campaigns {
		pcts["campaign "+cp.Slug] = cp.Discount
	}
	for name, p := range pcts {
		if !(p >= 0 && p <= 100) {
			return fmt.Errorf("%w: %s percent must be within [0,100], got %v", ErrInvalidConfig, name, p)
		}
	}
	if c.RateFreezePeriod < 0 {
		return fmt.Errorf("%w: rate freeze period must be >= 0", ErrInvalidConfig)
	}
	if !nonNegative(c.GuardrailMax) {
		return fmt.Errorf("%w: guardrail max must be >= 0, got %v", ErrInvalidConfig, c.GuardrailMax)
	}
	if c.LastMinuteFloor.Days < 0 || !nonNegative(c.LastMinuteFloor.Rate) {
		return fmt.Errorf("%w: last-minute floor days and rate must be >= 0", ErrInvalidConfig)
	}
	for i, v := range c.MonthlyMinRates {
		if !nonNegative(v) {
			return fmt.Errorf("%w: monthly min for %s must be >= 0, got %v", ErrInvalidConfig, time.Month(i+1), v)
		}
	}
	for date, v := range c.DailyMaxRates {
		if !nonNegative(v) {
			return fmt.Errorf("%w: daily max for %s must be >= 0, got %v", ErrInvalidConfig, date, v)
		}
	}
	return nil
}

// 0 means "not set" for the optional ceilings and floors.
func nonNegative(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0)
}

// MonthlyMin returns the configured minimum for the month of t.
func (c HotelPricingConfig) MonthlyMin(t time.Time) float64 {
	return c.MonthlyMinRates[int(t.Month())-1]
}

// DailyMax returns a valid per-date ceiling if one is configured.
func (c HotelPricingConfig) DailyMax(date string) (float64, bool) {
	v, ok := c.DailyMaxRates[date]
	if !ok || !ValidRate(v) {
		return 0, false
	}
	return v, true
}

// RateIDFor returns the rate plan id mapped to a room type.
func (c HotelPricingConfig) RateIDFor(roomTypeID string) (string, bool) {
	id, ok := c.RateIDMap[roomTypeID]
	return id, ok && id != ""
}
