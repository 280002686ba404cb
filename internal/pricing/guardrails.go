package pricing

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"hotel_rates/internal/domain"
)

type Reason string

const (
	ReasonOK              Reason = "OK"
	ReasonFrozen          Reason = "FROZEN"
	ReasonFrozenFallback  Reason = "FROZEN_FALLBACK"
	ReasonMinFloor        Reason = "MIN_FLOOR"
	ReasonLastMinuteFloor Reason = "LMF_FLOOR"
	ReasonMaxCeiling      Reason = "MAX_CEILING"
	ReasonDailyMax        Reason = "DAILY_MAX"
	ReasonInvalidInput    Reason = "INVALID_INPUT"
)

type GuardrailResult struct {
	FinalRate     float64
	IsFrozen      bool
	IsFloorActive bool // last-minute floor replaced the monthly minimum for this day
	MinApplied    bool
	MaxApplied    bool
	Reason        Reason
}

// Publishable is false whenever the final rate must not reach the PMS.
func (r GuardrailResult) Publishable() bool { return domain.ValidRate(r.FinalRate) }

// DaysFromNow counts whole days between the UTC calendar days of target and today.
func DaysFromNow(target, today time.Time) int {
	diff := domain.UTCDay(target).Sub(domain.UTCDay(today))
	if diff < 0 {
		diff = -diff
	}
	return int(math.Ceil(diff.Hours() / 24))
}

// ApplyGuardrails enforces freeze, floor and ceiling, in that priority, on a suggested rate.
func ApplyGuardrails(suggestedRate, livePMSRate float64, cfg domain.HotelPricingConfig, date, today time.Time) GuardrailResult {
	day := domain.UTCDay(date)
	days := DaysFromNow(day, today)
	monthlyMin := cfg.MonthlyMin(day)

	if cfg.RateFreezePeriod > 0 && days < cfg.RateFreezePeriod {
		res := GuardrailResult{IsFrozen: true, Reason: ReasonFrozen}
		switch {
		case domain.ValidRate(livePMSRate):
			res.FinalRate = Round2(livePMSRate)
		case domain.ValidRate(monthlyMin):
			res.FinalRate, res.Reason = Round2(monthlyMin), ReasonFrozenFallback
		case domain.ValidRate(suggestedRate):
			res.FinalRate, res.Reason = Round2(suggestedRate), ReasonFrozenFallback
		default:
			res.Reason = ReasonFrozenFallback
		}
		return res
	}

	if !domain.ValidRate(suggestedRate) {
		return GuardrailResult{Reason: ReasonInvalidInput}
	}

	res := GuardrailResult{Reason: ReasonOK}
	effective := decimal.NewFromFloat(suggestedRate)

	activeMin, minReason := monthlyMin, ReasonMinFloor
	lmf := cfg.LastMinuteFloor
	if lmf.Enabled && domain.ValidRate(lmf.Rate) && days <= lmf.Days && lmf.CoversWeekday(day.Weekday()) {
		// replaces the monthly minimum, even when lower
		activeMin, minReason = lmf.Rate, ReasonLastMinuteFloor
		res.IsFloorActive = true
	}
	if domain.ValidRate(activeMin) {
		if m := decimal.NewFromFloat(activeMin); effective.LessThan(m) {
			effective = m
			res.MinApplied, res.Reason = true, minReason
		}
	}

	activeMax, maxReason := cfg.GuardrailMax, ReasonMaxCeiling
	if v, ok := cfg.DailyMax(domain.FormatDate(day)); ok {
		activeMax, maxReason = v, ReasonDailyMax
	}
	if domain.ValidRate(activeMax) {
		if m := decimal.NewFromFloat(activeMax); effective.GreaterThan(m) {
			effective = m
			res.MaxApplied, res.Reason = true, maxReason
		}
	}

	res.FinalRate, _ = cents(effective)
	return res
}
