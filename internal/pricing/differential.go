package pricing

import (
	"github.com/shopspring/decimal"

	"hotel_rates/internal/domain"
)

// ComputeDifferential derives a dependent room rate from the base sell rate.
// An invalid base stops the cascade; no usable rule means the base passes through.
func ComputeDifferential(baseRate float64, targetRoomTypeID string, rules []domain.RoomDifferentialRule) (float64, bool) {
	if !domain.ValidRate(baseRate) {
		return 0, false
	}
	rule, ok := ruleFor(targetRoomTypeID, rules)
	if !ok || !finite(rule.Value) {
		return baseRate, true
	}

	var factor decimal.Decimal
	switch rule.Operator {
	case domain.DiffPlus:
		factor = more(rule.Value)
	case domain.DiffMinus:
		factor = less(rule.Value)
	default:
		return baseRate, true
	}
	return cents(decimal.NewFromFloat(baseRate).Mul(factor))
}

func ruleFor(roomTypeID string, rules []domain.RoomDifferentialRule) (domain.RoomDifferentialRule, bool) {
	for _, r := range rules {
		if r.RoomTypeID == roomTypeID {
			return r, true
		}
	}
	return domain.RoomDifferentialRule{}, false
}
