package domain

import "time"

// HotelContext is the read-side snapshot handed to the AI bridge as JSON.
type HotelContext struct {
	HotelID     string               `json:"hotel_id"`
	Today       string               `json:"today"`
	GeneratedAt time.Time            `json:"generated_at"`
	Config      ContextConfig        `json:"config"`
	Calendar    []ContextCalendarDay `json:"calendar"`
	DailyMax    []DailyMaxConstraint `json:"daily_max"`
	PaceCurves  []PaceCurve          `json:"pace_curves"`
	Velocity    []PickupVelocity     `json:"pickup_velocity"`
}

// ContextConfig is the subset of HotelPricingConfig exposed to the AI: minimums,
// seasonality and strategy.
type ContextConfig struct {
	BaseRoomTypeID   string      `json:"base_room_type_id"`
	MonthlyMinRates  [12]float64 `json:"monthly_min_rates"`
	GuardrailMax     float64     `json:"guardrail_max"`
	RateFreezePeriod int         `json:"rate_freeze_period"`
	LastMinuteFloor  struct {
		Enabled    bool     `json:"enabled"`
		Days       int      `json:"days"`
		Rate       float64  `json:"rate"`
		DaysOfWeek []string `json:"dow"`
	} `json:"last_minute_floor"`
	Seasonality [12]string `json:"seasonality"`
	Strategy    struct {
		Mode            string  `json:"mode"`
		TargetOccupancy float64 `json:"target_occupancy"`
		Notes           string  `json:"notes,omitempty"`
	} `json:"strategy"`
}

type ContextCalendarDay struct {
	RoomTypeID      string     `json:"room_type_id"`
	StayDate        string     `json:"stay_date"`
	Rate            float64    `json:"rate"`
	Source          Source     `json:"source"`
	LastUpdatedAt   time.Time  `json:"last_updated_at"`
	LastChangeAt    *time.Time `json:"last_change_at,omitempty"`
	LastChangePrice *float64   `json:"last_change_price,omitempty"`
}

type DailyMaxConstraint struct {
	StayDate string  `json:"stay_date"`
	MaxPrice float64 `json:"max_price"`
}

type PaceCurve struct {
	StayDate string           `json:"stay_date"`
	Points   []PacingSnapshot `json:"points"`
}

type PickupVelocity struct {
	StayDate       string `json:"stay_date"`
	RoomsSold      int    `json:"rooms_sold"`
	PriorRoomsSold int    `json:"prior_rooms_sold"`
	PriorSnapshot  string `json:"prior_snapshot_date,omitempty"`
	Velocity       int    `json:"velocity"`
}

// PreviewRow is one day of a read-only calendar preview. Nil rates mean unavailable.
type PreviewRow struct {
	Date          string   `json:"date"`
	LiveRate      *float64 `json:"live_rate"`
	SuggestedRate *float64 `json:"suggested_rate"`
	FinalRate     *float64 `json:"final_rate"`
	IsFrozen      bool     `json:"is_frozen"`
	IsFloorActive bool     `json:"is_floor_active"`
	Reason        string   `json:"reason,omitempty"`
	Source        string   `json:"source"`
}
