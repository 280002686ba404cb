package httpserver

import (
	"math"

	"hotel_rates/internal/domain"
)

// configDTO is the wire shape of a hotel's pricing config.
type configDTO struct {
	HotelID        string        `json:"hotel_id"`
	Multiplier     float64       `json:"multiplier"`
	Tax            taxDTO        `json:"tax"`
	Campaigns      []campaignDTO `json:"campaigns"`
	Mobile         discountDTO   `json:"mobile"`
	NonRef         discountDTO   `json:"non_ref"`
	Country        discountDTO   `json:"country"`
	LoyaltyPercent float64       `json:"loyalty_percent"`

	GuardrailMax     float64            `json:"guardrail_max"`
	RateFreezePeriod int                `json:"rate_freeze_period"`
	LastMinuteFloor  floorDTO           `json:"last_minute_floor"`
	MonthlyMinRates  [12]float64        `json:"monthly_min_rates"`
	DailyMaxRates    map[string]float64 `json:"daily_max_rates"`
	Seasonality      [12]string         `json:"seasonality"`
	Strategy         strategyDTO        `json:"strategy"`

	BaseRoomTypeID    string            `json:"base_room_type_id"`
	RoomDifferentials []ruleDTO         `json:"room_differentials"`
	RateIDMap         map[string]string `json:"rate_id_map"`
}

type taxDTO struct {
	Type    string  `json:"type"`
	Percent float64 `json:"percent"`
}

type discountDTO struct {
	Active  bool    `json:"active"`
	Percent float64 `json:"percent"`
}

type campaignDTO struct {
	Slug      string  `json:"slug"`
	Discount  float64 `json:"discount"`
	StartDate string  `json:"start_date,omitempty"`
	EndDate   string  `json:"end_date,omitempty"`
	Active    bool    `json:"active"`
}

type floorDTO struct {
	Enabled    bool     `json:"enabled"`
	Days       int      `json:"days"`
	Rate       float64  `json:"rate"`
	DaysOfWeek []string `json:"dow"`
}

type strategyDTO struct {
	Mode            string  `json:"mode"`
	TargetOccupancy float64 `json:"target_occupancy"`
	Notes           string  `json:"notes,omitempty"`
}

// Value accepts numbers or numeric strings.
type ruleDTO struct {
	RoomTypeID string `json:"room_type_id"`
	Operator   string `json:"operator"`
	Value      any    `json:"value"`
}

func (d configDTO) toDomain() domain.HotelPricingConfig {
	c := domain.HotelPricingConfig{
		HotelID:          d.HotelID,
		Multiplier:       d.Multiplier,
		Tax:              domain.Tax{Type: domain.TaxMode(d.Tax.Type), Percent: d.Tax.Percent},
		Mobile:           domain.Discount(d.Mobile),
		NonRef:           domain.Discount(d.NonRef),
		Country:          domain.Discount(d.Country),
		LoyaltyPercent:   d.LoyaltyPercent,
		GuardrailMax:     d.GuardrailMax,
		RateFreezePeriod: d.RateFreezePeriod,
		LastMinuteFloor:  domain.LastMinuteFloor(d.LastMinuteFloor),
		MonthlyMinRates:  d.MonthlyMinRates,
		DailyMaxRates:    d.DailyMaxRates,
		Seasonality:      d.Seasonality,
		Strategy:         domain.Strategy(d.Strategy),
		BaseRoomTypeID:   d.BaseRoomTypeID,
		RateIDMap:        d.RateIDMap,
	}
	for _, cp := range d.Campaigns {
		c.Campaigns = append(c.Campaigns, domain.Campaign(cp))
	}
	for _, r := range d.RoomDifferentials {
		c.RoomDifferentials = append(c.RoomDifferentials, domain.RoomDifferentialRule{
			RoomTypeID: r.RoomTypeID,
			Operator:   domain.DiffOperator(r.Operator),
			Value:      domain.ParseRate(r.Value),
		})
	}
	return c
}

func configFromDomain(c domain.HotelPricingConfig) configDTO {
	d := configDTO{
		HotelID:           c.HotelID,
		Multiplier:        c.Multiplier,
		Tax:               taxDTO{Type: string(c.Tax.Type), Percent: c.Tax.Percent},
		Campaigns:         make([]campaignDTO, 0, len(c.Campaigns)),
		Mobile:            discountDTO(c.Mobile),
		NonRef:            discountDTO(c.NonRef),
		Country:           discountDTO(c.Country),
		LoyaltyPercent:    c.LoyaltyPercent,
		GuardrailMax:      c.GuardrailMax,
		RateFreezePeriod:  c.RateFreezePeriod,
		LastMinuteFloor:   floorDTO(c.LastMinuteFloor),
		MonthlyMinRates:   c.MonthlyMinRates,
		DailyMaxRates:     c.DailyMaxRates,
		Seasonality:       c.Seasonality,
		Strategy:          strategyDTO(c.Strategy),
		BaseRoomTypeID:    c.BaseRoomTypeID,
		RoomDifferentials: make([]ruleDTO, 0, len(c.RoomDifferentials)),
		RateIDMap:         c.RateIDMap,
	}
	for _, cp := range c.Campaigns {
		d.Campaigns = append(d.Campaigns, campaignDTO(cp))
	}
	for _, r := range c.RoomDifferentials {
		var v any = r.Value
		if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
			v = nil
		}
		d.RoomDifferentials = append(d.RoomDifferentials, ruleDTO{RoomTypeID: r.RoomTypeID, Operator: string(r.Operator), Value: v})
	}
	return d
}

type overrideDTO struct {
	Date string `json:"date"`
	Rate any    `json:"rate"`
}

type overridesRequest struct {
	PMSPropertyID  string        `json:"pms_property_id"`
	BaseRoomTypeID string        `json:"base_room_type_id"`
	Source         string        `json:"source"`
	Push           bool          `json:"push"`
	Overrides      []overrideDTO `json:"overrides"`
}

type rangeRequest struct {
	PMSPropertyID  string `json:"pms_property_id"`
	BaseRoomTypeID string `json:"base_room_type_id"`
	Start          string `json:"start"`
	End            string `json:"end"`
	Push           bool   `json:"push"`
}

type syncRequest struct {
	PMSPropertyID string `json:"pms_property_id"`
}

type batchResponse struct {
	Batch domain.BatchReport `json:"batch"`
	Push  *domain.PushReport `json:"push,omitempty"`
}

// decisionDTO is one AI suggestion; suggested_rate may arrive as a string.
type decisionDTO struct {
	HotelID       string  `json:"hotel_id"`
	RoomTypeID    string  `json:"room_type_id"`
	StayDate      string  `json:"stay_date"`
	SuggestedRate any     `json:"suggested_rate"`
	Confidence    float64 `json:"confidence"`
	Reasoning     string  `json:"reasoning"`
	ModelVersion  string  `json:"model_version"`
}

func (d decisionDTO) toDomain() domain.RatePrediction {
	return domain.RatePrediction{
		HotelID:       d.HotelID,
		RoomTypeID:    d.RoomTypeID,
		StayDate:      d.StayDate,
		SuggestedRate: domain.ParseRate(d.SuggestedRate),
		Confidence:    d.Confidence,
		Reasoning:     d.Reasoning,
		ModelVersion:  d.ModelVersion,
	}
}
