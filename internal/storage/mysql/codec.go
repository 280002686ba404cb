package mysql

import (
	"encoding/json"
	"fmt"
	"math"

	"hotel_rates/internal/domain"
)

// Stored JSON shapes of the config blobs. Only this package knows them.

type taxDoc struct {
	Type    string  `json:"type"`
	Percent float64 `json:"percent"`
}

type discountDoc struct {
	Active  bool    `json:"active"`
	Percent float64 `json:"percent"`
}

type campaignDoc struct {
	Slug      string  `json:"slug"`
	Discount  float64 `json:"discount"`
	StartDate string  `json:"startDate,omitempty"`
	EndDate   string  `json:"endDate,omitempty"`
	Active    bool    `json:"active"`
}

type floorDoc struct {
	Enabled    bool     `json:"enabled"`
	Days       int      `json:"days"`
	Rate       float64  `json:"rate"`
	DaysOfWeek []string `json:"dow"`
}

type strategyDoc struct {
	Mode            string  `json:"mode"`
	TargetOccupancy float64 `json:"targetOccupancy"`
	Notes           string  `json:"notes,omitempty"`
}

// Value is kept loose: older rows carry numbers as strings.
type ruleDoc struct {
	RoomTypeID string `json:"roomTypeId"`
	Operator   string `json:"operator"`
	Value      any    `json:"value"`
}

type configBlobs struct {
	tax, campaigns, mobile, nonRef, country  []byte
	floor, monthlyMin, seasonality, strategy []byte
	differentials, rateIDMap                 []byte
}

func encodeConfig(c domain.HotelPricingConfig) (configBlobs, error) {
	var b configBlobs
	var err error
	enc := func(v any) []byte {
		if err != nil {
			return nil
		}
		var out []byte
		out, err = json.Marshal(v)
		return out
	}

	campaigns := make([]campaignDoc, 0, len(c.Campaigns))
	for _, cp := range c.Campaigns {
		campaigns = append(campaigns, campaignDoc(cp))
	}
	rules := make([]ruleDoc, 0, len(c.RoomDifferentials))
	for _, r := range c.RoomDifferentials {
		var v any = r.Value
		if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
			v = nil
		}
		rules = append(rules, ruleDoc{RoomTypeID: r.RoomTypeID, Operator: string(r.Operator), Value: v})
	}
	dow := c.LastMinuteFloor.DaysOfWeek
	if dow == nil {
		dow = []string{}
	}
	rateIDs := c.RateIDMap
	if rateIDs == nil {
		rateIDs = map[string]string{}
	}

	b.tax = enc(taxDoc{Type: string(c.Tax.Type), Percent: c.Tax.Percent})
	b.campaigns = enc(campaigns)
	b.mobile = enc(discountDoc(c.Mobile))
	b.nonRef = enc(discountDoc(c.NonRef))
	b.country = enc(discountDoc(c.Country))
	b.floor = enc(floorDoc{
		Enabled:    c.LastMinuteFloor.Enabled,
		Days:       c.LastMinuteFloor.Days,
		Rate:       c.LastMinuteFloor.Rate,
		DaysOfWeek: dow,
	})
	b.monthlyMin = enc(c.MonthlyMinRates)
	b.seasonality = enc(c.Seasonality)
	b.strategy = enc(strategyDoc(c.Strategy))
	b.differentials = enc(rules)
	b.rateIDMap = enc(rateIDs)
	if err != nil {
		return configBlobs{}, fmt.Errorf("encode config %s: %w", c.HotelID, err)
	}
	return b, nil
}

func decodeConfig(c *domain.HotelPricingConfig, b configBlobs) error {
	var (
		tax          taxDoc
		campaigns    []campaignDoc
		mob, nr, cty discountDoc
		floor        floorDoc
		strategy     strategyDoc
		rules        []ruleDoc
		err          error
	)
	dec := func(name string, raw []byte, v any) {
		if err != nil || len(raw) == 0 {
			return
		}
		if e := json.Unmarshal(raw, v); e != nil {
			err = fmt.Errorf("decode %s: %w", name, e)
		}
	}
	dec("tax", b.tax, &tax)
	dec("campaigns", b.campaigns, &campaigns)
	dec("mobile", b.mobile, &mob)
	dec("non_ref", b.nonRef, &nr)
	dec("country", b.country, &cty)
	dec("last_minute_floor", b.floor, &floor)
	dec("monthly_min_rates", b.monthlyMin, &c.MonthlyMinRates)
	dec("seasonality", b.seasonality, &c.Seasonality)
	dec("strategy", b.strategy, &strategy)
	dec("room_differentials", b.differentials, &rules)
	dec("rate_id_map", b.rateIDMap, &c.RateIDMap)
	if err != nil {
		return fmt.Errorf("config %s: %w", c.HotelID, err)
	}

	c.Tax = domain.Tax{Type: domain.TaxMode(tax.Type), Percent: tax.Percent}
	c.Campaigns = make([]domain.Campaign, 0, len(campaigns))
	for _, cp := range campaigns {
		c.Campaigns = append(c.Campaigns, domain.Campaign(cp))
	}
	c.Mobile = domain.Discount(mob)
	c.NonRef = domain.Discount(nr)
	c.Country = domain.Discount(cty)
	c.LastMinuteFloor = domain.LastMinuteFloor{
		Enabled:    floor.Enabled,
		Days:       floor.Days,
		Rate:       floor.Rate,
		DaysOfWeek: floor.DaysOfWeek,
	}
	c.Strategy = domain.Strategy(strategy)
	c.RoomDifferentials = make([]domain.RoomDifferentialRule, 0, len(rules))
	for _, r := range rules {
		c.RoomDifferentials = append(c.RoomDifferentials, domain.RoomDifferentialRule{
			RoomTypeID: r.RoomTypeID,
			Operator:   domain.DiffOperator(r.Operator),
			Value:      domain.ParseRate(r.Value),
		})
	}
	return nil
}
