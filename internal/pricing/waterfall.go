package pricing

import (
	"github.com/shopspring/decimal"

	"hotel_rates/internal/domain"
)

// Deep-deal campaigns suppress every other discount, mobile included.
var exclusiveSlugs = map[string]bool{
	"black-friday": true,
	"limited-time": true,
}

// Campaigns that stack with others but switch the mobile discount off.
var mobileBlockingSlugs = map[string]bool{
	"early-deal":   true,
	"late-escape":  true,
	"getaway-deal": true,
}

// Context is everything the waterfall needs for one stay date.
type Context struct {
	Date           string
	Multiplier     float64
	Tax            domain.Tax
	Campaigns      []domain.Campaign
	Mobile         domain.Discount
	NonRef         domain.Discount
	Country        domain.Discount
	LoyaltyPercent float64
}

func ContextFor(cfg domain.HotelPricingConfig, date string) Context {
	return Context{
		Date:           date,
		Multiplier:     cfg.Multiplier,
		Tax:            cfg.Tax,
		Campaigns:      cfg.Campaigns,
		Mobile:         cfg.Mobile,
		NonRef:         cfg.NonRef,
		Country:        cfg.Country,
		LoyaltyPercent: cfg.LoyaltyPercent,
	}
}

// ComputeSellRate turns a live PMS rate into the public sell rate. Stage order is fixed:
// markup, non-refundable, exclusive tax, then either a deep deal alone or
// loyalty, best campaign, mobile and country in that order.
func ComputeSellRate(liveRate float64, c Context) (float64, bool) {
	if !domain.ValidRate(liveRate) {
		return 0, false
	}
	mult := c.Multiplier
	if mult == 0 {
		mult = domain.DefaultMultiplier
	}
	if !finite(mult, c.Tax.Percent, c.Mobile.Percent, c.NonRef.Percent, c.Country.Percent, c.LoyaltyPercent) || mult <= 0 {
		return 0, false
	}
	for _, cp := range c.Campaigns {
		if !finite(cp.Discount) {
			return 0, false
		}
	}

	rate := decimal.NewFromFloat(liveRate).Mul(decimal.NewFromFloat(mult))

	if c.NonRef.Active {
		rate = rate.Mul(less(c.NonRef.Percent))
	}

	// tax lands after the hotel-level discount and before the OTA-level ones
	if c.Tax.Type == domain.TaxExclusive && c.Tax.Percent > 0 {
		rate = rate.Mul(more(c.Tax.Percent))
	}

	if deal, ok := exclusiveCampaign(c.Campaigns, c.Date); ok {
		rate = rate.Mul(less(deal.Discount))
		return cents(rate)
	}

	if c.LoyaltyPercent > 0 {
		rate = rate.Mul(less(c.LoyaltyPercent))
	}
	if best, ok := bestCampaign(c.Campaigns, c.Date); ok {
		rate = rate.Mul(less(best.Discount))
	}
	if c.Mobile.Active && !mobileBlocked(c.Campaigns, c.Date) {
		rate = rate.Mul(less(c.Mobile.Percent))
	}
	if c.Country.Active {
		rate = rate.Mul(less(c.Country.Percent))
	}
	return cents(rate)
}

func exclusiveCampaign(cs []domain.Campaign, date string) (domain.Campaign, bool) {
	for _, c := range cs {
		if exclusiveSlugs[c.Slug] && c.Matches(date) {
			return c, true
		}
	}
	return domain.Campaign{}, false
}

// bestCampaign picks the largest standard discount; the first one wins a tie.
func bestCampaign(cs []domain.Campaign, date string) (domain.Campaign, bool) {
	var (
		best  domain.Campaign
		found bool
	)
	for _, c := range cs {
		if exclusiveSlugs[c.Slug] || !c.Matches(date) {
			continue
		}
		if !found || c.Discount > best.Discount {
			best, found = c, true
		}
	}
	return best, found
}

func mobileBlocked(cs []domain.Campaign, date string) bool {
	for _, c := range cs {
		if (exclusiveSlugs[c.Slug] || mobileBlockingSlugs[c.Slug]) && c.Matches(date) {
			return true
		}
	}
	return false
}
