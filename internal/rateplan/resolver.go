// Package rateplan maps PMS room types to the rate plan the engine is allowed to push to.
package rateplan

import (
	"strings"

	"hotel_rates/internal/domain"
)

// Heuristic classifies rate plans by name. Toxic plans (net, package, agent...)
// are avoided; preferred plans (base, standard, rack, bar) win when present.
type Heuristic struct {
	Toxic     []string
	Preferred []string
}

var Default = Heuristic{
	Toxic:     []string{"net", "package", "agent", "corp", "nonref"},
	Preferred: []string{"base", "standard", "rack", "bar"},
}

func (h Heuristic) IsToxic(name string) bool { return containsAny(name, h.Toxic) }

func (h Heuristic) IsPreferred(name string) bool { return containsAny(name, h.Preferred) }

// Select picks one plan from the candidates of a single room type:
// drop toxic plans unless that leaves nothing, then prefer a positive keyword,
// else the first survivor.
func (h Heuristic) Select(candidates []domain.RatePlan) (domain.RatePlan, bool) {
	if len(candidates) == 0 {
		return domain.RatePlan{}, false
	}
	pool := make([]domain.RatePlan, 0, len(candidates))
	for _, rp := range candidates {
		if !h.IsToxic(rp.Name) {
			pool = append(pool, rp)
		}
	}
	if len(pool) == 0 {
		pool = candidates
	}
	for _, rp := range pool {
		if h.IsPreferred(rp.Name) {
			return rp, true
		}
	}
	return pool[0], true
}

// BuildRateIDMap resolves a sellable, non-derived rate plan per room type.
// Room types without candidates are left out of the map.
func (h Heuristic) BuildRateIDMap(roomTypes []domain.RoomType, plans []domain.RatePlan) map[string]string {
	out := make(map[string]string, len(roomTypes))
	for _, rt := range roomTypes {
		var candidates []domain.RatePlan
		for _, rp := range plans {
			if rp.RoomTypeID == rt.ID && !rp.IsDerived {
				candidates = append(candidates, rp)
			}
		}
		if rp, ok := h.Select(candidates); ok {
			out[rt.ID] = rp.ID
		}
	}
	return out
}

func BuildRateIDMap(roomTypes []domain.RoomType, plans []domain.RatePlan) map[string]string {
	return Default.BuildRateIDMap(roomTypes, plans)
}

func containsAny(name string, words []string) bool {
	low := strings.ToLower(name)
	for _, w := range words {
		if w != "" && strings.Contains(low, strings.ToLower(w)) {
			return true
		}
	}
	return false
}
