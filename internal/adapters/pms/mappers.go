package pms

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"hotel_rates/internal/domain"
)

/********** alias registries **********/

// PMS payloads are not consistent across endpoints and API versions.
var aliases = map[string][]string{
	"room_type_id":   {"roomTypeID", "roomTypeId", "room_type_id", "id"},
	"room_type_name": {"roomTypeName", "name", "room_type_name"},
	"rate_plan_id":   {"rateID", "rateId", "ratePlanID", "ratePlanId", "rate_plan_id", "id"},
	"rate_plan_name": {"ratePlanNamePublic", "ratePlanName", "name", "rate_plan_name"},
	"rate_plan_room": {"roomTypeID", "roomTypeId", "room_type_id", "roomType.id"},
	"derived":        {"isDerived", "derived", "is_derived"},
	"date":           {"date", "stayDate", "stay_date"},
	"rate":           {"rate", "roomRate", "amount", "price"},
	"job_reference":  {"jobReferenceID", "jobReferenceId", "job_reference_id", "data.jobReferenceID", "data.jobReferenceId", "id"},
}

var listKeys = []string{"data", "items", "results", "rates", "roomTypes", "ratePlans"}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns the value at path as a string; numbers are formatted.
func lookupStr(m map[string]any, path string) string {
	switch v := lookupAny(m, path).(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func firstStr(m map[string]any, key string) string {
	for _, p := range aliases[key] {
		if s := lookupStr(m, p); s != "" {
			return s
		}
	}
	return ""
}

func firstBool(m map[string]any, key string) bool {
	for _, p := range aliases[key] {
		switch v := lookupAny(m, p).(type) {
		case bool:
			return v
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				return b
			}
		case float64:
			return v != 0
		}
	}
	return false
}

// firstRate: number from the rate aliases (float64 or string like "120,50").
// NaN when nothing numeric is present.
func firstRate(m map[string]any) float64 {
	for _, p := range aliases["rate"] {
		v := lookupAny(m, p)
		if s, ok := v.(string); ok {
			v = strings.ReplaceAll(s, ",", ".")
		}
		if v == nil {
			continue
		}
		return domain.ParseRate(v)
	}
	return domain.ParseRate(nil)
}

// listOf unwraps a top-level array or the first known list key of an envelope.
func listOf(v any) []map[string]any {
	var raw []any
	switch t := v.(type) {
	case []any:
		raw = t
	case map[string]any:
		for _, k := range listKeys {
			if arr, ok := t[k].([]any); ok {
				raw = arr
				break
			}
		}
	}
	out := make([]map[string]any, 0, len(raw))
	for _, it := range raw {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

/********** mappers **********/

func mapRoomTypes(in []map[string]any) []domain.RoomType {
	out := make([]domain.RoomType, 0, len(in))
	for _, m := range in {
		id := firstStr(m, "room_type_id")
		if id == "" {
			log.Warn().Str("context", "mapRoomTypes").Msg("room type without id skipped")
			continue
		}
		out = append(out, domain.RoomType{ID: id, Name: firstStr(m, "room_type_name")})
	}
	return out
}

func mapRatePlans(in []map[string]any) []domain.RatePlan {
	out := make([]domain.RatePlan, 0, len(in))
	for _, m := range in {
		id := firstStr(m, "rate_plan_id")
		if id == "" {
			log.Warn().Str("context", "mapRatePlans").Msg("rate plan without id skipped")
			continue
		}
		out = append(out, domain.RatePlan{
			ID:         id,
			Name:       firstStr(m, "rate_plan_name"),
			RoomTypeID: firstStr(m, "rate_plan_room"),
			IsDerived:  firstBool(m, "derived"),
		})
	}
	return out
}

// mapLiveRates keeps rows with a parseable date; rates may be NaN and are
// rejected by the caller's never-zero guard.
func mapLiveRates(in []map[string]any) []domain.LiveRate {
	out := make([]domain.LiveRate, 0, len(in))
	for _, m := range in {
		d, err := domain.ParseDate(firstStr(m, "date"))
		if err != nil {
			continue
		}
		out = append(out, domain.LiveRate{Date: domain.FormatDate(d), Rate: firstRate(m)})
	}
	return out
}

func mapJobReference(m map[string]any) string {
	return firstStr(m, "job_reference")
}
