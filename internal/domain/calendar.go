package domain

import (
	"strings"
	"time"
)

type Source string

const (
	SourceManual   Source = "MANUAL"
	SourceAuto     Source = "AUTO"
	SourceSentinel Source = "SENTINEL"
	SourceAI       Source = "AI"
	SourceFrozen   Source = "Frozen"
)

// IsAI covers every AI* source variant (AI, AI_AGENT, ...).
func (s Source) IsAI() bool { return strings.HasPrefix(string(s), "AI") }

// CalendarEntry is the believed live rate for (hotel, room type, stay date).
type CalendarEntry struct {
	HotelID       string
	RoomTypeID    string
	StayDate      string
	Rate          float64
	Source        Source
	LastUpdatedAt time.Time
}

// PriceHistoryRecord is append-only and only written on an actual value change.
type PriceHistoryRecord struct {
	ID         int64
	HotelID    string
	RoomTypeID string
	StayDate   string
	OldPrice   *float64 // nil when no prior calendar row existed
	NewPrice   float64
	Source     Source
	CreatedAt  time.Time
}

type RateOverride struct {
	Date string
	Rate float64 // NaN when the caller sent a non-numeric value
}

// PushItem is one PMS rate update in a push payload.
type PushItem struct {
	RoomTypeID string  `json:"room_type_id"`
	RateID     string  `json:"rate_id"`
	Date       string  `json:"date"`
	Rate       float64 `json:"rate"`
}

type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeSkipped Outcome = "skipped"
	OutcomeInvalid Outcome = "invalid"
	OutcomeFailed  Outcome = "failed"
)

type ItemOutcome struct {
	Date     string   `json:"date"`
	Rate     float64  `json:"rate"`
	Outcome  Outcome  `json:"outcome"`
	Reason   string   `json:"reason,omitempty"`
	Changed  bool     `json:"changed"`
	Warnings []string `json:"warnings,omitempty"`
}

// BatchReport collects per-date outcomes and the resulting PMS push payload.
type BatchReport struct {
	ID         string        `json:"id"`
	HotelID    string        `json:"hotel_id"`
	PropertyID string        `json:"pms_property_id"`
	Source     Source        `json:"source"`
	Items      []ItemOutcome `json:"items"`
	Payload    []PushItem    `json:"payload"`
}

func (r BatchReport) Count(o Outcome) int {
	n := 0
	for _, it := range r.Items {
		if it.Outcome == o {
			n++
		}
	}
	return n
}

type PushStatus string

const (
	PushOK           PushStatus = "ok"
	PushFailed       PushStatus = "failed"
	PushNotAttempted PushStatus = "not_attempted"
)

type PushResult struct {
	Item           PushItem   `json:"item"`
	Status         PushStatus `json:"status"`
	JobReferenceID string     `json:"job_reference_id,omitempty"`
	Error          string     `json:"error,omitempty"`
}

type PushReport struct {
	Results []PushResult `json:"results"`
}

func (r PushReport) Count(s PushStatus) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == s {
			n++
		}
	}
	return n
}
