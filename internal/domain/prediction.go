package domain

import "time"

// RatePrediction is a shadow AI suggestion. It never reaches the live calendar
// until it is explicitly promoted.
type RatePrediction struct {
	HotelID       string    `json:"hotel_id"`
	RoomTypeID    string    `json:"room_type_id"`
	StayDate      string    `json:"stay_date"`
	SuggestedRate float64   `json:"suggested_rate"`
	Confidence    float64   `json:"confidence"`
	Reasoning     string    `json:"reasoning"`
	ModelVersion  string    `json:"model_version"`
	IsApplied     bool      `json:"is_applied"`
	CreatedAt     time.Time `json:"created_at"`
}

type DecisionReport struct {
	Saved   int      `json:"saved"`
	Dropped int      `json:"dropped"`
	Reasons []string `json:"reasons,omitempty"`
}
