package domain

import "context"

type ConfigRepository interface {
	// GetConfig returns ErrConfigMissing when the hotel has no config row.
	GetConfig(ctx context.Context, hotelID string) (HotelPricingConfig, error)
	// SaveConfig replaces the whole config (including daily max rates) in one transaction.
	SaveConfig(ctx context.Context, cfg HotelPricingConfig) error
	// UpdateConfig loads, mutates and saves the config under a row lock in one transaction.
	UpdateConfig(ctx context.Context, hotelID string, fn func(*HotelPricingConfig) error) error
}

type CalendarRepository interface {
	// GetCalendarEntry returns ErrNotFound when no row exists.
	GetCalendarEntry(ctx context.Context, hotelID, roomTypeID, date string) (CalendarEntry, error)
	// ListCalendar lists rows with stay_date in [from, to]; empty roomTypeID means every room, empty to means open-ended.
	ListCalendar(ctx context.Context, hotelID, roomTypeID, from, to string) ([]CalendarEntry, error)
	UpsertCalendarEntry(ctx context.Context, e CalendarEntry) error
	InsertPriceHistory(ctx context.Context, rec PriceHistoryRecord) error
	// LatestPriceHistory returns the most recent record per (room type, stay date) with stay_date >= from.
	LatestPriceHistory(ctx context.Context, hotelID, from string) ([]PriceHistoryRecord, error)
}

type PacingRepository interface {
	ListOccupancy(ctx context.Context, hotelID, from string) ([]Occupancy, error)
	ListPacingSnapshots(ctx context.Context, hotelID, from string) ([]PacingSnapshot, error)
}

type PredictionRepository interface {
	UpsertPredictions(ctx context.Context, ps []RatePrediction) error
	ListPendingPredictions(ctx context.Context, hotelID, roomTypeID, from, to string) ([]RatePrediction, error)
	MarkPredictionsApplied(ctx context.Context, hotelID, roomTypeID string, dates []string) error
}

// PMS is the property management system adapter.
type PMS interface {
	PostRate(ctx context.Context, propertyID, ratePlanID, date string, rate float64) (string, error)
	GetRates(ctx context.Context, propertyID, roomTypeID, start, end string) ([]LiveRate, error)
	GetRoomTypes(ctx context.Context, propertyID string) ([]RoomType, error)
	GetRatePlans(ctx context.Context, propertyID string) ([]RatePlan, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// Repository is the full persistence collaborator.
type Repository interface {
	ConfigRepository
	CalendarRepository
	PacingRepository
	PredictionRepository
}
