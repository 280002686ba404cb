package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrConfigMissing  = errors.New("pricing config missing for hotel")
	ErrRateMapMissing = errors.New("rate id map is empty: re-sync rate plans from the PMS")
	ErrInvalidConfig  = errors.New("invalid pricing config")
)
