package mysql

// -----------------------------------------------------------------------------
// CONFIG
// -----------------------------------------------------------------------------

const configColumns = `
  hotel_id, multiplier, tax, campaigns, mobile, non_ref, country, loyalty_percent,
  guardrail_max, rate_freeze_period, last_minute_floor, monthly_min_rates, seasonality,
  strategy, base_room_type_id, room_differentials, rate_id_map, updated_at`

const getConfigSQL = `SELECT` + configColumns + `
FROM hotel_pricing_configs
WHERE hotel_id = ?`

// Row lock for read-modify-write of the config inside a transaction.
const getConfigForUpdateSQL = getConfigSQL + ` FOR UPDATE`

const upsertConfigSQL = `
INSERT INTO hotel_pricing_configs
  (hotel_id, multiplier, tax, campaigns, mobile, non_ref, country, loyalty_percent,
   guardrail_max, rate_freeze_period, last_minute_floor, monthly_min_rates, seasonality,
   strategy, base_room_type_id, room_differentials, rate_id_map)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  multiplier         = VALUES(multiplier),
  tax                = VALUES(tax),
  campaigns          = VALUES(campaigns),
  mobile             = VALUES(mobile),
  non_ref            = VALUES(non_ref),
  country            = VALUES(country),
  loyalty_percent    = VALUES(loyalty_percent),
  guardrail_max      = VALUES(guardrail_max),
  rate_freeze_period = VALUES(rate_freeze_period),
  last_minute_floor  = VALUES(last_minute_floor),
  monthly_min_rates  = VALUES(monthly_min_rates),
  seasonality        = VALUES(seasonality),
  strategy           = VALUES(strategy),
  base_room_type_id  = VALUES(base_room_type_id),
  room_differentials = VALUES(room_differentials),
  rate_id_map        = VALUES(rate_id_map),
  updated_at         = CURRENT_TIMESTAMP
`

const listDailyMaxSQL = `
SELECT DATE_FORMAT(stay_date, '%Y-%m-%d'), max_price
FROM daily_max_rates
WHERE hotel_id = ?
`

const deleteDailyMaxSQL = `DELETE FROM daily_max_rates WHERE hotel_id = ?`

const insertDailyMaxPrefix = "INSERT INTO daily_max_rates (hotel_id, stay_date, max_price) VALUES "

// -----------------------------------------------------------------------------
// CALENDAR & HISTORY
// -----------------------------------------------------------------------------

const calendarColumns = `
  hotel_id, room_type_id, DATE_FORMAT(stay_date, '%Y-%m-%d'), rate, source, last_updated_at`

const getCalendarEntrySQL = `SELECT` + calendarColumns + `
FROM rate_calendar
WHERE hotel_id = ? AND room_type_id = ? AND stay_date = ?`

const listCalendarSQL = `SELECT` + calendarColumns + `
FROM rate_calendar
WHERE hotel_id = ? AND stay_date >= ?`

const upsertCalendarSQL = `
INSERT INTO rate_calendar
  (hotel_id, room_type_id, stay_date, rate, source, last_updated_at)
VALUES
  (?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  rate            = VALUES(rate),
  source          = VALUES(source),
  last_updated_at = VALUES(last_updated_at)
`

const insertHistorySQL = `
INSERT INTO price_history
  (hotel_id, room_type_id, stay_date, old_price, new_price, source, created_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?)
`

// Most recent change per (room type, stay date).
const latestHistorySQL = `
SELECT id, hotel_id, room_type_id, stay_date, old_price, new_price, source, created_at
FROM (
  SELECT
    id, hotel_id, room_type_id, DATE_FORMAT(stay_date, '%Y-%m-%d') AS stay_date,
    old_price, new_price, source, created_at,
    ROW_NUMBER() OVER (PARTITION BY room_type_id, stay_date ORDER BY created_at DESC, id DESC) AS rn
  FROM price_history
  WHERE hotel_id = ? AND stay_date >= ?
) h
WHERE h.rn = 1
ORDER BY stay_date, room_type_id
`

// -----------------------------------------------------------------------------
// PACING (read-only)
// -----------------------------------------------------------------------------

const listOccupancySQL = `
SELECT hotel_id, DATE_FORMAT(stay_date, '%Y-%m-%d'), rooms_sold, rooms_available
FROM daily_occupancy
WHERE hotel_id = ? AND stay_date >= ?
ORDER BY stay_date
`

const listSnapshotsSQL = `
SELECT hotel_id, DATE_FORMAT(stay_date, '%Y-%m-%d'), DATE_FORMAT(snapshot_date, '%Y-%m-%d'), rooms_sold
FROM pacing_snapshots
WHERE hotel_id = ? AND stay_date >= ?
ORDER BY stay_date, snapshot_date
`

// -----------------------------------------------------------------------------
// PREDICTIONS
// -----------------------------------------------------------------------------

const insertPredictionsPrefix = "INSERT INTO rate_predictions\n  (hotel_id, room_type_id, stay_date, suggested_rate, confidence, reasoning, model_version, is_applied)\nVALUES "

// A refreshed suggestion always reads as new and unapplied.
const insertPredictionsOnDup = " ON DUPLICATE KEY UPDATE\n" +
	"  suggested_rate = VALUES(suggested_rate),\n" +
	"  confidence     = VALUES(confidence),\n" +
	"  reasoning      = VALUES(reasoning),\n" +
	"  model_version  = VALUES(model_version),\n" +
	"  is_applied     = FALSE,\n" +
	"  created_at     = CURRENT_TIMESTAMP(6)\n"

const listPendingPredictionsSQL = `
SELECT hotel_id, room_type_id, DATE_FORMAT(stay_date, '%Y-%m-%d'), suggested_rate, confidence,
       reasoning, model_version, is_applied, created_at
FROM rate_predictions
WHERE hotel_id = ? AND room_type_id = ? AND stay_date BETWEEN ? AND ? AND is_applied = FALSE
ORDER BY stay_date
`

const markAppliedPrefix = "UPDATE rate_predictions SET is_applied = TRUE WHERE hotel_id = ? AND room_type_id = ? AND stay_date IN "
