package domain

// PacingSnapshot is bookings-on-books for a stay date as captured on SnapshotDate.
// Owned by the external ingestion process.
type PacingSnapshot struct {
	HotelID      string `json:"-"`
	StayDate     string `json:"stay_date"`
	SnapshotDate string `json:"snapshot_date"`
	RoomsSold    int    `json:"rooms_sold"`
}

// Occupancy is the current rooms sold for a stay date. Owned by the external ingestion process.
type Occupancy struct {
	HotelID        string
	StayDate       string
	RoomsSold      int
	RoomsAvailable int
}
