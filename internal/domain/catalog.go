package domain

type RoomType struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type RatePlan struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	RoomTypeID string `json:"roomTypeID"`
	IsDerived  bool   `json:"isDerived"`
}

type LiveRate struct {
	Date string  `json:"date"`
	Rate float64 `json:"rate"`
}
