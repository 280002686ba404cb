package shared

import (
	"testing"
	"time"
)

func TestParseHotelRefs(t *testing.T) {
	got := ParseHotelRefs(" h1:P100, bad ,h2:P200,:P3,h4: ")
	if len(got) != 2 {
		t.Fatalf("want 2 refs, got %+v", got)
	}
	if got[0] != (HotelRef{HotelID: "h1", PMSPropertyID: "P100"}) || got[1] != (HotelRef{HotelID: "h2", PMSPropertyID: "P200"}) {
		t.Fatalf("unexpected refs: %+v", got)
	}
	if ParseHotelRefs("") != nil {
		t.Fatal("empty input should yield nil")
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("PUSH_INTERVAL_MS", "100")
	t.Setenv("WRITE_WORKERS", "not-a-number")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("SYNC_HOTELS", "h1:P1")

	c := Load()
	if c.PushInterval != 100*time.Millisecond {
		t.Fatalf("push interval = %v", c.PushInterval)
	}
	if c.WriteWorkers != 8 {
		t.Fatalf("write workers should fall back to default, got %d", c.WriteWorkers)
	}
	if len(c.CORSOrigins) != 2 || c.CORSOrigins[1] != "https://b.example.com" {
		t.Fatalf("cors origins = %v", c.CORSOrigins)
	}
	if len(c.SyncHotels) != 1 || c.SyncHotels[0].PMSPropertyID != "P1" {
		t.Fatalf("sync hotels = %+v", c.SyncHotels)
	}
}
