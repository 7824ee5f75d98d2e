package bolt

import (
	"testing"
	"time"

	"boltgraph/packstream"
)

func TestTemporalDateRoundTrip(t *testing.T) {
	want := Temporal{Time: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), HasDate: true}
	s, err := EncodeTemporal(want)
	if err != nil {
		t.Fatal(err)
	}
	if s.Signature != sigDate {
		t.Fatalf("expected sigDate, got %x", s.Signature)
	}
	got, err := DecodeTemporal(s)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Time.Equal(want.Time) || !got.HasDate {
		t.Fatalf("round trip mismatch: want %v got %v", want.Time, got.Time)
	}
}

func TestTemporalLocalDateTimeRoundTrip(t *testing.T) {
	want := Temporal{
		Time:    time.Date(2024, 3, 15, 9, 30, 0, 123000000, time.UTC),
		HasDate: true, HasTime: true,
	}
	s, err := EncodeTemporal(want)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeTemporal(s)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Time.Equal(want.Time) {
		t.Fatalf("want %v got %v", want.Time, got.Time)
	}
}

func TestTemporalDateTimeWithOffsetRoundTrip(t *testing.T) {
	loc := time.FixedZone("", 3600)
	want := Temporal{
		Time:          time.Date(2024, 3, 15, 9, 30, 0, 0, loc),
		HasDate:       true,
		HasTime:       true,
		HasOffset:     true,
		OffsetSeconds: 3600,
	}
	s, err := EncodeTemporal(want)
	if err != nil {
		t.Fatal(err)
	}
	if s.Signature != sigDateTime {
		t.Fatalf("expected sigDateTime, got %x", s.Signature)
	}
	got, err := DecodeTemporal(s)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Time.Equal(want.Time) || got.OffsetSeconds != 3600 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestTemporalDateTimeZoneIDRoundTrip(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("tzdata not available")
	}
	want := Temporal{
		Time:    time.Date(2024, 7, 1, 12, 0, 0, 0, loc),
		HasDate: true, HasTime: true, HasZone: true, Zone: "Europe/Berlin",
	}
	s, err := EncodeTemporal(want)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeTemporal(s)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Time.Equal(want.Time) || got.Zone != "Europe/Berlin" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestTemporalDurationRoundTrip(t *testing.T) {
	want := Temporal{Duration: true, Months: 14, Days: 3, Seconds: 7200, Nanoseconds: 5000}
	s, err := EncodeTemporal(want)
	if err != nil {
		t.Fatal(err)
	}
	if s.Signature != sigDuration {
		t.Fatalf("expected sigDuration, got %x", s.Signature)
	}
	got, err := DecodeTemporal(s)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("want %+v got %+v", want, got)
	}
}

func TestDecodeTemporalRejectsUnknownSignature(t *testing.T) {
	_, err := DecodeTemporal(packstream.Structure{Signature: 0x99})
	if err == nil {
		t.Fatal("expected error for unrecognized temporal structure")
	}
}

func TestEncodeTemporalRejectsEmptyShape(t *testing.T) {
	_, err := EncodeTemporal(Temporal{})
	if err == nil {
		t.Fatal("expected error for temporal value with no recognized shape")
	}
}
