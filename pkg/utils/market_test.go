package utils

import (
	"testing"
	"time"
)

func TestTradingDayKey(t *testing.T) {
	// Midnight UTC on the 5th is already 5:30 on the 5th in IST.
	utc := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	if got := TradingDay(utc); got != "2026-01-05" {
		t.Errorf("TradingDay(%v) = %s", utc, got)
	}

	// 20:00 UTC on the 5th is 01:30 on the 6th in IST.
	late := time.Date(2026, 1, 5, 20, 0, 0, 0, time.UTC)
	if got := TradingDay(late); got != "2026-01-06" {
		t.Errorf("TradingDay(%v) = %s, day key must follow IST", late, got)
	}
}

func TestIsTradingDay(t *testing.T) {
	monday := time.Date(2026, 1, 5, 10, 0, 0, 0, IndiaLocation)
	saturday := time.Date(2026, 1, 3, 10, 0, 0, 0, IndiaLocation)
	sunday := time.Date(2026, 1, 4, 10, 0, 0, 0, IndiaLocation)

	if !IsTradingDay(monday) {
		t.Error("Monday should be a trading day")
	}
	if IsTradingDay(saturday) || IsTradingDay(sunday) {
		t.Error("Weekends are not trading days")
	}
}

func TestIsMarketOpen(t *testing.T) {
	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before open", time.Date(2026, 1, 5, 9, 14, 0, 0, IndiaLocation), false},
		{"at open", time.Date(2026, 1, 5, 9, 15, 0, 0, IndiaLocation), true},
		{"mid session", time.Date(2026, 1, 5, 12, 0, 0, 0, IndiaLocation), true},
		{"last minute", time.Date(2026, 1, 5, 15, 29, 0, 0, IndiaLocation), true},
		{"at close", time.Date(2026, 1, 5, 15, 30, 0, 0, IndiaLocation), false},
		{"weekend session hours", time.Date(2026, 1, 3, 12, 0, 0, 0, IndiaLocation), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsMarketOpen(tc.at); got != tc.want {
				t.Errorf("IsMarketOpen(%v) = %v, want %v", tc.at, got, tc.want)
			}
		})
	}
}
