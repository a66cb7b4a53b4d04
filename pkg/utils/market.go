package utils

import (
	"time"
)

// IndiaLocation is the timezone for Indian markets.
var IndiaLocation *time.Location

func init() {
	var err error
	IndiaLocation, err = time.LoadLocation("Asia/Kolkata")
	if err != nil {
		// Fallback to UTC+5:30
		IndiaLocation = time.FixedZone("IST", 5*60*60+30*60)
	}
}

// NowIST returns the current time in the Indian market timezone.
func NowIST() time.Time {
	return time.Now().In(IndiaLocation)
}

// TradingDay formats t as the trading-date key used by the entry-run marker.
func TradingDay(t time.Time) string {
	return t.In(IndiaLocation).Format("2006-01-02")
}

// IsTradingDay returns false on weekends. Exchange holidays are not tracked;
// the connectivity check rejects those days at the broker instead.
func IsTradingDay(t time.Time) bool {
	wd := t.In(IndiaLocation).Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// IsMarketOpen returns true between 9:15 and 15:30 IST on a trading day.
func IsMarketOpen(t time.Time) bool {
	if !IsTradingDay(t) {
		return false
	}
	now := t.In(IndiaLocation)
	minutes := now.Hour()*60 + now.Minute()
	return minutes >= 555 && minutes < 930
}
