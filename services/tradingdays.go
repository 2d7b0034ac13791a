package services

import "time"

// CountBusinessDays counts the weekdays from start through end inclusive.
// Exchange holidays are not modelled; the caller-supplied day index wins
// when the two disagree.
func CountBusinessDays(start, end time.Time) int {
	start = dateOnly(start)
	end = dateOnly(end)
	if end.Before(start) {
		return 0
	}

	count := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		switch d.Weekday() {
		case time.Saturday, time.Sunday:
		default:
			count++
		}
	}
	return count
}

// ExpectedDayIndex derives the trading day index for today from the
// offering's first trading date. Day 1 is the trading start itself.
func ExpectedDayIndex(tradingStart, today time.Time) int {
	return CountBusinessDays(tradingStart, today)
}
