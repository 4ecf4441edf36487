package attendance

import "time"

// standardDayHours is the threshold above which worked time counts as overtime.
const standardDayHours = 8.0

// ComputeCurrentHours returns the hours worked between checkIn and now,
// excluding break time. An open break (start set, end unset) is subtracted up
// to now. The result is clamped to zero; it is pure and safe to call on every
// display tick.
func ComputeCurrentHours(checkIn time.Time, breakStart, breakEnd *time.Time, now time.Time) float64 {
	elapsed := now.Sub(checkIn)

	if breakStart != nil {
		if breakEnd != nil {
			elapsed -= breakEnd.Sub(*breakStart)
		} else {
			elapsed -= now.Sub(*breakStart)
		}
	}

	if elapsed < 0 {
		elapsed = 0
	}
	return elapsed.Minutes() / 60
}

// OvertimeHours returns the portion of totalHours above the standard day.
func OvertimeHours(totalHours float64) float64 {
	if totalHours <= standardDayHours {
		return 0
	}
	return totalHours - standardDayHours
}
