package circulation

import "time"

// FinePerDay is the overdue rate in VND per calendar day late.
const FinePerDay = 5000

// Condition surcharges in VND, keyed by the condition string reported at
// return. Conditions outside the table (including Tốt and Khá) cost nothing;
// the list is display data owned by the catalog, not an enum of the core.
var conditionSurcharge = map[string]int{
	"Hỏng nhẹ":  10000,
	"Hỏng nặng": 50000,
	"Mất sách":  200000,
}

func ConditionSurcharge(condition string) int {
	return conditionSurcharge[condition]
}

// DaysLate counts calendar days between due date and return date,
// midnight-normalized: returning any time on a day after the due day counts
// that whole day. Never negative.
func DaysLate(dueDate, returnDate time.Time) int {
	due := midnight(dueDate)
	ret := midnight(returnDate)
	if !ret.After(due) {
		return 0
	}
	return int(ret.Sub(due) / (24 * time.Hour))
}

// Fine is the total fine for a return: overdue component plus condition
// surcharge. Pure, so callers can show an estimate before the actual return.
func Fine(dueDate, returnDate time.Time, condition string) int {
	return DaysLate(dueDate, returnDate)*FinePerDay + ConditionSurcharge(condition)
}

// midnight pins the wall-clock date to UTC so day differences divide evenly.
func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
