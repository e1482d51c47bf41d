package duedate

import (
	"time"

	"github.com/Astemirdum/library-lending/lending/internal/isbn"
)

const (
	LoanDays            = 15
	LoanDaysSundayShift = 16
)

// Calculate returns the due date for a loan of id starting on today, or nil when
// the loan is open-ended. The result is midnight in today's location.
//
// A due date landing on Sunday moves one day forward; the shifted day is not
// checked again.
func Calculate(id string, today time.Time) *time.Time {
	if !isbn.DigitSumAboveThreshold(id) {
		return nil
	}
	due := addDays(today, LoanDays)
	if due.Weekday() == time.Sunday {
		due = addDays(today, LoanDaysSundayShift)
	}
	return &due
}

func addDays(t time.Time, days int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+days, 0, 0, 0, 0, t.Location())
}
