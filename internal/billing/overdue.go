package billing

import (
	"sort"
	"time"

	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/domain"
)

type OverdueBill struct {
	domain.Bill
	DaysOverdue int `json:"days_overdue"`
}

// IsOverdue reports whether a sent bill is past its due date at asOf and still
// unsettled. Dates are compared as calendar days in asOf's location.
func IsOverdue(b domain.Bill, asOf time.Time) bool {
	if b.Status != domain.BillSent || !b.TotalAmount.IsPositive() {
		return false
	}
	today := civilDate(asOf, asOf.Location())
	due := dueDate(b)
	if !due.Before(today) {
		return false
	}
	return b.PaymentDate == nil || civilDate(*b.PaymentDate, asOf.Location()).After(due)
}

// DaysOverdue is the number of calendar days between the due date and asOf.
func DaysOverdue(b domain.Bill, asOf time.Time) int {
	today := civilDate(asOf, asOf.Location())
	return int(today.Sub(dueDate(b)).Hours() / 24)
}

// ListOverdue filters bills to the overdue ones, oldest due date first.
func ListOverdue(bills []domain.Bill, asOf time.Time) []OverdueBill {
	out := make([]OverdueBill, 0)
	for _, b := range bills {
		if IsOverdue(b, asOf) {
			out = append(out, OverdueBill{Bill: b, DaysOverdue: DaysOverdue(b, asOf)})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// civilDate maps t to midnight UTC of its calendar date in loc.
func civilDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// dueDate reads the due date's own calendar day; it is stored as a DATE.
func dueDate(b domain.Bill) time.Time {
	return civilDate(b.DueDate, b.DueDate.Location())
}
