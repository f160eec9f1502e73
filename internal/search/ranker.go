// Package search ranks bill search candidates by how closely an identifier
// matches the term.
package search

import (
	"sort"
	"strings"
	"time"
)

type MatchTier int

const (
	ExactMatch MatchTier = iota + 1
	PrefixMatch
	ContainsMatch
	OtherMatch
)

func (t MatchTier) String() string {
	switch t {
	case ExactMatch:
		return "exact_match"
	case PrefixMatch:
		return "prefix_match"
	case ContainsMatch:
		return "contains_match"
	case OtherMatch:
		return "other_match"
	}
	return "no_match"
}

func (t MatchTier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// Record is a bill joined with its customer and meter.
type Record struct {
	BillID      int64     `db:"bill_id" json:"bill_id"`
	BillNumber  string    `db:"bill_number" json:"bill_number"`
	UserID      int64     `db:"user_id" json:"user_id"`
	CustomerID  string    `db:"customer_id" json:"customer_id"`
	FirstName   string    `db:"first_name" json:"first_name"`
	LastName    string    `db:"last_name" json:"last_name"`
	MeterSerial string    `db:"meter_serial_number" json:"meter_serial_number"`
	CompanyName string    `db:"company_name" json:"company_name"`
	BillStatus  string    `db:"bill_status" json:"bill_status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

func (r Record) FullName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

type Hit struct {
	Record
	FullName  string    `json:"full_name"`
	MatchType MatchTier `json:"match_type"`
}

// Tier classifies a record against a lower-cased, trimmed term. Identifier
// fields are graded exact, prefix or contains; a record that only matches on
// a name is OtherMatch. ok is false when nothing matches.
func Tier(r Record, term string) (tier MatchTier, ok bool) {
	best := MatchTier(0)
	for _, field := range []string{r.BillNumber, r.CustomerID, r.MeterSerial} {
		t := grade(strings.ToLower(field), term)
		if t != 0 && (best == 0 || t < best) {
			best = t
		}
	}
	if best != 0 {
		return best, true
	}
	if strings.Contains(strings.ToLower(r.FirstName), term) || strings.Contains(strings.ToLower(r.LastName), term) {
		return OtherMatch, true
	}
	return 0, false
}

func grade(field, term string) MatchTier {
	switch {
	case field == term:
		return ExactMatch
	case strings.HasPrefix(field, term):
		return PrefixMatch
	case strings.Contains(field, term):
		return ContainsMatch
	}
	return 0
}

// Rank filters records to those matching term (case-insensitive substring) and
// orders them by tier, then newest first, then bill ID descending. A non-nil
// scopeUserID restricts hits to that user. A blank term matches nothing.
func Rank(records []Record, term string, scopeUserID *int64) []Hit {
	term = strings.ToLower(strings.TrimSpace(term))
	hits := make([]Hit, 0)
	if term == "" {
		return hits
	}
	for _, r := range records {
		if scopeUserID != nil && r.UserID != *scopeUserID {
			continue
		}
		if tier, ok := Tier(r, term); ok {
			hits = append(hits, Hit{Record: r, FullName: r.FullName(), MatchType: tier})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.MatchType != b.MatchType {
			return a.MatchType < b.MatchType
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.BillID > b.BillID
	})
	return hits
}
