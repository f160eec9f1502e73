package search

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTier(t *testing.T) {
	testCases := []struct {
		name     string
		record   Record
		term     string
		expected MatchTier
		ok       bool
	}{
		{name: "bill_number_prefix", record: Record{BillNumber: "AB1002345"}, term: "ab100", expected: PrefixMatch, ok: true},
		{name: "customer_id_contains", record: Record{BillNumber: "ZZ1", CustomerID: "XAB100Y"}, term: "ab100", expected: ContainsMatch, ok: true},
		{name: "bill_number_exact_ignores_case", record: Record{BillNumber: "ab100"}, term: "ab100", expected: ExactMatch, ok: true},
		{name: "meter_serial_exact", record: Record{BillNumber: "B-1", MeterSerial: "SM-77"}, term: "sm-77", expected: ExactMatch, ok: true},
		{name: "best_field_wins", record: Record{BillNumber: "XAB100", CustomerID: "AB100"}, term: "ab100", expected: ExactMatch, ok: true},
		{name: "name_only_is_other", record: Record{BillNumber: "B-1", FirstName: "Priya", LastName: "Sharma"}, term: "sharm", expected: OtherMatch, ok: true},
		{name: "no_match", record: Record{BillNumber: "B-1", FirstName: "Priya"}, term: "zz", ok: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tier, ok := Tier(tc.record, tc.term)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.expected, tier)
			}
		})
	}
}

func TestRank(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	records := []Record{
		{BillID: 1, UserID: 1, BillNumber: "ZZ-1", CustomerID: "XAB100Y", CreatedAt: base},
		{BillID: 2, UserID: 2, BillNumber: "AB1002345", CreatedAt: base},
		{BillID: 3, UserID: 1, BillNumber: "AB100", CreatedAt: base.Add(-time.Hour)},
		{BillID: 4, UserID: 2, BillNumber: "AB1009999", CreatedAt: base.Add(time.Hour)},
		{BillID: 5, UserID: 3, BillNumber: "Q-5", FirstName: "Ab100", CreatedAt: base},
		{BillID: 6, UserID: 3, BillNumber: "Q-6", CreatedAt: base},
	}

	hits := Rank(records, "  Ab100 ", nil)

	require.Len(t, hits, 5)
	ids := make([]int64, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.BillID)
	}
	assert.Equal(t, []int64{3, 4, 2, 1, 5}, ids)
	assert.Equal(t, ExactMatch, hits[0].MatchType)
	assert.Equal(t, PrefixMatch, hits[1].MatchType)
	assert.Equal(t, ContainsMatch, hits[3].MatchType)
	assert.Equal(t, OtherMatch, hits[4].MatchType)
}

func TestRank_SameTierAndTimeOrdersByID(t *testing.T) {
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	hits := Rank([]Record{
		{BillID: 1, BillNumber: "AB1", CreatedAt: ts},
		{BillID: 2, BillNumber: "AB2", CreatedAt: ts},
	}, "ab", nil)

	require.Len(t, hits, 2)
	assert.Equal(t, int64(2), hits[0].BillID)
}

func TestRank_Scope(t *testing.T) {
	user := int64(1)
	records := []Record{
		{BillID: 1, UserID: 1, BillNumber: "AB1"},
		{BillID: 2, UserID: 2, BillNumber: "AB2"},
	}

	hits := Rank(records, "ab", &user)

	require.Len(t, hits, 1)
	assert.Equal(t, int64(1), hits[0].BillID)
}

func TestRank_BlankTerm(t *testing.T) {
	hits := Rank([]Record{{BillNumber: "AB1"}}, "   ", nil)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}

func TestHit_JSON(t *testing.T) {
	raw, err := json.Marshal(Hit{Record: Record{BillID: 1, FirstName: "A", LastName: "B"}, FullName: "A B", MatchType: PrefixMatch})
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "prefix_match", out["match_type"])
	assert.Equal(t, "A B", out["full_name"])
}
