package stations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeChargers(t *testing.T) {
	tests := []struct {
		name string
		rows []Charger
		want []ChargerView
	}{
		{
			name: "distinct networks",
			rows: []Charger{
				{Network: "Network1", IDs: []string{"id1"}},
				{Network: "Network2", IDs: []string{"id2"}},
				{Network: "Network3", IDs: []string{"id3"}},
			},
			want: []ChargerView{
				{Network: "Network1", IDs: []string{"id1"}},
				{Network: "Network2", IDs: []string{"id2"}},
				{Network: "Network3", IDs: []string{"id3"}},
			},
		},
		{
			name: "duplicate rows collapse",
			rows: []Charger{
				{Network: "Network1", IDs: []string{"id1"}},
				{Network: "Network1", IDs: []string{"id1"}},
				{Network: "Network2", IDs: []string{"id2"}},
			},
			want: []ChargerView{
				{Network: "Network1", IDs: []string{"id1"}},
				{Network: "Network2", IDs: []string{"id2"}},
			},
		},
		{
			name: "same id on different networks stays distinct",
			rows: []Charger{
				{Network: "Network1", IDs: []string{"id1"}},
				{Network: "Network2", IDs: []string{"id1"}},
			},
			want: []ChargerView{
				{Network: "Network1", IDs: []string{"id1"}},
				{Network: "Network2", IDs: []string{"id1"}},
			},
		},
		{
			name: "multi id rows split and overlap collapses",
			rows: []Charger{
				{Network: "N1", IDs: []string{"a", "b", "c"}},
				{Network: "N1", IDs: []string{"a", "b"}},
			},
			want: []ChargerView{
				{Network: "N1", IDs: []string{"a"}},
				{Network: "N1", IDs: []string{"b"}},
				{Network: "N1", IDs: []string{"c"}},
			},
		},
		{
			name: "multi id rows across networks",
			rows: []Charger{
				{Network: "Network1", IDs: []string{"id1", "id2"}},
				{Network: "Network2", IDs: []string{"id1", "id2"}},
			},
			want: []ChargerView{
				{Network: "Network1", IDs: []string{"id1"}},
				{Network: "Network1", IDs: []string{"id2"}},
				{Network: "Network2", IDs: []string{"id1"}},
				{Network: "Network2", IDs: []string{"id2"}},
			},
		},
		{
			name: "empty id list becomes nil",
			rows: []Charger{{Network: "Network1", IDs: []string{}}},
			want: []ChargerView{{Network: "Network1"}},
		},
		{
			name: "missing ids becomes nil",
			rows: []Charger{{Network: "Network1"}},
			want: []ChargerView{{Network: "Network1"}},
		},
		{
			name: "nil and empty rows collapse together",
			rows: []Charger{{Network: "Network1"}, {Network: "Network1", IDs: []string{}}},
			want: []ChargerView{{Network: "Network1"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CanonicalizeChargers(tt.rows)
			require.Equal(t, tt.want, got)
			for _, view := range got {
				if len(view.IDs) == 0 {
					assert.Nil(t, view.IDs)
				}
			}
		})
	}
}

func intPtr(v int) *int { return &v }

func TestAverageRating(t *testing.T) {
	tests := []struct {
		name   string
		scores []int
		want   *float64
	}{
		{name: "no ratings", scores: nil, want: nil},
		{name: "positive", scores: []int{1}, want: floatPtr(10)},
		{name: "negative", scores: []int{-1}, want: floatPtr(1)},
		{name: "mixed maps to midpoint", scores: []int{1, -1}, want: floatPtr(5.5)},
		{name: "neutral", scores: []int{0}, want: floatPtr(5.5)},
		{name: "all positive", scores: []int{1, 1, 1, 1, 1}, want: floatPtr(10)},
		{name: "all negative", scores: []int{-1, -1, -1, -1, -1}, want: floatPtr(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comments := make([]Comment, 0, len(tt.scores))
			for _, score := range tt.scores {
				comments = append(comments, Comment{Rating: intPtr(score)})
			}
			assert.Equal(t, tt.want, AverageRating(nil, comments))
		})
	}
}

func TestAverageRating_SkipsUnratedComments(t *testing.T) {
	comments := []Comment{{Rating: intPtr(1)}, {}, {Rating: intPtr(-1)}}
	got := AverageRating(nil, comments)
	require.NotNil(t, got)
	assert.Equal(t, 5.5, *got)
}

func TestAverageRating_OverrideWins(t *testing.T) {
	comments := []Comment{{Rating: intPtr(1)}}

	got := AverageRating(floatPtr(3), comments)
	require.NotNil(t, got)
	assert.Equal(t, 3.0, *got)

	zero := AverageRating(floatPtr(0), comments)
	require.NotNil(t, zero)
	assert.Equal(t, 0.0, *zero, "explicit zero override is a value, not absence")

	assert.Equal(t, floatPtr(10), AverageRating(nil, comments))
}

func floatPtr(v float64) *float64 { return &v }
