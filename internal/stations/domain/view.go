package stations

import "encoding/json"

// ChargerView is one atomic charger: a network and at most one identifier.
type ChargerView struct {
	Network string
	IDs     []string
}

// StationView is the externally visible representation of a station.
type StationView struct {
	ID            int64
	Point         Point
	Sources       []SourceRef
	Chargers      []ChargerView
	Events        []Event
	Comments      []Comment
	LastEvent     *Event
	AverageRating *float64
	Geo           json.RawMessage
	Address       *string
	ExternalIDs   []string
}

type chargerKey struct {
	network string
	id      string
	noID    bool
}

// CanonicalizeChargers splits stored charger rows into one view charger per
// identifier. A row without identifiers yields a single charger with nil ids.
// Repeated (network, id) atoms collapse to their first occurrence.
func CanonicalizeChargers(rows []Charger) []ChargerView {
	seen := make(map[chargerKey]struct{})
	out := make([]ChargerView, 0, len(rows))
	add := func(key chargerKey, view ChargerView) {
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, view)
	}
	for _, row := range rows {
		if len(row.IDs) == 0 {
			add(chargerKey{network: row.Network, noID: true}, ChargerView{Network: row.Network})
			continue
		}
		for _, id := range row.IDs {
			add(chargerKey{network: row.Network, id: id}, ChargerView{Network: row.Network, IDs: []string{id}})
		}
	}
	return out
}

// BipolarToScale maps a score in [-1, 1] linearly onto the 1..10 scale.
func BipolarToScale(score int) float64 {
	return (float64(score)+1)/2*9 + 1
}

// AverageRating derives the published rating. An explicit station override
// wins; otherwise present comment scores are mapped onto 1..10 and averaged.
func AverageRating(override *float64, comments []Comment) *float64 {
	if override != nil {
		value := *override
		return &value
	}
	var (
		sum   float64
		count int
	)
	for _, comment := range comments {
		if comment.Rating == nil {
			continue
		}
		sum += BipolarToScale(*comment.Rating)
		count++
	}
	if count == 0 {
		return nil
	}
	avg := sum / float64(count)
	return &avg
}
