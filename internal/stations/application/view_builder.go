package application

import (
	"fmt"

	stations "livecharge-api/internal/stations/domain"
)

// BuildStationView assembles the externally visible station from its raw row
// and sub-entity rows. Events and comments are expected newest first.
func BuildStationView(row stations.StationRecord, chargers []stations.Charger, events []stations.Event, comments []stations.Comment) (stations.StationView, error) {
	point, err := stations.PointFromGeoJSON(row.Coordinates)
	if err != nil {
		return stations.StationView{}, fmt.Errorf("station %d coordinates: %w", row.ID, err)
	}

	sources := make([]stations.SourceRef, 0, len(row.Sources))
	for _, source := range row.Sources {
		sources = append(sources, stations.SourceRef{Source: source.Source, InnerID: source.InnerID})
	}

	view := stations.StationView{
		ID:            row.ID,
		Point:         point,
		Sources:       sources,
		Chargers:      stations.CanonicalizeChargers(chargers),
		Events:        nonNilEvents(events),
		Comments:      nonNilComments(comments),
		AverageRating: stations.AverageRating(row.Rating, comments),
		Geo:           row.Geo,
		Address:       row.Address,
		ExternalIDs:   stations.NormalizeIDs(row.ExternalIDs),
	}
	if len(view.Events) > 0 {
		last := view.Events[0]
		view.LastEvent = &last
	}
	return view, nil
}

func nonNilEvents(events []stations.Event) []stations.Event {
	if events == nil {
		return []stations.Event{}
	}
	return events
}

func nonNilComments(comments []stations.Comment) []stations.Comment {
	if comments == nil {
		return []stations.Comment{}
	}
	return comments
}
