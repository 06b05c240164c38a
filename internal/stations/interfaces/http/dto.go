package http

import (
	"encoding/json"
	"strconv"
	"time"

	"livecharge-api/internal/stations/application"
	stations "livecharge-api/internal/stations/domain"
)

type coordinatesDTO struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type sourceDTO struct {
	Source  string `json:"source"`
	InnerID int64  `json:"inner_id"`
}

type chargerDTO struct {
	Network string   `json:"network"`
	OCPIIDs []string `json:"ocpi_ids"`
}

type eventDTO struct {
	ChargedAt time.Time `json:"charged_at"`
	Source    string    `json:"source"`
	Name      *string   `json:"name"`
	IsProblem *bool     `json:"is_problem"`
}

type commentDTO struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Source    string    `json:"source"`
	UserName  *string   `json:"user_name"`
	Rating    *int      `json:"rating"`
}

type addStationDTO struct {
	Coordinates *coordinatesDTO `json:"coordinates"`
	Source      *sourceDTO      `json:"source"`
	Chargers    []chargerDTO    `json:"chargers"`
	Events      []eventDTO      `json:"events"`
	Comments    []commentDTO    `json:"comments"`
	Geo         json.RawMessage `json:"geo"`
	Rating      *float64        `json:"rating"`
	Address     *string         `json:"address"`
	OCPIIDs     []string        `json:"ocpi_ids"`
}

type addStationsRequest struct {
	Stations []addStationDTO `json:"stations"`
}

type mergeResultDTO struct {
	StationID        int64  `json:"station_id"`
	Resolution       string `json:"resolution"`
	EventsInserted   int    `json:"events_inserted"`
	CommentsInserted int    `json:"comments_inserted"`
	ChargersInserted int    `json:"chargers_inserted"`
}

type addStationsResponse struct {
	Results []mergeResultDTO `json:"results"`
}

type stationDTO struct {
	ID            int64           `json:"id"`
	Coordinates   coordinatesDTO  `json:"coordinates"`
	Sources       []sourceDTO     `json:"sources"`
	Chargers      []chargerDTO    `json:"chargers"`
	Events        []eventDTO      `json:"events"`
	Comments      []commentDTO    `json:"comments"`
	LastEvent     *eventDTO       `json:"last_event"`
	AverageRating *float64        `json:"average_rating"`
	Geo           json.RawMessage `json:"geo"`
	Address       *string         `json:"address"`
	OCPIIDs       []string        `json:"ocpi_ids"`
}

type stationsByAreaResponse struct {
	Stations []stationDTO `json:"stations"`
}

type stationSourcesDTO struct {
	StationID int64       `json:"station_id"`
	Sources   []sourceDTO `json:"sources"`
}

func (d addStationDTO) toObservation(index int) (stations.Observation, error) {
	if d.Coordinates == nil {
		return stations.Observation{}, fieldError(index, "coordinates", "required")
	}
	if d.Source == nil {
		return stations.Observation{}, fieldError(index, "source", "required")
	}
	obs := stations.Observation{
		Point:       stations.Point{Lat: d.Coordinates.Lat, Lon: d.Coordinates.Lon},
		Source:      stations.SourceRef{Source: d.Source.Source, InnerID: d.Source.InnerID},
		Address:     d.Address,
		ExternalIDs: stations.NormalizeIDs(d.OCPIIDs),
		Rating:      d.Rating,
	}
	if len(d.Geo) > 0 && string(d.Geo) != "null" {
		obs.Geo = d.Geo
	}
	for _, charger := range d.Chargers {
		obs.Chargers = append(obs.Chargers, stations.Charger{Network: charger.Network, IDs: stations.NormalizeIDs(charger.OCPIIDs)})
	}
	for _, event := range d.Events {
		obs.Events = append(obs.Events, stations.Event{
			Source:    event.Source,
			ChargedAt: event.ChargedAt.UTC(),
			Name:      event.Name,
			IsProblem: event.IsProblem,
		})
	}
	for _, comment := range d.Comments {
		obs.Comments = append(obs.Comments, stations.Comment{
			Source:    comment.Source,
			Text:      comment.Text,
			CreatedAt: comment.CreatedAt.UTC(),
			UserName:  comment.UserName,
			Rating:    comment.Rating,
		})
	}
	return obs, nil
}

func fieldError(index int, field, reason string) error {
	return &stations.ValidationError{Field: "stations[" + strconv.Itoa(index) + "]." + field, Reason: reason}
}

func toStationDTO(view stations.StationView) stationDTO {
	dto := stationDTO{
		ID:            view.ID,
		Coordinates:   coordinatesDTO{Lat: view.Point.Lat, Lon: view.Point.Lon},
		Sources:       make([]sourceDTO, 0, len(view.Sources)),
		Chargers:      make([]chargerDTO, 0, len(view.Chargers)),
		Events:        make([]eventDTO, 0, len(view.Events)),
		Comments:      make([]commentDTO, 0, len(view.Comments)),
		AverageRating: view.AverageRating,
		Geo:           view.Geo,
		Address:       view.Address,
		OCPIIDs:       view.ExternalIDs,
	}
	for _, source := range view.Sources {
		dto.Sources = append(dto.Sources, sourceDTO{Source: source.Source, InnerID: source.InnerID})
	}
	for _, charger := range view.Chargers {
		dto.Chargers = append(dto.Chargers, chargerDTO{Network: charger.Network, OCPIIDs: charger.IDs})
	}
	for _, event := range view.Events {
		dto.Events = append(dto.Events, toEventDTO(event))
	}
	for _, comment := range view.Comments {
		dto.Comments = append(dto.Comments, commentDTO{
			Text:      comment.Text,
			CreatedAt: comment.CreatedAt,
			Source:    comment.Source,
			UserName:  comment.UserName,
			Rating:    comment.Rating,
		})
	}
	if view.LastEvent != nil {
		last := toEventDTO(*view.LastEvent)
		dto.LastEvent = &last
	}
	return dto
}

func toEventDTO(event stations.Event) eventDTO {
	return eventDTO{ChargedAt: event.ChargedAt, Source: event.Source, Name: event.Name, IsProblem: event.IsProblem}
}

func toMergeResultDTOs(results []application.MergeResult) []mergeResultDTO {
	out := make([]mergeResultDTO, 0, len(results))
	for _, result := range results {
		out = append(out, mergeResultDTO{
			StationID:        result.StationID,
			Resolution:       string(result.Resolution),
			EventsInserted:   result.EventsInserted,
			CommentsInserted: result.CommentsInserted,
			ChargersInserted: result.ChargersInserted,
		})
	}
	return out
}

func toStationSourcesDTOs(list []stations.StationSources) []stationSourcesDTO {
	out := make([]stationSourcesDTO, 0, len(list))
	for _, item := range list {
		sources := make([]sourceDTO, 0, len(item.Sources))
		for _, source := range item.Sources {
			sources = append(sources, sourceDTO{Source: source.Source, InnerID: source.InnerID})
		}
		out = append(out, stationSourcesDTO{StationID: item.StationID, Sources: sources})
	}
	return out
}
