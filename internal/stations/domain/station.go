package stations

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// Station is the canonical physical charging location.
type Station struct {
	ID          int64
	Point       Point
	Geo         json.RawMessage
	Address     *string
	ExternalIDs []string
	Rating      *float64
}

// SourceIdentity binds an external source's own numbering to a station.
type SourceIdentity struct {
	StationID int64
	Source    string
	InnerID   int64
}

// SourceRef is the (source, inner id) pair carried by an observation.
type SourceRef struct {
	Source  string
	InnerID int64
}

// Charger is a stored charger row; it may bundle several identifiers.
type Charger struct {
	StationID int64
	Network   string
	IDs       []string
}

// Event is a reported charging or visit occurrence.
type Event struct {
	StationID int64
	Source    string
	ChargedAt time.Time
	Name      *string
	IsProblem *bool
}

// Comment is a user comment reported by a source.
type Comment struct {
	StationID int64
	Source    string
	Text      string
	CreatedAt time.Time
	UserName  *string
	Rating    *int
}

// StationRecord is a station row as returned by area and source lookups,
// with its source identities aggregated.
type StationRecord struct {
	ID          int64
	Coordinates json.RawMessage
	Geo         json.RawMessage
	Address     *string
	ExternalIDs []string
	Rating      *float64
	Sources     []SourceIdentity
}

// StationSources lists the source identities of one station.
type StationSources struct {
	StationID int64
	Sources   []SourceIdentity
}

// Observation is one station report from a data source.
type Observation struct {
	Point       Point
	Source      SourceRef
	Chargers    []Charger
	Events      []Event
	Comments    []Comment
	Geo         json.RawMessage
	Address     *string
	ExternalIDs []string
	Rating      *float64
}

// Comment ratings are bipolar scores.
const (
	MinCommentScore = -1
	MaxCommentScore = 1
)

// Validate checks an observation before it reaches the store.
func (o Observation) Validate() error {
	if err := o.Point.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(o.Source.Source) == "" {
		return invalid("source.source", "required")
	}
	if o.Rating != nil && (math.IsNaN(*o.Rating) || math.IsInf(*o.Rating, 0)) {
		return invalid("rating", "must be a finite number")
	}
	if len(o.Geo) > 0 && !json.Valid(o.Geo) {
		return invalid("geo", "must be valid json")
	}
	for _, charger := range o.Chargers {
		if strings.TrimSpace(charger.Network) == "" {
			return invalid("chargers.network", "required")
		}
	}
	for _, event := range o.Events {
		if strings.TrimSpace(event.Source) == "" {
			return invalid("events.source", "required")
		}
		if event.ChargedAt.IsZero() {
			return invalid("events.charged_at", "required")
		}
	}
	for _, comment := range o.Comments {
		if strings.TrimSpace(comment.Source) == "" {
			return invalid("comments.source", "required")
		}
		if comment.CreatedAt.IsZero() {
			return invalid("comments.created_at", "required")
		}
		if comment.Rating != nil && (*comment.Rating < MinCommentScore || *comment.Rating > MaxCommentScore) {
			return invalid("comments.rating", "must be within [-1, 1]")
		}
	}
	return nil
}

// NewStation builds the station an unresolved observation creates.
func (o Observation) NewStation() Station {
	return Station{
		Point:       o.Point,
		Geo:         o.Geo,
		Address:     o.Address,
		ExternalIDs: NormalizeIDs(o.ExternalIDs),
		Rating:      o.Rating,
	}
}

// NormalizeIDs returns nil for an empty identifier list; nil is the only
// "no ids" representation.
func NormalizeIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}
