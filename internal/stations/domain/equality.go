package stations

import (
	"sort"
	"time"
)

// DuplicateWindow is the clock skew tolerated between two reports of the same
// event or comment.
const DuplicateWindow = 60 * time.Second

func withinWindow(a, b time.Time) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff < DuplicateWindow
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalBoolPtr(a, b *bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// EventsEqual reports whether two events describe the same occurrence.
func EventsEqual(a, b Event) bool {
	return a.Source == b.Source &&
		equalStringPtr(a.Name, b.Name) &&
		equalBoolPtr(a.IsProblem, b.IsProblem) &&
		withinWindow(a.ChargedAt, b.ChargedAt)
}

// CommentsEqual reports whether two comments are the same report. Rating is
// not compared.
func CommentsEqual(a, b Comment) bool {
	return a.Source == b.Source &&
		a.Text == b.Text &&
		equalStringPtr(a.UserName, b.UserName) &&
		withinWindow(a.CreatedAt, b.CreatedAt)
}

// ChargersEqual reports whether two charger rows carry the same network and
// the same identifier set. Nil and empty id lists are the same state.
func ChargersEqual(a, b Charger) bool {
	if a.Network != b.Network {
		return false
	}
	if len(a.IDs) == 0 || len(b.IDs) == 0 {
		return len(a.IDs) == 0 && len(b.IDs) == 0
	}
	if len(a.IDs) != len(b.IDs) {
		return false
	}
	left := sortedCopy(a.IDs)
	right := sortedCopy(b.IDs)
	for i := range left {
		if left[i] != right[i] {
			return false
		}
	}
	return true
}

func sortedCopy(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	sort.Strings(out)
	return out
}

// FilterNew returns the incoming items that match no existing item and no
// earlier kept incoming item, preserving incoming order.
func FilterNew[T any](existing, incoming []T, equal func(a, b T) bool) []T {
	var out []T
	for _, candidate := range incoming {
		if containsEqual(existing, candidate, equal) || containsEqual(out, candidate, equal) {
			continue
		}
		out = append(out, candidate)
	}
	return out
}

func containsEqual[T any](items []T, candidate T, equal func(a, b T) bool) bool {
	for _, item := range items {
		if equal(item, candidate) {
			return true
		}
	}
	return false
}

// Delta is the part of an observation selected for persistence.
type Delta struct {
	Events   []Event
	Comments []Comment
	Chargers []Charger
}

// Empty reports whether nothing needs to be written.
func (d Delta) Empty() bool {
	return len(d.Events) == 0 && len(d.Comments) == 0 && len(d.Chargers) == 0
}

// ComputeDelta filters an incoming payload against stored sub-entities.
func ComputeDelta(stored Delta, incoming Delta) Delta {
	return Delta{
		Events:   FilterNew(stored.Events, incoming.Events, EventsEqual),
		Comments: FilterNew(stored.Comments, incoming.Comments, CommentsEqual),
		Chargers: FilterNew(stored.Chargers, incoming.Chargers, ChargersEqual),
	}
}
