// Package maintenance removes duplicate charger rows left behind by
// concurrent or replayed ingests.
package maintenance

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"livecharge-api/internal/observability/metrics"
)

// DuplicateGroup is a set of identical charger rows of one station.
type DuplicateGroup struct {
	StationID int64
	Network   string
	OCPIIDs   []string
	Count     int
}

// Store finds and removes duplicate charger rows.
type Store interface {
	IdentifyDuplicateChargers(ctx context.Context) ([]DuplicateGroup, error)
	// DeleteDuplicateChargers keeps the lowest id of every group.
	DeleteDuplicateChargers(ctx context.Context) (int64, error)
}

// Report summarizes the duplicates currently stored.
type Report struct {
	Groups []DuplicateGroup
}

// Message renders the report for operators.
func (r Report) Message() string {
	if len(r.Groups) == 0 {
		return "No duplicate records found."
	}
	return fmt.Sprintf("Found %d groups of duplicate records.", len(r.Groups))
}

// Redundant is the number of rows a cleanup would delete.
func (r Report) Redundant() int {
	total := 0
	for _, group := range r.Groups {
		if group.Count > 1 {
			total += group.Count - 1
		}
	}
	return total
}

// Result describes one cleanup run.
type Result struct {
	Report  Report
	Deleted int64
	DryRun  bool
}

// Service runs charger maintenance.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService constructs a Service.
func NewService(store Store, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("maintenance service: nil store")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}, nil
}

// Identify reports duplicate groups without changing anything.
func (s *Service) Identify(ctx context.Context) (Report, error) {
	groups, err := s.store.IdentifyDuplicateChargers(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("identify duplicate chargers: %w", err)
	}
	return Report{Groups: groups}, nil
}

// Clean identifies duplicates and, unless dryRun is set, deletes them.
func (s *Service) Clean(ctx context.Context, dryRun bool) (Result, error) {
	report, err := s.Identify(ctx)
	if err != nil {
		return Result{}, err
	}
	result := Result{Report: report, DryRun: dryRun}
	if dryRun || len(report.Groups) == 0 {
		s.logger.Info("charger maintenance checked", zap.String("report", report.Message()), zap.Bool("dry_run", dryRun))
		return result, nil
	}
	deleted, err := s.store.DeleteDuplicateChargers(ctx)
	if err != nil {
		return result, fmt.Errorf("delete duplicate chargers: %w", err)
	}
	result.Deleted = deleted
	metrics.AddDuplicateChargersDeleted(deleted)
	s.logger.Info("charger maintenance cleaned",
		zap.Int("groups", len(report.Groups)),
		zap.Int64("deleted", deleted),
	)
	return result, nil
}
