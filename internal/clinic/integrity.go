package clinic

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling-core/internal/numbering"
)

type Overlap struct {
	Date  string
	First uuid.UUID
	Other uuid.UUID
}

type IntegrityReport struct {
	Patients         int
	DuplicateNumbers map[string][]uuid.UUID
	Overlaps         []Overlap
	OutOfHours       []uuid.UUID
}

func (r *IntegrityReport) OK() bool {
	return len(r.DuplicateNumbers) == 0 && len(r.Overlaps) == 0 && len(r.OutOfHours) == 0
}

// CheckIntegrity looks for patients sharing a number and, for each of the
// given days, overlapping non-exempt appointments and appointments outside
// business hours.
func (s *Service) CheckIntegrity(ctx context.Context, days []time.Time) (*IntegrityReport, error) {
	patients, err := s.repo.ListPatients(ctx)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}

	report := &IntegrityReport{
		Patients:         len(patients),
		DuplicateNumbers: make(map[string][]uuid.UUID),
	}

	holders := make(map[string][]uuid.UUID)
	for _, p := range patients {
		if _, ok := numbering.ParseNumber(p.Number); !ok {
			continue
		}
		holders[p.Number] = append(holders[p.Number], p.ID)
	}
	for number, ids := range holders {
		if len(ids) > 1 {
			report.DuplicateNumbers[number] = ids
		}
	}

	for _, date := range days {
		day, err := s.timeline.Load(ctx, date)
		if err != nil {
			return nil, err
		}
		key := s.timeline.DateKey(date)

		for _, pair := range day.Conflicts() {
			report.Overlaps = append(report.Overlaps, Overlap{Date: key, First: pair[0].ID, Other: pair[1].ID})
		}
		for _, a := range day.All() {
			if err := s.resolver.ValidateWindow(a.Start, a.End()); err != nil {
				report.OutOfHours = append(report.OutOfHours, a.ID)
			}
		}
	}

	sort.Slice(report.Overlaps, func(i, j int) bool {
		return report.Overlaps[i].Date < report.Overlaps[j].Date
	})

	return report, nil
}

// PoolState bootstraps a fresh pool from the store and returns its state,
// without touching the service's own pool.
func (s *Service) PoolState(ctx context.Context) (map[numbering.Category]numbering.PoolState, error) {
	patients, err := s.repo.ListPatients(ctx)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}

	numbers := make([]string, 0, len(patients))
	for _, p := range patients {
		numbers = append(numbers, p.Number)
	}

	pool := numbering.NewPool()
	numbering.NewLifecycle(pool).Bootstrap(numbers)
	return pool.Snapshot(), nil
}
