package incidents

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"satqm/internal/model"
)

// Service answers whether provider-side outages explain missing data for a
// product at a timeslot.
type Service struct {
	repo   *Repository
	reader *Reader
	logger *slog.Logger
}

func NewService(repo *Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		reader: &Reader{Logger: logger},
		logger: logger,
	}
}

func (s *Service) ImportFile(ctx context.Context, path string) error {
	anns, err := s.reader.ReadFile(path)
	if err != nil {
		return err
	}
	if err := s.repo.Add(ctx, anns); err != nil {
		return err
	}
	s.logger.Info("imported announcements", "file", path, "count", len(anns))
	return nil
}

// WorstAnnouncement returns the announcement with the most severe impact in
// effect for the product at the slot, or nil when none applies. Ties keep
// the first announcement in store order.
func (s *Service) WorstAnnouncement(ctx context.Context, slot time.Time, productName string) (*model.Announcement, error) {
	anns, err := s.repo.FindByTimeslot(ctx, slot, productName)
	if err != nil {
		return nil, err
	}
	if len(anns) == 0 {
		return nil, nil
	}
	sort.SliceStable(anns, func(i, j int) bool {
		return anns[i].Impact.Priority() < anns[j].Impact.Priority()
	})
	return &anns[0], nil
}

// AvailabilityError reports the impact of the worst applicable announcement,
// or the empty impact when data should have been available.
func (s *Service) AvailabilityError(ctx context.Context, slot time.Time, productName string) (model.Impact, error) {
	ann, err := s.WorstAnnouncement(ctx, slot, productName)
	if err != nil {
		return "", err
	}
	if ann == nil {
		return "", nil
	}
	return ann.Impact, nil
}
