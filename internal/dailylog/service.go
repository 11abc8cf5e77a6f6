package dailylog

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"time"

	"satqm/internal/model"
)

// RemarkCounts breaks the records of one timeslot down by remark
// classification. TotalInvalid is everything that is not confirmed.
type RemarkCounts struct {
	Total        int
	Confirmed    int
	NotConfirmed int
	NotSent      int
	Unknown      int
	TotalInvalid int
}

// Service combines the daily-log repository and reader: import with
// retention handling and the availability classification used by the
// statistics accumulator.
type Service struct {
	repo       *Repository
	maxAgeDays int
	logger     *slog.Logger
}

func NewService(repo *Repository, maxAgeDays int, logger *slog.Logger) *Service {
	if maxAgeDays <= 0 {
		maxAgeDays = 120
	}
	return &Service{repo: repo, maxAgeDays: maxAgeDays, logger: logger}
}

func (s *Service) Repository() *Repository {
	return s.repo
}

// ImportFiles imports newest-first so that retention sweeps after each file
// never drop rows a later file would have re-added.
func (s *Service) ImportFiles(ctx context.Context, filenames []string) error {
	sorted := append([]string(nil), filenames...)
	sort.Slice(sorted, func(i, j int) bool {
		return fileModTime(sorted[i]).After(fileModTime(sorted[j]))
	})
	for _, filename := range sorted {
		if err := s.ImportFile(ctx, filename); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) ImportFile(ctx context.Context, filename string) error {
	cutoff, err := s.repo.OldestAllowed(ctx, s.maxAgeDays)
	if err != nil {
		return err
	}
	if cutoff != nil {
		if mod := fileModTime(filename); mod.Before(*cutoff) {
			if s.logger != nil {
				s.logger.Info("skipping file, too old", "file", filename, "modtime", mod, "cutoff", *cutoff)
			}
			return nil
		}
	}
	if s.logger != nil {
		s.logger.Info("importing daily log", "file", filename)
	}
	entries, err := NewReader(filename, s.logger).Entries()
	if err != nil {
		return err
	}
	if err := s.repo.Add(ctx, entries); err != nil {
		return err
	}
	return s.repo.DeleteOlderThan(ctx, s.maxAgeDays)
}

func (s *Service) RemarkCounts(ctx context.Context, slot time.Time, productName string) (RemarkCounts, error) {
	records, err := s.repo.FindByTimeslot(ctx, slot, productName)
	if err != nil {
		return RemarkCounts{}, err
	}
	var c RemarkCounts
	c.Total = len(records)
	for _, rec := range records {
		switch rec.Remark {
		case model.RemarkConfirmed:
			c.Confirmed++
		case model.RemarkNotConfirmed:
			c.NotConfirmed++
		case model.RemarkNotSent:
			c.NotSent++
		default:
			c.Unknown++
		}
	}
	c.TotalInvalid = c.Total - c.Confirmed
	return c, nil
}

// Availability reports, per timeslot, whether the product was delivered:
// at least one record and none of them invalid. A slot with no records at
// all is unavailable.
func (s *Service) Availability(ctx context.Context, slots []time.Time, productName string) ([]model.SlotAvailability, error) {
	out := make([]model.SlotAvailability, 0, len(slots))
	for _, slot := range slots {
		counts, err := s.RemarkCounts(ctx, slot, productName)
		if err != nil {
			return nil, err
		}
		out = append(out, model.SlotAvailability{
			Slot:      slot,
			Available: counts.Total > 0 && counts.TotalInvalid == 0,
		})
	}
	return out, nil
}

func (s *Service) DeleteOldEntries(ctx context.Context) error {
	return s.repo.DeleteOlderThan(ctx, s.maxAgeDays)
}

func fileModTime(filename string) time.Time {
	info, err := os.Stat(filename)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
