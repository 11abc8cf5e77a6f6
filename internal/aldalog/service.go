package aldalog

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"time"

	"satqm/internal/model"
)

// Service combines the alda-log repository and reader: import with
// retention handling and the min-count availability verdict.
type Service struct {
	repo             *Repository
	filenamePatterns []FilenamePattern
	maxAgeDays       int
	logger           *slog.Logger
}

func NewService(repo *Repository, filenamePatterns []FilenamePattern, maxAgeDays int, logger *slog.Logger) *Service {
	if maxAgeDays <= 0 {
		maxAgeDays = 120
	}
	return &Service{
		repo:             repo,
		filenamePatterns: filenamePatterns,
		maxAgeDays:       maxAgeDays,
		logger:           logger,
	}
}

func (s *Service) Repository() *Repository {
	return s.repo
}

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
		s.logger.Info("importing alda log", "file", filename)
	}
	reader, err := NewReader(filename, s.filenamePatterns, s.logger)
	if err != nil {
		return err
	}
	entries, err := reader.Entries()
	if err != nil {
		return err
	}
	if err := s.repo.Add(ctx, entries); err != nil {
		return err
	}
	return s.repo.DeleteOlderThan(ctx, s.maxAgeDays)
}

func (s *Service) RecordsForTimeslot(ctx context.Context, slot time.Time, productName string) ([]model.AldaLogEntry, bool, error) {
	return s.repo.FindByTimeslot(ctx, slot, productName)
}

// Availability reports the per-slot min-count verdict for the product.
func (s *Service) Availability(ctx context.Context, slots []time.Time, productName string) ([]model.SlotAvailability, error) {
	out := make([]model.SlotAvailability, 0, len(slots))
	for _, slot := range slots {
		_, ok, err := s.repo.FindByTimeslot(ctx, slot, productName)
		if err != nil {
			return nil, err
		}
		out = append(out, model.SlotAvailability{Slot: slot, Available: ok})
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
