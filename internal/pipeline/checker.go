package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"satqm/internal/model"
	"satqm/internal/rrd"
)

type Status int

const (
	StatusOK       Status = 0
	StatusWarning  Status = 1
	StatusCritical Status = 2
	StatusUnknown  Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWarning:
		return "WARNING"
	case StatusCritical:
		return "CRITICAL"
	}
	return "UNKNOWN"
}

// AvailabilitySource reports provider-side outages that explain a stale
// product.
type AvailabilitySource interface {
	AvailabilityError(ctx context.Context, slot time.Time, productName string) (model.Impact, error)
}

// Checker inspects the series files in a directory and classifies each
// product as fresh, stale or newly appeared. Stale products covered by an
// outage announcement do not raise an alarm.
type Checker struct {
	Dir             string
	MaxAge          time.Duration // 0 derives the limit from MaxAgeIntervals
	MaxAgeIntervals float64
	Availability    AvailabilitySource
	Logger          *slog.Logger
	Now             func() time.Time
}

type Result struct {
	Code    Status
	Message string

	All        []string
	Stale      []string
	New        []string
	Suppressed []string
}

func (c *Checker) Check(ctx context.Context) (Result, error) {
	now := time.Now().UTC
	if c.Now != nil {
		now = c.Now
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	intervals := c.MaxAgeIntervals
	if intervals <= 0 {
		intervals = 2.0
	}

	files, err := filepath.Glob(filepath.Join(c.Dir, "*.rrd"))
	if err != nil {
		return Result{}, err
	}
	sort.Strings(files)

	var res Result
	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".rrd")
		db, err := rrd.Open(ctx, file)
		if err != nil {
			return Result{}, fmt.Errorf("pipeline: open %s: %w", file, err)
		}
		stale, fresh, err := c.checkProduct(ctx, db, name, now(), intervals)
		db.Close()
		if err != nil {
			return Result{}, err
		}
		res.All = append(res.All, name)
		switch {
		case stale == staleSuppressed:
			res.Suppressed = append(res.Suppressed, name)
		case stale == staleAlarm:
			res.Stale = append(res.Stale, name)
		case fresh:
			res.New = append(res.New, name)
		}
	}

	res.Code, res.Message = summarize(res)
	logger.Info("product check finished",
		"products", len(res.All), "stale", len(res.Stale),
		"new", len(res.New), "suppressed", len(res.Suppressed), "status", res.Code.String())
	return res, nil
}

type staleness int

const (
	staleNo staleness = iota
	staleAlarm
	staleSuppressed
)

// checkProduct decides staleness against the allowed age and, for a fresh
// product, whether it only just produced its first slot.
func (c *Checker) checkProduct(ctx context.Context, db *rrd.Database, name string, now time.Time, intervals float64) (staleness, bool, error) {
	maxAge := c.MaxAge
	if maxAge <= 0 {
		maxAge = time.Duration(intervals * float64(db.Step()))
	}
	refTime := now.Add(-maxAge)

	last, ok, err := db.Last(ctx)
	if err != nil {
		return staleNo, false, err
	}
	if !ok || last.Before(refTime) {
		if c.Availability != nil {
			impact, err := c.Availability.AvailabilityError(ctx, refTime, name)
			if err != nil {
				return staleNo, false, err
			}
			if impact != "" {
				return staleSuppressed, false, nil
			}
		}
		return staleAlarm, false, nil
	}

	// newly appeared: the latest slot has a value while the two before do not
	step := db.Step()
	samples, err := rrd.FetchSlots(ctx, db, []time.Time{
		last.Add(-2 * step), last.Add(-step), last,
	})
	if err != nil {
		return staleNo, false, err
	}
	isNew := samples[2].Latency != nil &&
		samples[0].Latency == nil && samples[1].Latency == nil
	return staleNo, isNew, nil
}

func summarize(res Result) (Status, string) {
	var extra string
	if len(res.Suppressed) > 0 {
		extra = fmt.Sprintf(
			"\n(following products missing but matching announcement found: %s)",
			strings.Join(res.Suppressed, ", "))
	}
	switch {
	case len(res.All) == 0:
		return StatusCritical, "no products generated"
	case len(res.Stale) > 0:
		return StatusCritical, fmt.Sprintf(
			"recently created products missing or too old\n%s%s",
			strings.Join(res.Stale, ", "), extra)
	case len(res.New) > 0:
		return StatusOK, fmt.Sprintf("new products found\n%s%s",
			strings.Join(res.New, ", "), extra)
	}
	return StatusOK, fmt.Sprintf("%d products generated%s", len(res.All), extra)
}
