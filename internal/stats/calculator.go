// Package stats aggregates the three delivery stages of one product month
// into a quality-management record: broadcast confirmation logs, terrestrial
// transfer logs and the processing-chain completion series.
package stats

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"satqm/internal/model"
	"satqm/internal/timeslot"
)

// DailylogSource reports broadcast confirmation per timeslot.
type DailylogSource interface {
	Availability(ctx context.Context, slots []time.Time, productName string) ([]model.SlotAvailability, error)
}

// AldalogSource reports terrestrial transfer per timeslot.
type AldalogSource interface {
	Availability(ctx context.Context, slots []time.Time, productName string) ([]model.SlotAvailability, error)
}

// PipelineSource reports processing completion and latency per timeslot.
type PipelineSource interface {
	Samples(ctx context.Context, productName string, slots []time.Time) ([]model.Sample, error)
}

type Calculator struct {
	Dailylog DailylogSource
	Aldalog  AldalogSource
	Pipeline PipelineSource
}

// Request describes one aggregation run over a fixed slot grid.
type Request struct {
	Product            string
	Timeslots          []time.Time
	AllowedProcessTime *float64
}

// Calc queries the three stages concurrently and folds the per-slot results
// into the summary. Derived fields stay nil when their denominator or input
// is missing.
func (c *Calculator) Calc(ctx context.Context, req Request) (model.QmStats, error) {
	var (
		daily    []model.SlotAvailability
		alda     []model.SlotAvailability
		pipeline []model.Sample
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		daily, err = c.Dailylog.Availability(gctx, req.Timeslots, req.Product)
		if err != nil {
			return fmt.Errorf("dailylog availability: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		alda, err = c.Aldalog.Availability(gctx, req.Timeslots, req.Product)
		if err != nil {
			return fmt.Errorf("aldalog availability: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		pipeline, err = c.Pipeline.Samples(gctx, req.Product, req.Timeslots)
		if err != nil {
			return fmt.Errorf("pipeline samples: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.QmStats{}, err
	}

	res := model.QmStats{
		CountTimeslots:     len(req.Timeslots),
		ProductName:        req.Product,
		AllowedProcessTime: req.AllowedProcessTime,
	}

	for _, a := range daily {
		if a.Available {
			res.CountReceivedDailylog++
		} else {
			res.CountFailedDailylog++
		}
	}
	for _, a := range alda {
		if a.Available {
			res.CountReceivedAfd++
		} else {
			res.CountFailedAfd++
		}
	}

	var latencySum float64
	var exceeded int
	for _, s := range pipeline {
		if s.Latency == nil {
			res.CountFailedPytroll++
			continue
		}
		res.CountProcessedPytroll++
		latencySum += *s.Latency
		if req.AllowedProcessTime != nil && *s.Latency > *req.AllowedProcessTime {
			exceeded++
		}
	}
	if res.CountReceivedAfd > 0 {
		rel := float64(res.CountProcessedPytroll) / float64(res.CountReceivedAfd)
		res.CountProcessedPytrollRelAfd = &rel
	}
	if res.CountProcessedPytroll > 0 {
		mean := latencySum / float64(res.CountProcessedPytroll)
		res.MeanProcessTimePytroll = &mean
	}
	if req.AllowedProcessTime != nil {
		res.ProcessTimePytrollExceeded = &exceeded
	}
	return res, nil
}

// CalcMonthly aggregates one calendar month on the product's slot grid and
// attaches the reporting parameters.
func (c *Calculator) CalcMonthly(ctx context.Context, product string, year, month, stepSeconds int, allowed *float64) (model.QmStats, error) {
	slots, err := timeslot.MonthSlots(year, month, stepSeconds)
	if err != nil {
		return model.QmStats{}, err
	}
	res, err := c.Calc(ctx, Request{
		Product:            product,
		Timeslots:          slots,
		AllowedProcessTime: allowed,
	})
	if err != nil {
		return model.QmStats{}, err
	}
	res.PeriodYear = year
	res.PeriodMonth = month
	res.Steps = stepSeconds
	return res, nil
}
