package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Product is one configured output product.
type Product struct {
	Name               string
	StepSeconds        int
	AllowedProcessTime *float64
	OutputCSVFile      string
}

// Runner drives the monthly aggregation over all configured products. A
// failing product is logged and skipped so one broken series does not stop
// the batch.
type Runner struct {
	Calculator *Calculator
	Workers    int
	Logger     *slog.Logger
}

func (r *Runner) RunMonth(ctx context.Context, products []Product, year, month int) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := r.Workers
	if workers <= 0 {
		workers = 4
	}

	var failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, p := range products {
		p := p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := r.Calculator.CalcMonthly(gctx,
				p.Name, year, month, p.StepSeconds, p.AllowedProcessTime)
			if err != nil {
				failed.Add(1)
				logger.Error("aggregation failed", "product", p.Name, "err", err)
				return nil
			}
			if err := AppendCSV(res, p.OutputCSVFile); err != nil {
				failed.Add(1)
				logger.Error("write csv failed",
					"product", p.Name, "file", p.OutputCSVFile, "err", err)
				return nil
			}
			logger.Info("product aggregated",
				"product", p.Name, "year", year, "month", month,
				"timeslots", res.CountTimeslots,
				"received_dailylog", res.CountReceivedDailylog,
				"received_afd", res.CountReceivedAfd,
				"processed", res.CountProcessedPytroll)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if n := failed.Load(); n > 0 {
		return fmt.Errorf("stats: %d of %d products failed", n, len(products))
	}
	return nil
}
