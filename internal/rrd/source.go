package rrd

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"satqm/internal/model"
)

// DirSource resolves a product's series by file naming convention:
// `<product>.rrd` under each configured directory. Several directories act
// as shards of one series; the first shard holding a slot wins.
type DirSource struct {
	Dirs   []string
	Logger *slog.Logger
}

// Samples returns one sample per requested slot. A product with no series
// file in any directory is reported all-absent, not as an error.
func (s *DirSource) Samples(ctx context.Context, productName string, slots []time.Time) ([]model.Sample, error) {
	var dbs []*Database
	defer func() {
		for _, d := range dbs {
			d.Close()
		}
	}()
	for _, dir := range s.Dirs {
		path := filepath.Join(dir, productName+".rrd")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		d, err := Open(ctx, path)
		if err != nil {
			return nil, err
		}
		dbs = append(dbs, d)
	}
	if len(dbs) == 0 {
		s.logger().Warn("no series file found", "product", productName, "dirs", s.Dirs)
	}
	return MultiFetchSlots(ctx, dbs, slots)
}

func (s *DirSource) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
