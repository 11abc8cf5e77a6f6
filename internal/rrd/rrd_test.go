package rrd

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"satqm/internal/timeslot"
)

func createTestDB(t *testing.T, step time.Duration) (*Database, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "product.rrd")
	d, err := Create(context.Background(), path, step, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d, path
}

func TestUpdateAndFetchSlots(t *testing.T) {
	ctx := context.Background()
	d, _ := createTestDB(t, 15*time.Minute)

	slots, err := timeslot.MonthSlots(2016, 12, 900)
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	// fill everything except 4:00-4:45 and 8:00-8:45 on december 4th
	gapStart1 := time.Date(2016, 12, 4, 4, 0, 0, 0, time.UTC)
	gapStart2 := time.Date(2016, 12, 4, 8, 0, 0, 0, time.UTC)
	inGap := func(ts time.Time) bool {
		return (!ts.Before(gapStart1) && ts.Before(gapStart1.Add(time.Hour))) ||
			(!ts.Before(gapStart2) && ts.Before(gapStart2.Add(time.Hour)))
	}
	day := time.Date(2016, 12, 4, 0, 0, 0, 0, time.UTC)
	var daySlots []time.Time
	for _, ts := range slots {
		if ts.Year() == 2016 && ts.Month() == 12 && ts.Day() == 4 {
			daySlots = append(daySlots, ts)
		}
	}
	if len(daySlots) != 96 {
		t.Fatalf("expected 96 slots on dec 4, got %d", len(daySlots))
	}
	for _, ts := range daySlots {
		if inGap(ts) {
			continue
		}
		if err := d.Update(ctx, ts, 120); err != nil {
			t.Fatalf("update %s: %v", ts, err)
		}
	}

	samples, err := FetchSlots(ctx, d, daySlots)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(samples) != 96 {
		t.Fatalf("expected 96 samples, got %d", len(samples))
	}
	absent := 0
	for _, s := range samples {
		if s.Latency == nil {
			absent++
		} else if *s.Latency != 120 {
			t.Fatalf("latency at %s: %f", s.Slot, *s.Latency)
		}
	}
	if absent != 8 {
		t.Fatalf("expected 8 absent slots, got %d", absent)
	}
	// the first slot of the day must align exactly, not shift by one step
	if !samples[0].Slot.Equal(day) || samples[0].Latency == nil {
		t.Fatalf("first slot misaligned: %+v", samples[0])
	}
}

func TestUpdateKeepsMaximumPerBucket(t *testing.T) {
	ctx := context.Background()
	d, _ := createTestDB(t, 15*time.Minute)
	slot := time.Date(2016, 12, 4, 12, 0, 0, 0, time.UTC)

	if err := d.Update(ctx, slot, 100); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := d.Update(ctx, slot, 50); err != nil {
		t.Fatalf("update: %v", err)
	}
	samples, err := FetchSlots(ctx, d, []time.Time{slot})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if samples[0].Latency == nil || *samples[0].Latency != 100 {
		t.Fatalf("expected max latency 100, got %+v", samples[0])
	}
}

func TestFetchSlotsEmptyDatabase(t *testing.T) {
	ctx := context.Background()
	d, _ := createTestDB(t, 15*time.Minute)
	slots := []time.Time{
		time.Date(2016, 12, 4, 0, 0, 0, 0, time.UTC),
		time.Date(2016, 12, 4, 0, 15, 0, 0, time.UTC),
	}
	samples, err := FetchSlots(ctx, d, slots)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	for _, s := range samples {
		if s.Latency != nil {
			t.Fatalf("empty database must yield absent slots: %+v", s)
		}
	}
}

func TestOpenMissingDatabase(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "nope.rrd"))
	if err == nil {
		t.Fatalf("expected error for missing database")
	}
}

func TestLastAndStep(t *testing.T) {
	ctx := context.Background()
	d, path := createTestDB(t, 15*time.Minute)

	if _, ok, err := d.Last(ctx); err != nil || ok {
		t.Fatalf("empty database: ok=%v err=%v", ok, err)
	}
	newest := time.Date(2016, 12, 4, 10, 30, 0, 0, time.UTC)
	for _, ts := range []time.Time{newest.Add(-30 * time.Minute), newest} {
		if err := d.Update(ctx, ts, 60); err != nil {
			t.Fatalf("update: %v", err)
		}
	}
	last, ok, err := d.Last(ctx)
	if err != nil || !ok {
		t.Fatalf("last: ok=%v err=%v", ok, err)
	}
	if !last.Equal(newest) {
		t.Fatalf("last: %s", last)
	}
	d.Close()

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer reopened.Close()
	if reopened.Step() != 15*time.Minute {
		t.Fatalf("step after reopen: %s", reopened.Step())
	}
}

func TestMultiFetchSlotsFirstShardWins(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	slot1 := time.Date(2016, 12, 4, 0, 0, 0, 0, time.UTC)
	slot2 := slot1.Add(15 * time.Minute)
	slot3 := slot1.Add(30 * time.Minute)

	a, err := Create(ctx, filepath.Join(dir, "a.rrd"), 15*time.Minute, nil)
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	defer a.Close()
	b, err := Create(ctx, filepath.Join(dir, "b.rrd"), 15*time.Minute, nil)
	if err != nil {
		t.Fatalf("create b: %v", err)
	}
	defer b.Close()

	if err := a.Update(ctx, slot1, 10); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := b.Update(ctx, slot1, 99); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := b.Update(ctx, slot2, 20); err != nil {
		t.Fatalf("update: %v", err)
	}

	samples, err := MultiFetchSlots(ctx, []*Database{a, b}, []time.Time{slot1, slot2, slot3})
	if err != nil {
		t.Fatalf("multi fetch: %v", err)
	}
	if samples[0].Latency == nil || *samples[0].Latency != 10 {
		t.Fatalf("first shard must win: %+v", samples[0])
	}
	if samples[1].Latency == nil || *samples[1].Latency != 20 {
		t.Fatalf("second shard fills gaps: %+v", samples[1])
	}
	if samples[2].Latency != nil {
		t.Fatalf("slot absent everywhere must stay absent: %+v", samples[2])
	}
}

func TestDirSource(t *testing.T) {
	ctx := context.Background()
	dirA := t.TempDir()
	dirB := t.TempDir()
	slot := time.Date(2016, 12, 4, 6, 0, 0, 0, time.UTC)

	d, err := Create(ctx, filepath.Join(dirB, "HRV_EU.rrd"), 15*time.Minute, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := d.Update(ctx, slot, 33); err != nil {
		t.Fatalf("update: %v", err)
	}
	d.Close()

	src := &DirSource{Dirs: []string{dirA, dirB}}
	samples, err := src.Samples(ctx, "HRV_EU", []time.Time{slot})
	if err != nil {
		t.Fatalf("samples: %v", err)
	}
	if samples[0].Latency == nil || *samples[0].Latency != 33 {
		t.Fatalf("dir source: %+v", samples[0])
	}

	// unknown product resolves to all-absent
	samples, err = src.Samples(ctx, "UNKNOWN", []time.Time{slot})
	if err != nil {
		t.Fatalf("samples: %v", err)
	}
	if samples[0].Latency != nil {
		t.Fatalf("missing series must be absent: %+v", samples[0])
	}
}
