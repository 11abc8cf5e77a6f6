package aldalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"satqm/internal/model"
	"satqm/internal/patterns"
	"satqm/internal/storage"
)

func testRepo(t *testing.T, entries []patterns.Entry[[]PatternGroup]) *Repository {
	t.Helper()
	db, dialect, err := storage.Open("sqlite", "file:"+filepath.Join(t.TempDir(), "alda_log.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	pm, err := patterns.Compile(entries)
	if err != nil {
		t.Fatalf("compile patterns: %v", err)
	}
	repo := NewRepository(db, dialect, pm)
	if err := repo.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return repo
}

func entry(host, filename string, slot time.Time) model.AldaLogEntry {
	return model.AldaLogEntry{
		DestHost:  host,
		Filename:  filename,
		SlotTime:  slot,
		Timestamp: slot.Add(4 * time.Minute),
	}
}

func TestFindByTimeslotMinCount(t *testing.T) {
	repo := testRepo(t, []patterns.Entry[[]PatternGroup]{
		{Key: "METEOSAT_EUROPA.*", Value: []PatternGroup{
			{DestHost: "hermes%", Filename: "%msg%", MinCount: 1},
		}},
		{Key: "Warnappbild.*", Value: []PatternGroup{
			{DestHost: "hermes%", Filename: "%warnapp%", MinCount: 2},
		}},
	})
	ctx := context.Background()
	slot := time.Date(2016, 12, 15, 23, 30, 0, 0, time.UTC)
	if err := repo.Add(ctx, []model.AldaLogEntry{
		entry("hermes1", "msg-201612152330-epi", slot),
		entry("hermes1", "warnapp-201612152330", slot),
	}); err != nil {
		t.Fatalf("add: %v", err)
	}

	records, ok, err := repo.FindByTimeslot(ctx, slot, "METEOSAT_EUROPA_GESAMT_IR108")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(records) != 1 || !ok {
		t.Fatalf("expected 1 record ok=true, got %d ok=%v", len(records), ok)
	}

	// only one warnapp record but min_count is 2
	records, ok, err = repo.FindByTimeslot(ctx, slot, "WarnappbildRGBA")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(records) != 1 || ok {
		t.Fatalf("expected verdict false, got %d ok=%v", len(records), ok)
	}
}

func TestFindByTimeslotNoPatternProduct(t *testing.T) {
	repo := testRepo(t, nil)
	ctx := context.Background()
	slot := time.Date(2016, 12, 15, 23, 30, 0, 0, time.UTC)

	_, ok, err := repo.FindByTimeslot(ctx, slot, "ANY_PRODUCT")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if ok {
		t.Fatalf("empty slot should not be available")
	}

	if err := repo.Add(ctx, []model.AldaLogEntry{
		entry("hermes1", "msg-201612152330-epi", slot),
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	records, ok, err := repo.FindByTimeslot(ctx, slot, "ANY_PRODUCT")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(records) != 1 || !ok {
		t.Fatalf("one record should make the slot available")
	}
}

func TestDeleteOlderThanRelativeToNewest(t *testing.T) {
	repo := testRepo(t, nil)
	ctx := context.Background()

	oldSlot := time.Date(2016, 9, 15, 13, 30, 0, 0, time.UTC)
	newSlot := time.Date(2016, 12, 15, 23, 30, 0, 0, time.UTC)
	var entries []model.AldaLogEntry
	for i := 0; i < 9; i++ {
		entries = append(entries, entry("hermes1", fmt.Sprintf("old-%d-201609151330", i), oldSlot))
	}
	entries = append(entries, entry("hermes1", "new-201612152330", newSlot))
	if err := repo.Add(ctx, entries); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := repo.DeleteOlderThan(ctx, 100); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n, _ := repo.Count(ctx); n != 10 {
		t.Fatalf("100 days should keep everything, got %d", n)
	}

	if err := repo.DeleteOlderThan(ctx, 90); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n, _ := repo.Count(ctx); n != 1 {
		t.Fatalf("90 days should drop the september records, got %d", n)
	}
	records, _, err := repo.FindByTimeslot(ctx, oldSlot, "")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("old records should be gone")
	}
}

func TestReaderParsesAldaLog(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "afd-alda-msg-epi-hermes")
	content := "20161215233404 hermes1 H-000-MSG3-201612152330-epi\n" +
		"20161215233405 hermes2 H-000-MSG3-201612152330-epi\n" +
		"not-a-timestamp hermes3 whatever\n" +
		"20161215233406 hermes3 unmatchable-filename\n"
	if err := os.WriteFile(filename, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	reader, err := NewReader(filename, []FilenamePattern{
		{Regex: `-([0-9]{12})-epi$`, Layout: "200601021504"},
	}, nil)
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	entries, err := reader.Entries()
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	want := time.Date(2016, 12, 15, 23, 30, 0, 0, time.UTC)
	if !entries[0].SlotTime.Equal(want) {
		t.Fatalf("slot time from filename: %s", entries[0].SlotTime)
	}
	if !entries[0].Timestamp.Equal(time.Date(2016, 12, 15, 23, 34, 4, 0, time.UTC)) {
		t.Fatalf("timestamp: %s", entries[0].Timestamp)
	}
	if entries[1].DestHost != "hermes2" {
		t.Fatalf("dest host: %s", entries[1].DestHost)
	}
}

func TestAvailability(t *testing.T) {
	repo := testRepo(t, nil)
	svc := NewService(repo, nil, 120, nil)
	ctx := context.Background()

	present := time.Date(2016, 12, 4, 0, 0, 0, 0, time.UTC)
	missing := present.Add(15 * time.Minute)
	if err := repo.Add(ctx, []model.AldaLogEntry{
		entry("hermes1", "msg-201612040000-epi", present),
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	avail, err := svc.Availability(ctx, []time.Time{present, missing}, "")
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if !avail[0].Available || avail[1].Available {
		t.Fatalf("availability: %+v", avail)
	}
}
