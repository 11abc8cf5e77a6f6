package dailylog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"satqm/internal/model"
	"satqm/internal/patterns"
	"satqm/internal/storage"
)

func testRepo(t *testing.T, entries []patterns.Entry[[]RecordPattern]) *Repository {
	t.Helper()
	db, dialect, err := storage.Open("sqlite", "file:"+filepath.Join(t.TempDir(), "daily_log.db"))
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

func slotEntry(slot time.Time, satellite string, remark model.Remark) model.DailyLogEntry {
	return model.DailyLogEntry{
		Source:        "UNS",
		Service:       "MSG_0DEG",
		Satellite:     satellite,
		Channel:       "E-UNS",
		Segment:       "DEFAULT",
		SlotTime:      slot,
		ReferenceTime: slot.Add(2 * time.Minute),
		Filename:      "H-000-MSG3__",
		Remark:        remark,
	}
}

func TestAddIsIdempotent(t *testing.T) {
	repo := testRepo(t, nil)
	ctx := context.Background()
	slot := time.Date(2016, 12, 4, 0, 0, 0, 0, time.UTC)
	entry := slotEntry(slot, "MSG3", model.RemarkConfirmed)

	if err := repo.Add(ctx, []model.DailyLogEntry{entry}); err != nil {
		t.Fatalf("add: %v", err)
	}
	entry.Remark = model.RemarkNotSent
	if err := repo.Add(ctx, []model.DailyLogEntry{entry}); err != nil {
		t.Fatalf("re-add: %v", err)
	}
	n, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row after upsert, got %d", n)
	}
	records, err := repo.FindByTimeslot(ctx, slot, "")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(records) != 1 || records[0].Remark != model.RemarkNotSent {
		t.Fatalf("upsert did not overwrite remark: %+v", records)
	}
}

func TestFindByTimeslotPatternFilter(t *testing.T) {
	repo := testRepo(t, []patterns.Entry[[]RecordPattern]{
		{Key: "METEOSAT_EUROPA.*", Value: []RecordPattern{
			{Source: "%", Service: "%", Satellite: "MSG%", Channel: "%", Segment: "%"},
		}},
	})
	ctx := context.Background()
	slot := time.Date(2016, 12, 4, 12, 0, 0, 0, time.UTC)
	if err := repo.Add(ctx, []model.DailyLogEntry{
		slotEntry(slot, "MSG3", model.RemarkConfirmed),
		slotEntry(slot, "GOES16", model.RemarkConfirmed),
	}); err != nil {
		t.Fatalf("add: %v", err)
	}

	records, err := repo.FindByTimeslot(ctx, slot, "METEOSAT_EUROPA_GESAMT_IR108")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(records) != 1 || records[0].Satellite != "MSG3" {
		t.Fatalf("pattern filter: %+v", records)
	}

	// unmatched product name means no filtering
	records, err = repo.FindByTimeslot(ctx, slot, "HIMAWARI_ASIEN")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("unmatched product should return all records, got %d", len(records))
	}
}

func TestDeleteOlderThanRelativeToNewest(t *testing.T) {
	repo := testRepo(t, nil)
	ctx := context.Background()

	old := time.Date(2016, 9, 15, 13, 0, 0, 0, time.UTC)
	recent := time.Date(2016, 12, 15, 13, 0, 0, 0, time.UTC)
	entries := []model.DailyLogEntry{
		slotEntry(old, "MSG1", model.RemarkConfirmed),
		slotEntry(recent, "MSG3", model.RemarkConfirmed),
	}
	if err := repo.Add(ctx, entries); err != nil {
		t.Fatalf("add: %v", err)
	}

	// 100 days back from the newest reference time keeps both rows
	if err := repo.DeleteOlderThan(ctx, 100); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n, _ := repo.Count(ctx); n != 2 {
		t.Fatalf("expected 2 rows, got %d", n)
	}

	// 90 days back drops the september row
	if err := repo.DeleteOlderThan(ctx, 90); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n, _ := repo.Count(ctx); n != 1 {
		t.Fatalf("expected 1 row, got %d", n)
	}
	records, err := repo.FindByTimeslot(ctx, old, "")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("old record should be gone")
	}
}

func TestAvailabilityClassification(t *testing.T) {
	repo := testRepo(t, nil)
	ctx := context.Background()
	svc := NewService(repo, 120, nil)

	good := time.Date(2016, 12, 4, 0, 0, 0, 0, time.UTC)
	bad := good.Add(15 * time.Minute)
	empty := good.Add(30 * time.Minute)
	if err := repo.Add(ctx, []model.DailyLogEntry{
		slotEntry(good, "MSG3", model.RemarkConfirmed),
		slotEntry(bad, "MSG3", model.RemarkNotConfirmed),
	}); err != nil {
		t.Fatalf("add: %v", err)
	}

	avail, err := svc.Availability(ctx, []time.Time{good, bad, empty}, "")
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if !avail[0].Available {
		t.Fatalf("confirmed slot should be available")
	}
	if avail[1].Available {
		t.Fatalf("slot with invalid record should be unavailable")
	}
	if avail[2].Available {
		t.Fatalf("slot with no records should be unavailable, not neutral")
	}
}

func TestRemarkCounts(t *testing.T) {
	repo := testRepo(t, nil)
	ctx := context.Background()
	svc := NewService(repo, 120, nil)

	slot := time.Date(2016, 12, 4, 4, 0, 0, 0, time.UTC)
	entries := []model.DailyLogEntry{
		slotEntry(slot, "MSG1", model.RemarkConfirmed),
		slotEntry(slot, "MSG2", model.RemarkNotSent),
		slotEntry(slot, "MSG3", model.RemarkNotConfirmed),
		slotEntry(slot, "MSG4", model.RemarkUnknown),
	}
	if err := repo.Add(ctx, entries); err != nil {
		t.Fatalf("add: %v", err)
	}
	counts, err := svc.RemarkCounts(ctx, slot, "")
	if err != nil {
		t.Fatalf("remark counts: %v", err)
	}
	if counts.Total != 4 || counts.Confirmed != 1 || counts.NotSent != 1 ||
		counts.NotConfirmed != 1 || counts.Unknown != 1 {
		t.Fatalf("counts: %+v", counts)
	}
	if counts.TotalInvalid != 3 {
		t.Fatalf("total invalid: %d", counts.TotalInvalid)
	}
}

func TestReaderParsesDailyLog(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "E-UNS_-MSG_0DEG-H_SEVIRI____-DAILY_LOG-161204_01-201612050202-___test")
	content := "slot time|reference time|filename|received timeliness|remark|satellite|channel|segment\n" +
		"2016-12-04 00:00:00|2016-12-05 02:02:00|H-000-MSG3__|00:01:30|RECEPTION_CONFIRMED|MSG3|E-UNS|DEFAULT\n" +
		"2016-12-04 00:15:00|2016-12-05 02:02:00|H-000-MSG3__||NOT_SENT|MSG3|E-UNS|DEFAULT\n" +
		"garbage row without separators\n"
	if err := os.WriteFile(filename, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	entries, err := NewReader(filename, nil).Entries()
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries (malformed row skipped), got %d", len(entries))
	}
	first := entries[0]
	if first.Source != "MSG_0DEG" || first.Service != "H_SEVIRI" {
		t.Fatalf("source/service from filename: %q %q", first.Source, first.Service)
	}
	if first.Remark != model.RemarkConfirmed {
		t.Fatalf("remark: %s", first.Remark)
	}
	if first.ReceivedTimeliness == nil {
		t.Fatalf("received timeliness missing")
	}
	if entries[1].Remark != model.RemarkNotSent || entries[1].ReceivedTimeliness != nil {
		t.Fatalf("second entry: %+v", entries[1])
	}
	if !first.SlotTime.Equal(time.Date(2016, 12, 4, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("slot time: %s", first.SlotTime)
	}
}

func TestImportFileEndToEnd(t *testing.T) {
	repo := testRepo(t, nil)
	svc := NewService(repo, 120, nil)
	ctx := context.Background()

	dir := t.TempDir()
	filename := filepath.Join(dir, "E-UNS_-MSG_0DEG-H_SEVIRI____-DAILY_LOG-161204_01-201612050202-___test")
	content := "slot time|reference time|filename|received timeliness|remark|satellite|channel|segment\n" +
		"2016-12-04 00:00:00|2016-12-05 02:02:00|H-000-MSG3__|00:01:30|RECEPTION_CONFIRMED|MSG3|E-UNS|DEFAULT\n"
	if err := os.WriteFile(filename, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := svc.ImportFile(ctx, filename); err != nil {
		t.Fatalf("import: %v", err)
	}
	if n, _ := repo.Count(ctx); n != 1 {
		t.Fatalf("expected 1 row, got %d", n)
	}
	// re-import is idempotent
	if err := svc.ImportFile(ctx, filename); err != nil {
		t.Fatalf("re-import: %v", err)
	}
	if n, _ := repo.Count(ctx); n != 1 {
		t.Fatalf("expected 1 row after re-import, got %d", n)
	}
}
