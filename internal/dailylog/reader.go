package dailylog

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"satqm/internal/model"
)

const (
	dateFormat     = "2006-01-02 15:04:05"
	timeOnlyFormat = "15:04:05"
)

// Reader parses broadcast transfer-confirmation daily logs: pipe-separated
// CSV with a header row. Source and service are carried in the log filename
// rather than in the rows.
type Reader struct {
	filename string
	source   string
	service  string
	logger   *slog.Logger
}

func NewReader(filename string, logger *slog.Logger) *Reader {
	r := &Reader{filename: filename, logger: logger}
	parts := strings.Split(filepath.Base(filename), "-")
	if len(parts) > 3 {
		r.source = strings.Trim(parts[2], "_")
		r.service = strings.Trim(parts[3], "_")
	}
	return r
}

// Entries reads all well-formed rows. Malformed rows are skipped and logged;
// a read error on the file itself is returned.
func (r *Reader) Entries() ([]model.DailyLogEntry, error) {
	f, err := os.Open(r.filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.Comma = '|'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("dailylog: read header: %w", err)
	}
	col := map[string]int{}
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var out []model.DailyLogEntry
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			r.warn("unreadable row", err)
			continue
		}
		entry, err := r.parseRow(col, row)
		if err != nil {
			r.warn("skipping malformed row", err)
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (r *Reader) parseRow(col map[string]int, row []string) (model.DailyLogEntry, error) {
	field := func(name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	slot, err := time.ParseInLocation(dateFormat, field("slot time"), time.UTC)
	if err != nil {
		return model.DailyLogEntry{}, fmt.Errorf("slot time: %w", err)
	}
	ref, err := time.ParseInLocation(dateFormat, field("reference time"), time.UTC)
	if err != nil {
		return model.DailyLogEntry{}, fmt.Errorf("reference time: %w", err)
	}

	entry := model.DailyLogEntry{
		Source:        r.source,
		Service:       r.service,
		Satellite:     field("satellite"),
		Channel:       field("channel"),
		Segment:       field("segment"),
		SlotTime:      slot,
		ReferenceTime: ref,
		Filename:      field("filename"),
		Remark:        model.ParseRemark(field("remark")),
	}
	if v := field("received timeliness"); v != "" {
		ts, err := time.ParseInLocation(timeOnlyFormat, v, time.UTC)
		if err == nil {
			entry.ReceivedTimeliness = &ts
		}
	}
	return entry, nil
}

func (r *Reader) warn(msg string, err error) {
	if r.logger != nil {
		r.logger.Warn(msg, "file", r.filename, "err", err)
	}
}
