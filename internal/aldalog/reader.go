package aldalog

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"satqm/internal/model"
)

const timestampFormat = "20060102150405"

// FilenamePattern extracts the timeslot from a transferred filename: the
// regexp's first capture group is parsed with the given time layout.
type FilenamePattern struct {
	Regex  string `yaml:"regex"`
	Layout string `yaml:"layout"`
}

type compiledPattern struct {
	re     *regexp.Regexp
	layout string
}

// Reader parses AFD alda transfer logs: space-separated lines of
// (timestamp, destination host, filename). The timeslot is not a log field;
// it is recovered from the filename via the configured patterns.
type Reader struct {
	filename string
	patterns []compiledPattern
	logger   *slog.Logger
}

func NewReader(filename string, pats []FilenamePattern, logger *slog.Logger) (*Reader, error) {
	r := &Reader{filename: filename, logger: logger}
	for _, p := range pats {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			return nil, fmt.Errorf("aldalog: filename pattern %q: %w", p.Regex, err)
		}
		r.patterns = append(r.patterns, compiledPattern{re: re, layout: p.Layout})
	}
	return r, nil
}

func (r *Reader) Entries() ([]model.AldaLogEntry, error) {
	f, err := os.Open(r.filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []model.AldaLogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entry, err := r.parseLine(line)
		if err != nil {
			if r.logger != nil {
				r.logger.Warn("skipping malformed row", "file", r.filename, "err", err)
			}
			continue
		}
		out = append(out, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Reader) parseLine(line string) (model.AldaLogEntry, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return model.AldaLogEntry{}, fmt.Errorf("expected 3 fields, got %d", len(fields))
	}
	ts, err := time.ParseInLocation(timestampFormat, fields[0], time.UTC)
	if err != nil {
		return model.AldaLogEntry{}, fmt.Errorf("timestamp: %w", err)
	}
	entry := model.AldaLogEntry{
		Timestamp: ts,
		DestHost:  fields[1],
		Filename:  fields[2],
	}
	slot, err := r.slotFromFilename(fields[2])
	if err != nil {
		return model.AldaLogEntry{}, err
	}
	entry.SlotTime = slot
	return entry, nil
}

func (r *Reader) slotFromFilename(filename string) (time.Time, error) {
	for _, p := range r.patterns {
		m := p.re.FindStringSubmatch(filename)
		if len(m) < 2 {
			continue
		}
		slot, err := time.ParseInLocation(p.layout, m[1], time.UTC)
		if err != nil {
			continue
		}
		return slot, nil
	}
	return time.Time{}, fmt.Errorf("no filename pattern matched %q", filename)
}
