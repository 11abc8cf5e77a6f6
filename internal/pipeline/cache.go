package pipeline

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// WriteResultCache persists a check result for later retrieval by the
// monitoring system. The file is replaced atomically and made world
// readable.
func WriteResultCache(path string, res Result) error {
	// same directory as the target so the rename stays on one filesystem
	tmp, err := os.CreateTemp(filepath.Dir(path), ".satqm-check-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := fmt.Fprintf(tmp, "%d\n%s - %s", res.Code, res.Code.String(), res.Message); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ReadResultCache loads a previously written result. A cache older than
// maxAge means the checker stopped running, reported as critical.
func ReadResultCache(path string, maxAge time.Duration) (Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Result{
			Code:    StatusCritical,
			Message: fmt.Sprintf("could not read monitoring cache file %s", path),
		}, nil
	}
	if time.Since(info.ModTime()) > maxAge {
		return Result{
			Code:    StatusCritical,
			Message: fmt.Sprintf(
				"monitoring cache file too old, check that the checker runs at least every %s (cache file: %s)",
				maxAge, path),
		}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return Result{}, fmt.Errorf("pipeline: empty cache file %s", path)
	}
	code, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: bad status code in %s: %w", path, err)
	}
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return Result{}, err
	}
	return Result{Code: Status(code), Message: strings.Join(lines, "\n")}, nil
}
