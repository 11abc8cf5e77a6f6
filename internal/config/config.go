package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"satqm/internal/aldalog"
	"satqm/internal/dailylog"
	"satqm/internal/patterns"
	"satqm/internal/pipeline"
)

type Config struct {
	LogLevel   string               `json:"log_level" yaml:"log_level"`
	MaxAgeDays int                  `json:"max_age_days" yaml:"max_age_days"`
	Workers    int                  `json:"workers" yaml:"workers"`
	Dailylog   DailylogConfig       `json:"dailylog" yaml:"dailylog"`
	Aldalog    AldalogConfig        `json:"aldalog" yaml:"aldalog"`
	Incidents  IncidentsConfig      `json:"incidents" yaml:"incidents"`
	RRD        RRDConfig            `json:"rrd" yaml:"rrd"`
	Kafka      pipeline.KafkaConfig `json:"kafka" yaml:"kafka"`
	Check      CheckConfig          `json:"check" yaml:"check"`
	Products   []ProductConfig      `json:"products" yaml:"products"`
}

type DailylogConfig struct {
	Driver   string                 `json:"driver" yaml:"driver"`
	DSN      string                 `json:"dsn" yaml:"dsn"`
	Patterns []DailylogPatternEntry `json:"patterns" yaml:"patterns"`
}

// DailylogPatternEntry maps a product name pattern to the record filters
// selecting its confirmation-log rows. Order matters, the first matching
// product pattern wins.
type DailylogPatternEntry struct {
	Product string                   `json:"product" yaml:"product"`
	Records []dailylog.RecordPattern `json:"records" yaml:"records"`
}

type AldalogConfig struct {
	Driver           string                 `json:"driver" yaml:"driver"`
	DSN              string                 `json:"dsn" yaml:"dsn"`
	FilenamePatterns []FilenamePatternEntry `json:"filename_patterns" yaml:"filename_patterns"`
	Patterns         []AldalogPatternEntry  `json:"patterns" yaml:"patterns"`
}

type FilenamePatternEntry struct {
	Regex  string `json:"regex" yaml:"regex"`
	Layout string `json:"layout" yaml:"layout"`
}

type AldalogPatternEntry struct {
	Product string                 `json:"product" yaml:"product"`
	Groups  []aldalog.PatternGroup `json:"groups" yaml:"groups"`
}

type IncidentsConfig struct {
	Driver   string                `json:"driver" yaml:"driver"`
	DSN      string                `json:"dsn" yaml:"dsn"`
	Patterns []AffectedEntityEntry `json:"patterns" yaml:"patterns"`
}

type AffectedEntityEntry struct {
	Product  string   `json:"product" yaml:"product"`
	Entities []string `json:"entities" yaml:"entities"`
}

type RRDConfig struct {
	Dirs        []string `json:"dirs" yaml:"dirs"`
	StepSeconds int      `json:"step_seconds" yaml:"step_seconds"`
}

type CheckConfig struct {
	MaxAgeMinutes      int     `json:"max_age_minutes" yaml:"max_age_minutes"`
	MaxAgeIntervals    float64 `json:"max_age_intervals" yaml:"max_age_intervals"`
	CacheFile          string  `json:"cache_file" yaml:"cache_file"`
	CacheMaxAgeMinutes int     `json:"cache_max_age_minutes" yaml:"cache_max_age_minutes"`
}

type ProductConfig struct {
	Name               string   `json:"name" yaml:"name"`
	Steps              int      `json:"steps" yaml:"steps"`
	AllowedProcessTime *float64 `json:"allowed_process_time" yaml:"allowed_process_time"`
	OutputCSVFile      string   `json:"output_csv_file" yaml:"output_csv_file"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel:   "info",
		MaxAgeDays: 120,
		Workers:    4,
		Dailylog:   DailylogConfig{Driver: "sqlite", DSN: "file:daily_log.db"},
		Aldalog:    AldalogConfig{Driver: "sqlite", DSN: "file:alda_log.db"},
		Incidents:  IncidentsConfig{Driver: "sqlite", DSN: "file:sat_incidents.db"},
		RRD:        RRDConfig{StepSeconds: 900},
		Kafka:      pipeline.KafkaConfig{Enabled: false},
		Check:      CheckConfig{MaxAgeIntervals: 2.0, CacheMaxAgeMinutes: 15},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = 120
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Dailylog.Driver == "" {
		cfg.Dailylog.Driver = "sqlite"
	}
	if cfg.Aldalog.Driver == "" {
		cfg.Aldalog.Driver = "sqlite"
	}
	if cfg.Incidents.Driver == "" {
		cfg.Incidents.Driver = "sqlite"
	}
	if cfg.RRD.StepSeconds <= 0 {
		cfg.RRD.StepSeconds = 900
	}
	if cfg.Check.MaxAgeIntervals <= 0 {
		cfg.Check.MaxAgeIntervals = 2.0
	}
	if cfg.Check.CacheMaxAgeMinutes <= 0 {
		cfg.Check.CacheMaxAgeMinutes = 15
	}
}

func Validate(cfg *Config) error {
	if cfg.Dailylog.DSN == "" {
		return errors.New("dailylog.dsn required")
	}
	if cfg.Aldalog.DSN == "" {
		return errors.New("aldalog.dsn required")
	}
	if cfg.Incidents.DSN == "" {
		return errors.New("incidents.dsn required")
	}
	if cfg.Kafka.Enabled {
		if len(cfg.Kafka.Brokers) == 0 || cfg.Kafka.Topic == "" || cfg.Kafka.GroupID == "" {
			return errors.New("kafka requires brokers, topic, group_id")
		}
		if len(cfg.RRD.Dirs) == 0 {
			return errors.New("rrd.dirs required when kafka is enabled")
		}
	}
	seen := map[string]bool{}
	for i, p := range cfg.Products {
		if p.Name == "" {
			return fmt.Errorf("products[%d].name required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate product %q", p.Name)
		}
		seen[p.Name] = true
		if p.Steps <= 0 {
			return fmt.Errorf("products[%d].steps must be > 0", i)
		}
		if p.OutputCSVFile == "" {
			return fmt.Errorf("products[%d].output_csv_file required", i)
		}
	}
	if len(cfg.Products) > 0 && len(cfg.RRD.Dirs) == 0 {
		return errors.New("rrd.dirs required when products are configured")
	}
	return nil
}

// DailylogPatterns compiles the ordered product-to-record-filter map.
func (c *Config) DailylogPatterns() (*patterns.Map[[]dailylog.RecordPattern], error) {
	entries := make([]patterns.Entry[[]dailylog.RecordPattern], 0, len(c.Dailylog.Patterns))
	for _, e := range c.Dailylog.Patterns {
		entries = append(entries, patterns.Entry[[]dailylog.RecordPattern]{Key: e.Product, Value: e.Records})
	}
	return patterns.Compile(entries)
}

// AldalogPatterns compiles the ordered product-to-transfer-group map.
func (c *Config) AldalogPatterns() (*patterns.Map[[]aldalog.PatternGroup], error) {
	entries := make([]patterns.Entry[[]aldalog.PatternGroup], 0, len(c.Aldalog.Patterns))
	for _, e := range c.Aldalog.Patterns {
		entries = append(entries, patterns.Entry[[]aldalog.PatternGroup]{Key: e.Product, Value: e.Groups})
	}
	return patterns.Compile(entries)
}

// IncidentPatterns compiles the ordered product-to-affected-entity map.
func (c *Config) IncidentPatterns() (*patterns.Map[[]*regexp.Regexp], error) {
	entries := make([]patterns.Entry[[]*regexp.Regexp], 0, len(c.Incidents.Patterns))
	for _, e := range c.Incidents.Patterns {
		pats, err := patterns.CompileEntityPatterns(e.Entities)
		if err != nil {
			return nil, err
		}
		entries = append(entries, patterns.Entry[[]*regexp.Regexp]{Key: e.Product, Value: pats})
	}
	return patterns.Compile(entries)
}

// AldalogFilenamePatterns compiles the slot-time extraction rules.
func (c *Config) AldalogFilenamePatterns() ([]aldalog.FilenamePattern, error) {
	out := make([]aldalog.FilenamePattern, 0, len(c.Aldalog.FilenamePatterns))
	for _, e := range c.Aldalog.FilenamePatterns {
		if _, err := regexp.Compile(e.Regex); err != nil {
			return nil, fmt.Errorf("config: aldalog filename pattern %q: %w", e.Regex, err)
		}
		out = append(out, aldalog.FilenamePattern{Regex: e.Regex, Layout: e.Layout})
	}
	return out, nil
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}
