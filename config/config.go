package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"response_analytics/internal/schedule"
)

// Config holds report settings derived from environment variables and the config file.
type Config struct {
	SubmissionsPath  string
	ResponsesPath    string
	SubmissionsSheet string
	ResponsesSheet   string
	OutputDir        string
	DBPath           string
	PersistRuns      bool
	DedupWindow      time.Duration
	DedupPolicy      string
	Cutoff           time.Time
	OutlierDays      float64
	HistogramBins    int
	Location         *time.Location
	ChartsEnabled    bool
	ChartWidth       int
	ChartHeight      int
	ExportXLSX       string
	ExportCSV        string
	WatchInputs      bool
	Schedule         string
	JobTimeoutSec    int
	SlackWebhookURL  string
	MetricsTextfile  string
	StrictConfig     bool
	Columns          Columns
}

// SubmissionColumns names the header cells of the submissions table.
type SubmissionColumns struct {
	SubjectID    string `json:"subject_id" yaml:"subject_id"`
	SubmissionID string `json:"submission_id" yaml:"submission_id"`
	CreatedAt    string `json:"created_at" yaml:"created_at"`
	Team         string `json:"team" yaml:"team"`
}

// ResponseColumns names the header cells of the response actions table.
type ResponseColumns struct {
	SubjectID     string `json:"subject_id" yaml:"subject_id"`
	TimeResponded string `json:"time_responded" yaml:"time_responded"`
	Team          string `json:"team" yaml:"team"`
}

type Columns struct {
	Submissions SubmissionColumns `json:"submissions" yaml:"submissions"`
	Responses   ResponseColumns   `json:"responses" yaml:"responses"`
}

type fileConfig struct {
	SubmissionsPath  string      `json:"submissions_path" yaml:"submissions_path"`
	ResponsesPath    string      `json:"responses_path" yaml:"responses_path"`
	SubmissionsSheet string      `json:"submissions_sheet" yaml:"submissions_sheet"`
	ResponsesSheet   string      `json:"responses_sheet" yaml:"responses_sheet"`
	OutputDir        string      `json:"output_dir" yaml:"output_dir"`
	DBPath           string      `json:"db_path" yaml:"db_path"`
	Report           reportFile  `json:"report" yaml:"report"`
	Outputs          outputsFile `json:"outputs" yaml:"outputs"`
	Columns          Columns     `json:"columns" yaml:"columns"`
}

type reportFile struct {
	DedupWindow   string   `json:"dedup_window" yaml:"dedup_window"`
	DedupPolicy   string   `json:"dedup_policy" yaml:"dedup_policy"`
	CutoffDate    string   `json:"cutoff_date" yaml:"cutoff_date"`
	OutlierDays   *float64 `json:"outlier_days" yaml:"outlier_days"`
	HistogramBins *int     `json:"histogram_bins" yaml:"histogram_bins"`
	Timezone      string   `json:"timezone" yaml:"timezone"`
}

type outputsFile struct {
	Charts          *bool  `json:"charts" yaml:"charts"`
	ChartWidth      *int   `json:"chart_width" yaml:"chart_width"`
	ChartHeight     *int   `json:"chart_height" yaml:"chart_height"`
	PersistRuns     *bool  `json:"persist_runs" yaml:"persist_runs"`
	ExportXLSX      string `json:"export_xlsx" yaml:"export_xlsx"`
	ExportCSV       string `json:"export_csv" yaml:"export_csv"`
	Watch           *bool  `json:"watch" yaml:"watch"`
	Schedule        string `json:"schedule" yaml:"schedule"`
	SlackWebhookURL string `json:"slack_webhook_url" yaml:"slack_webhook_url"`
	MetricsTextfile string `json:"metrics_textfile" yaml:"metrics_textfile"`
}

const (
	defaultSubmissionsPath = "data/Patient_Entries.xlsx"
	defaultResponsesPath   = "data/Audit_Actions.xlsx"
	defaultOutputDir       = "runtime/report"
	defaultDBFile          = "report.db"
	defaultDedupWindow     = 3 * time.Minute
	defaultDedupPolicy     = "consecutive"
	defaultCutoffDate      = "2013-06-01"
	defaultOutlierDays     = 30.0
	defaultHistogramBins   = 1000
	maxHistogramBins       = 10000
	defaultChartWidth      = 1000
	defaultChartHeight     = 600
	minChartSide           = 200
	defaultJobTimeoutSec   = 300
	cutoffLayout           = "2006-01-02"
)

// DefaultColumns matches the headers of the exported patient entry and audit action sheets.
func DefaultColumns() Columns {
	return Columns{
		Submissions: SubmissionColumns{SubjectID: "patientId", SubmissionID: "entryId", CreatedAt: "createdAt_time", Team: "team"},
		Responses:   ResponseColumns{SubjectID: "patientId", TimeResponded: "timeResponded", Team: "team name"},
	}
}

// Load reads configuration from environment variables and applies sane defaults.
func Load() (Config, error) {
	cfg := Config{
		DedupWindow:   defaultDedupWindow,
		DedupPolicy:   defaultDedupPolicy,
		OutlierDays:   defaultOutlierDays,
		HistogramBins: defaultHistogramBins,
		Location:      time.UTC,
		ChartWidth:    defaultChartWidth,
		ChartHeight:   defaultChartHeight,
		JobTimeoutSec: defaultJobTimeoutSec,
		StrictConfig:  parseBoolEnv("STRICT_CONFIG"),
	}

	configPath := getEnv("CONFIG_PATH", filepath.Join("config", "config.yaml"))
	fileCfg, fileErr := loadFileConfig(configPath)
	if fileErr != nil {
		if cfg.StrictConfig {
			return cfg, fmt.Errorf("config load failed (%s): %w", configPath, fileErr)
		}
		log.Printf("config load failed (%s): %v (using defaults)", configPath, fileErr)
	}

	cfg.SubmissionsPath = firstNonEmpty(os.Getenv("SUBMISSIONS_PATH"), fileCfg.SubmissionsPath, defaultSubmissionsPath)
	cfg.ResponsesPath = firstNonEmpty(os.Getenv("RESPONSES_PATH"), fileCfg.ResponsesPath, defaultResponsesPath)
	cfg.SubmissionsSheet = firstNonEmpty(os.Getenv("SUBMISSIONS_SHEET"), fileCfg.SubmissionsSheet)
	cfg.ResponsesSheet = firstNonEmpty(os.Getenv("RESPONSES_SHEET"), fileCfg.ResponsesSheet)
	cfg.OutputDir = firstNonEmpty(os.Getenv("OUTPUT_DIR"), fileCfg.OutputDir, defaultOutputDir)
	cfg.DBPath = firstNonEmpty(os.Getenv("DB_PATH"), fileCfg.DBPath, filepath.Join(cfg.OutputDir, defaultDBFile))
	cfg.Columns = applyColumnOverrides(DefaultColumns(), fileCfg.Columns)

	if err := applyReport(&cfg, fileCfg.Report); err != nil {
		if cfg.StrictConfig {
			return cfg, err
		}
		log.Printf("%v (using default)", err)
	}
	applyOutputs(&cfg, fileCfg.Outputs)

	if v, ok, err := parseIntEnv("JOB_TIMEOUT_SEC"); err != nil {
		return cfg, fmt.Errorf("invalid JOB_TIMEOUT_SEC: %w", err)
	} else if ok {
		if v <= 0 {
			return cfg, fmt.Errorf("JOB_TIMEOUT_SEC must be positive")
		}
		cfg.JobTimeoutSec = v
	}

	if err := validateConfig(cfg); err != nil {
		if cfg.StrictConfig {
			return cfg, err
		}
		log.Printf("config validation failed: %v (continuing)", err)
	}

	log.Printf("config: submissions=%s responses=%s output_dir=%s dedup_window=%s dedup_policy=%s cutoff=%s",
		cfg.SubmissionsPath, cfg.ResponsesPath, cfg.OutputDir, cfg.DedupWindow, cfg.DedupPolicy, cfg.Cutoff.Format(cutoffLayout))
	return cfg, nil
}

func applyReport(cfg *Config, file reportFile) error {
	var errs []error

	tz := firstNonEmpty(os.Getenv("TIMEZONE"), file.Timezone)
	if tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err))
		} else {
			cfg.Location = loc
		}
	}

	if raw := firstNonEmpty(os.Getenv("DEDUP_WINDOW"), file.DedupWindow); raw != "" {
		d, err := time.ParseDuration(raw)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("invalid DEDUP_WINDOW %q: %w", raw, err))
		case d < 0:
			errs = append(errs, fmt.Errorf("DEDUP_WINDOW must not be negative (got %s)", d))
		default:
			cfg.DedupWindow = d
		}
	}

	if raw := strings.ToLower(firstNonEmpty(os.Getenv("DEDUP_POLICY"), file.DedupPolicy)); raw != "" {
		cfg.DedupPolicy = raw
	}

	cutoffRaw := firstNonEmpty(os.Getenv("CUTOFF_DATE"), file.CutoffDate, defaultCutoffDate)
	cutoff, err := time.ParseInLocation(cutoffLayout, cutoffRaw, cfg.Location)
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid CUTOFF_DATE %q: %w", cutoffRaw, err))
		cutoff, _ = time.ParseInLocation(cutoffLayout, defaultCutoffDate, cfg.Location)
	}
	cfg.Cutoff = cutoff

	if file.OutlierDays != nil && *file.OutlierDays > 0 {
		cfg.OutlierDays = *file.OutlierDays
	}
	if v, ok, err := parseFloatEnv("OUTLIER_DAYS"); err != nil {
		errs = append(errs, fmt.Errorf("invalid OUTLIER_DAYS: %w", err))
	} else if ok && v > 0 {
		cfg.OutlierDays = v
	}

	if file.HistogramBins != nil && *file.HistogramBins > 0 {
		cfg.HistogramBins = *file.HistogramBins
	}
	if v, ok, err := parseIntEnv("HISTOGRAM_BINS"); err != nil {
		errs = append(errs, fmt.Errorf("invalid HISTOGRAM_BINS: %w", err))
	} else if ok && v > 0 {
		cfg.HistogramBins = v
	}
	if cfg.HistogramBins > maxHistogramBins {
		log.Printf("HISTOGRAM_BINS capped at %d (was %d)", maxHistogramBins, cfg.HistogramBins)
		cfg.HistogramBins = maxHistogramBins
	}

	return errors.Join(errs...)
}

func applyOutputs(cfg *Config, file outputsFile) {
	cfg.ChartsEnabled = boolSetting("CHARTS_ENABLED", file.Charts, true)
	cfg.PersistRuns = boolSetting("PERSIST_RUNS", file.PersistRuns, true)
	cfg.WatchInputs = boolSetting("WATCH_INPUTS", file.Watch, false)

	if file.ChartWidth != nil && *file.ChartWidth > 0 {
		cfg.ChartWidth = *file.ChartWidth
	}
	if file.ChartHeight != nil && *file.ChartHeight > 0 {
		cfg.ChartHeight = *file.ChartHeight
	}
	if v, ok, err := parseIntEnv("CHART_WIDTH"); err == nil && ok && v > 0 {
		cfg.ChartWidth = v
	}
	if v, ok, err := parseIntEnv("CHART_HEIGHT"); err == nil && ok && v > 0 {
		cfg.ChartHeight = v
	}
	if cfg.ChartWidth < minChartSide {
		log.Printf("CHART_WIDTH raised to minimum %d (was %d)", minChartSide, cfg.ChartWidth)
		cfg.ChartWidth = minChartSide
	}
	if cfg.ChartHeight < minChartSide {
		log.Printf("CHART_HEIGHT raised to minimum %d (was %d)", minChartSide, cfg.ChartHeight)
		cfg.ChartHeight = minChartSide
	}

	cfg.ExportXLSX = firstNonEmpty(os.Getenv("EXPORT_XLSX"), file.ExportXLSX)
	cfg.ExportCSV = firstNonEmpty(os.Getenv("EXPORT_CSV"), file.ExportCSV)
	cfg.Schedule = strings.TrimSpace(firstNonEmpty(os.Getenv("SCHEDULE"), file.Schedule))
	cfg.SlackWebhookURL = strings.TrimSpace(firstNonEmpty(os.Getenv("SLACK_WEBHOOK_URL"), file.SlackWebhookURL))
	cfg.MetricsTextfile = firstNonEmpty(os.Getenv("METRICS_TEXTFILE"), file.MetricsTextfile)
}

func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if len(data) == 0 {
		return cfg, errors.New("empty config file")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.SubmissionsPath) == "" {
		return errors.New("SUBMISSIONS_PATH is required")
	}
	if strings.TrimSpace(cfg.ResponsesPath) == "" {
		return errors.New("RESPONSES_PATH is required")
	}
	if cfg.DedupPolicy != "consecutive" && cfg.DedupPolicy != "since_last_kept" {
		return fmt.Errorf("DEDUP_POLICY must be consecutive or since_last_kept (got %q)", cfg.DedupPolicy)
	}
	cols := cfg.Columns
	if cols.Submissions.SubjectID == "" || cols.Submissions.SubmissionID == "" || cols.Submissions.CreatedAt == "" {
		return errors.New("columns.submissions requires subject_id, submission_id and created_at")
	}
	if cols.Responses.SubjectID == "" || cols.Responses.TimeResponded == "" {
		return errors.New("columns.responses requires subject_id and time_responded")
	}
	if cfg.Schedule != "" {
		if _, err := schedule.Parser.Parse(cfg.Schedule); err != nil {
			return fmt.Errorf("invalid SCHEDULE %q: %w", cfg.Schedule, err)
		}
	}
	return nil
}

func applyColumnOverrides(base Columns, override Columns) Columns {
	set := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&base.Submissions.SubjectID, override.Submissions.SubjectID)
	set(&base.Submissions.SubmissionID, override.Submissions.SubmissionID)
	set(&base.Submissions.CreatedAt, override.Submissions.CreatedAt)
	set(&base.Submissions.Team, override.Submissions.Team)
	set(&base.Responses.SubjectID, override.Responses.SubjectID)
	set(&base.Responses.TimeResponded, override.Responses.TimeResponded)
	set(&base.Responses.Team, override.Responses.Team)
	return base
}

func boolSetting(key string, file *bool, def bool) bool {
	if strings.TrimSpace(os.Getenv(key)) != "" {
		return parseBoolEnv(key)
	}
	if file != nil {
		return *file
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return val
		}
	}
	return ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	return false
}

func parseIntEnv(key string) (int, bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false, nil
	}
	val, err := strconv.Atoi(raw)
	return val, true, err
}

func parseFloatEnv(key string) (float64, bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false, nil
	}
	val, err := strconv.ParseFloat(raw, 64)
	return val, true, err
}
