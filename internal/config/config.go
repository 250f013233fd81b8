package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"github.com/M1229012/Stock-V116-sub000/internal/risk"
	"github.com/M1229012/Stock-V116-sub000/internal/simulator"
)

// EnvPrefix namespaces every environment variable, e.g. DISPO_SERVER_PORT.
const EnvPrefix = "DISPO"

// Config represents the complete application configuration
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Rules     RulesConfig     `yaml:"rules" envconfig:"RULES"`
	Risk      risk.Params     `yaml:"risk" envconfig:"RISK"`
	Bulletin  BulletinConfig  `yaml:"bulletin" envconfig:"BULLETIN"`
	Market    MarketConfig    `yaml:"market" envconfig:"MARKET"`
	Store     StoreConfig     `yaml:"store" envconfig:"STORE"`
	Notify    NotifyConfig    `yaml:"notify" envconfig:"NOTIFY"`
	Scraper   ScraperConfig   `yaml:"scraper" envconfig:"SCRAPER"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	Scan      ScanConfig      `yaml:"scan" envconfig:"SCAN"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
	// Format is json for machine ingestion or text for a terminal.
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
}

// RulesConfig holds the regulatory tables. Tracks are only configurable
// from the YAML file.
type RulesConfig struct {
	WindowSize       int               `yaml:"window_size" envconfig:"WINDOW_SIZE" validate:"min=1"`
	SafeHarbor       bool              `yaml:"safe_harbor" envconfig:"SAFE_HARBOR"`
	CountingClauses  []int             `yaml:"counting_clauses" envconfig:"COUNTING_CLAUSES" validate:"min=1,dive,min=1"`
	SpecialClauses   []int             `yaml:"special_clauses" envconfig:"SPECIAL_CLAUSES" validate:"dive,min=1"`
	ExtendingClauses []int             `yaml:"extending_clauses" envconfig:"EXTENDING_CLAUSES" validate:"dive,min=1"`
	Tracks           []simulator.Track `yaml:"tracks" ignored:"true" validate:"min=1"`
}

// BulletinConfig points at the exchanges' announcement feeds.
type BulletinConfig struct {
	TWSEAttentionURL string        `yaml:"twse_attention_url" envconfig:"TWSE_ATTENTION_URL" validate:"required,url"`
	TWSEDisposalURL  string        `yaml:"twse_disposal_url" envconfig:"TWSE_DISPOSAL_URL" validate:"required,url"`
	TPExAttentionURL string        `yaml:"tpex_attention_url" envconfig:"TPEX_ATTENTION_URL" validate:"required,url"`
	TPExDisposalURL  string        `yaml:"tpex_disposal_url" envconfig:"TPEX_DISPOSAL_URL" validate:"required,url"`
	Timeout          time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
	RPS              float64       `yaml:"rps" envconfig:"RPS" validate:"gt=0"`
	Burst            int           `yaml:"burst" envconfig:"BURST" validate:"min=1"`
	MaxRetries       int           `yaml:"max_retries" envconfig:"MAX_RETRIES" validate:"min=0"`
	DisposalLookback int           `yaml:"disposal_lookback_days" envconfig:"DISPOSAL_LOOKBACK_DAYS" validate:"min=1"`
}

// MarketConfig points at the quote and fundamentals providers.
type MarketConfig struct {
	ChartURL       string        `yaml:"chart_url" envconfig:"CHART_URL" validate:"required,url"`
	ValuationURL   string        `yaml:"valuation_url" envconfig:"VALUATION_URL" validate:"required,url"`
	DayTradeURL    string        `yaml:"day_trade_url" envconfig:"DAY_TRADE_URL" validate:"required,url"`
	CalendarSymbol string        `yaml:"calendar_symbol" envconfig:"CALENDAR_SYMBOL" validate:"required"`
	HistoryRange   string        `yaml:"history_range" envconfig:"HISTORY_RANGE" validate:"required"`
	Timeout        time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
	RPS            float64       `yaml:"rps" envconfig:"RPS" validate:"gt=0"`
	Burst          int           `yaml:"burst" envconfig:"BURST" validate:"min=1"`
	MaxRetries     int           `yaml:"max_retries" envconfig:"MAX_RETRIES" validate:"min=0"`
	// RetryFailedAfter is how long a missing exchange table is remembered
	// before it is fetched again. Zero refetches on every lookup.
	RetryFailedAfter time.Duration `yaml:"retry_failed_after" envconfig:"RETRY_FAILED_AFTER" validate:"gte=0"`
}

// StoreConfig selects where the historical log lives and where reports go.
type StoreConfig struct {
	Backend         string `yaml:"backend" envconfig:"BACKEND" validate:"oneof=excel sheets"`
	ExcelPath       string `yaml:"excel_path" envconfig:"EXCEL_PATH" validate:"required_if=Backend excel"`
	LogSheet        string `yaml:"log_sheet" envconfig:"LOG_SHEET" validate:"required"`
	DisposalSheet   string `yaml:"disposal_sheet" envconfig:"DISPOSAL_SHEET" validate:"required"`
	ReportSheet     string `yaml:"report_sheet" envconfig:"REPORT_SHEET" validate:"required"`
	SpreadsheetID   string `yaml:"spreadsheet_id" envconfig:"SPREADSHEET_ID" validate:"required_if=Backend sheets"`
	CredentialsFile string `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE"`
	// CSVDir, when set, also receives each report as a CSV file.
	CSVDir string `yaml:"csv_dir" envconfig:"CSV_DIR"`
}

// NotifyConfig configures the Discord summary.
type NotifyConfig struct {
	Enabled    bool          `yaml:"enabled" envconfig:"ENABLED"`
	WebhookURL string        `yaml:"webhook_url" envconfig:"WEBHOOK_URL" validate:"required_if=Enabled true,omitempty,url"`
	Timeout    time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
	MaxRows    int           `yaml:"max_rows" envconfig:"MAX_ROWS" validate:"min=1"`
}

// ScraperConfig configures the headless concentration scraper.
type ScraperConfig struct {
	Enabled  bool          `yaml:"enabled" envconfig:"ENABLED"`
	URL      string        `yaml:"url" envconfig:"URL" validate:"required,url"`
	Headless bool          `yaml:"headless" envconfig:"HEADLESS"`
	Timeout  time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
}

// TelemetryConfig configures OpenTelemetry.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME" validate:"required"`
	Environment    string `yaml:"environment" envconfig:"ENVIRONMENT"`
	TracingEnabled bool   `yaml:"tracing_enabled" envconfig:"TRACING_ENABLED"`
	MetricsEnabled bool   `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED"`
	// TraceSampleRatio samples root spans; 0 samples all of them.
	TraceSampleRatio float64 `yaml:"trace_sample_ratio" envconfig:"TRACE_SAMPLE_RATIO" validate:"gte=0,lte=1"`
}

// ScanConfig configures one evaluation run.
type ScanConfig struct {
	Concurrency int           `yaml:"concurrency" envconfig:"CONCURRENCY" validate:"min=1,max=64"`
	Timeout     time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
	// EvalDate pins the evaluation date (YYYY-MM-DD); empty means the latest
	// trading day in the calendar.
	EvalDate     string `yaml:"eval_date" envconfig:"EVAL_DATE"`
	CalendarDays int    `yaml:"calendar_days" envconfig:"CALENDAR_DAYS" validate:"min=1"`
	Ingest       bool   `yaml:"ingest" envconfig:"INGEST"`
	// Interval schedules repeated scans in the web server; zero disables it.
	Interval time.Duration `yaml:"interval" envconfig:"INTERVAL" validate:"gte=0"`
}

// Load builds the configuration from defaults, then the YAML file if one is
// found, then environment variables. Later sources win.
func Load() (*Config, error) {
	cfg := Default()

	if path := getConfigFilePath(); path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// resolvePaths anchors relative file locations at the executable directory.
func (c *Config) resolvePaths() error {
	paths, err := GetPaths()
	if err != nil {
		return err
	}
	c.Logging.FilePath = paths.Resolve(c.Logging.FilePath)
	c.Store.ExcelPath = paths.Resolve(c.Store.ExcelPath)
	if c.Store.CSVDir != "" {
		c.Store.CSVDir = paths.Resolve(c.Store.CSVDir)
	}
	if c.Store.CredentialsFile == "" {
		c.Store.CredentialsFile = paths.CredentialsFile
	} else {
		c.Store.CredentialsFile = paths.Resolve(c.Store.CredentialsFile)
	}
	return nil
}

// Validate checks struct constraints and the cross-field rules that tags
// cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	for _, t := range c.Rules.Tracks {
		if err := t.Validate(c.Rules.WindowSize); err != nil {
			return fmt.Errorf("rules: %w", err)
		}
	}
	if c.Scan.EvalDate != "" {
		if _, err := time.Parse(time.DateOnly, c.Scan.EvalDate); err != nil {
			return fmt.Errorf("scan eval_date %q: %w", c.Scan.EvalDate, err)
		}
	}
	if c.Scan.CalendarDays < c.Rules.WindowSize {
		return fmt.Errorf("scan calendar_days %d shorter than rules window_size %d",
			c.Scan.CalendarDays, c.Rules.WindowSize)
	}
	return nil
}

// getConfigFilePath returns DISPO_CONFIG_FILE or the first config file found
// in the usual locations.
func getConfigFilePath() string {
	if path := os.Getenv(EnvPrefix + "_CONFIG_FILE"); path != "" {
		return path
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}
	if paths, err := GetPaths(); err == nil {
		locations = append(locations, filepath.Join(paths.ExecutableDir, "config.yaml"))
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Default returns default configuration
func Default() *Config {
	tracks := make([]simulator.Track, len(simulator.DefaultTracks))
	copy(tracks, simulator.DefaultTracks)

	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "both",
			FilePath: "logs/scanner.log",
			Format:   "json",
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    5 * time.Minute,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Rules: RulesConfig{
			WindowSize:       simulator.DefaultWindowSize,
			CountingClauses:  []int{1, 2, 3, 4, 5, 6, 7, 8},
			SpecialClauses:   []int{14},
			ExtendingClauses: []int{13},
			Tracks:           tracks,
		},
		Risk: risk.DefaultParams(),
		Bulletin: BulletinConfig{
			TWSEAttentionURL: "https://www.twse.com.tw/rwd/zh/announcement/notice",
			TWSEDisposalURL:  "https://www.twse.com.tw/rwd/zh/announcement/punish",
			TPExAttentionURL: "https://www.tpex.org.tw/www/zh-tw/bulletin/attention",
			TPExDisposalURL:  "https://www.tpex.org.tw/www/zh-tw/bulletin/disposal",
			Timeout:          20 * time.Second,
			RPS:              0.5,
			Burst:            1,
			MaxRetries:       3,
			DisposalLookback: 60,
		},
		Market: MarketConfig{
			ChartURL:         "https://query1.finance.yahoo.com/v8/finance/chart",
			ValuationURL:     "https://www.twse.com.tw/rwd/zh/afterTrading/BWIBBU_d",
			DayTradeURL:      "https://www.twse.com.tw/rwd/zh/dayTrading/TWTB4U",
			CalendarSymbol:   "^TWII",
			HistoryRange:     "6mo",
			Timeout:          15 * time.Second,
			RPS:              2,
			Burst:            2,
			MaxRetries:       3,
			RetryFailedAfter: 10 * time.Minute,
		},
		Store: StoreConfig{
			Backend:       "excel",
			ExcelPath:     "data/disposal_watch.xlsx",
			LogSheet:      "每日紀錄",
			DisposalSheet: "處置紀錄",
			ReportSheet:   "處置預估",
		},
		Notify: NotifyConfig{
			Timeout: 10 * time.Second,
			MaxRows: 20,
		},
		Scraper: ScraperConfig{
			URL:      "https://norway.twsthr.info/StockHolders.aspx",
			Headless: true,
			Timeout:  45 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "disposal-watch",
			Environment:    "production",
			TracingEnabled: true,
			MetricsEnabled: true,
		},
		Scan: ScanConfig{
			Concurrency:  4,
			Timeout:      30 * time.Minute,
			CalendarDays: 90,
			Ingest:       true,
		},
	}
}
