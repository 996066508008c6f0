// config/config.go
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jrkim3888/airplane-ticket-price-tracker/models"
	"github.com/jrkim3888/airplane-ticket-price-tracker/utils"
)

const (
	DefaultURLTemplate = "https://flight.naver.com/flights/international/" +
		"{origin}-{destination}-{depart_date}/{destination}-{origin}-{return_date}" +
		"?adult={adults}&fareType=Y"

	EnvDiscordToken = "FARETRACK_DISCORD_TOKEN"
	EnvDBPassword   = "FARETRACK_DB_PASSWORD"
	EnvRenderURL    = "FARETRACK_RENDER_URL"
)

type CutoffDefaults struct {
	DepartTimeFrom int `yaml:"depart_time_from"`
	ReturnTimeFrom int `yaml:"return_time_from"`
}

// RouteConfig is one entry of `routes:`. Nil cutoffs fall back to `defaults:`.
type RouteConfig struct {
	ID             int    `yaml:"id"`
	Origin         string `yaml:"origin"`
	Destination    string `yaml:"destination"`
	Label          string `yaml:"label"`
	DepartTimeFrom *int   `yaml:"depart_time_from"`
	ReturnTimeFrom *int   `yaml:"return_time_from"`
}

// ExtraDate is a one-off (depart, return) pair scanned in addition to the patterns.
type ExtraDate struct {
	Depart models.Date `yaml:"depart"`
	Return models.Date `yaml:"return"`
}

type ScanConfig struct {
	Weeks       int    `yaml:"weeks"`
	URLTemplate string `yaml:"url_template"`
	DelayMinStr string `yaml:"delay_min"`
	DelayMaxStr string `yaml:"delay_max"`
	// MaxRetries is a pointer so that an explicit 0 can be told apart from unset.
	MaxRetries    *int   `yaml:"max_retries"`
	MissThreshold int    `yaml:"miss_threshold"`
	MinTextLength int    `yaml:"min_text_length"`
	Pax3Probe     bool   `yaml:"pax3_probe"`
	Schedule      string `yaml:"schedule"`

	DelayMin time.Duration `yaml:"-"`
	DelayMax time.Duration `yaml:"-"`
}

// Retries returns the configured retry budget per window.
func (s ScanConfig) Retries() int {
	if s.MaxRetries == nil {
		return 1
	}
	return *s.MaxRetries
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "sqlite" or "mysql"
	Path     string `yaml:"path"`   // sqlite only
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}

type RenderConfig struct {
	BaseURL    string `yaml:"base_url"`
	TimeoutStr string `yaml:"timeout"`
	WaitStr    string `yaml:"wait"`
	Selector   string `yaml:"selector"`
	UserAgent  string `yaml:"user_agent"`

	Timeout time.Duration `yaml:"-"`
	Wait    time.Duration `yaml:"-"`
}

type DiscordConfig struct {
	ChannelID string `yaml:"channel_id"`
	Token     string `yaml:"token"`
	APIBase   string `yaml:"api_base"`
}

// Enabled reports whether alerts can actually be delivered.
func (d DiscordConfig) Enabled() bool {
	return d.ChannelID != "" && d.Token != ""
}

type BriefingConfig struct {
	Hours []int `yaml:"hours"`
}

type ExportConfig struct {
	Path         string `yaml:"path"`
	CSVPath      string `yaml:"csv_path"`
	HistoryLimit int    `yaml:"history_limit"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

// Config is loaded once at startup and then only read. Components receive
// it (or the sub-struct they need) explicitly.
type Config struct {
	Timezone          string               `yaml:"timezone"`
	DesignatedCarrier string               `yaml:"designated_carrier"`
	Defaults          CutoffDefaults       `yaml:"defaults"`
	RouteEntries      []RouteConfig        `yaml:"routes"`
	TripPatterns      []models.TripPattern `yaml:"trip_patterns"`
	ExtraDates        []ExtraDate          `yaml:"extra_dates"`
	Scan              ScanConfig           `yaml:"scan"`
	Database          DatabaseConfig       `yaml:"database"`
	Render            RenderConfig         `yaml:"render"`
	Discord           DiscordConfig        `yaml:"discord"`
	Briefing          BriefingConfig       `yaml:"briefing"`
	Export            ExportConfig         `yaml:"export"`
	Server            ServerConfig         `yaml:"server"`

	routes []models.Route
}

// Routes returns the resolved routes (ids assigned, codes normalized,
// cutoffs defaulted). The slice is a copy.
func (c *Config) Routes() []models.Route {
	out := make([]models.Route, len(c.routes))
	copy(out, c.routes)
	return out
}

// Route looks a resolved route up by id.
func (c *Config) Route(id int) (models.Route, bool) {
	for _, r := range c.routes {
		if r.ID == id {
			return r, true
		}
	}
	return models.Route{}, false
}

// Extras converts the one-off date pairs into windows.
func (c *Config) Extras() []models.ScanWindow {
	out := make([]models.ScanWindow, 0, len(c.ExtraDates))
	for _, e := range c.ExtraDates {
		out = append(out, models.ScanWindow{Depart: e.Depart, Return: e.Return})
	}
	return out
}

// LocalOverridePath maps "config/config.yaml" to "config/config.local.yaml".
func LocalOverridePath(configPath string) string {
	ext := filepath.Ext(configPath)
	return strings.TrimSuffix(configPath, ext) + ".local" + ext
}

// Load reads configPath, merges an optional <name>.local.<ext> on top,
// loads .env files (next to the config and in the working directory) and
// applies environment overrides before validating.
func Load(configPath string) (*Config, error) {
	loadDotEnv(filepath.Join(filepath.Dir(configPath), ".env"), ".env")

	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	localPath := LocalOverridePath(configPath)
	localFile, err := os.ReadFile(localPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read local config file: %w", err)
	}
	if len(localFile) > 0 {
		var override Config
		if err := yaml.Unmarshal(localFile, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal local config: %w", err)
		}
		if err := mergo.Merge(&cfg, override, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge local config: %w", err)
		}
		slog.Info("Config: merged local overrides", "local", localPath)
	}

	applyEnv(&cfg)
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Parse builds a Config from YAML bytes without touching files or the
// environment.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			slog.Warn("Config: could not load env file", "path", p, "err", err)
		}
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvDiscordToken); v != "" {
		cfg.Discord.Token = v
	}
	if v := os.Getenv(EnvDBPassword); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv(EnvRenderURL); v != "" {
		cfg.Render.BaseURL = v
	}
}

func (c *Config) finalize() error {
	c.applyDefaults()

	var err error
	if c.Scan.DelayMin, err = time.ParseDuration(c.Scan.DelayMinStr); err != nil {
		return fmt.Errorf("failed to parse scan.delay_min: %w", err)
	}
	if c.Scan.DelayMax, err = time.ParseDuration(c.Scan.DelayMaxStr); err != nil {
		return fmt.Errorf("failed to parse scan.delay_max: %w", err)
	}
	if c.Render.Timeout, err = time.ParseDuration(c.Render.TimeoutStr); err != nil {
		return fmt.Errorf("failed to parse render.timeout: %w", err)
	}
	if c.Render.Wait, err = time.ParseDuration(c.Render.WaitStr); err != nil {
		return fmt.Errorf("failed to parse render.wait: %w", err)
	}

	c.resolveRoutes()
	return c.validate()
}

func (c *Config) applyDefaults() {
	if c.Timezone == "" {
		c.Timezone = "Asia/Seoul"
	}
	if c.DesignatedCarrier == "" {
		c.DesignatedCarrier = "대한항공"
	}
	if c.Defaults.DepartTimeFrom == 0 && c.Defaults.ReturnTimeFrom == 0 {
		c.Defaults = CutoffDefaults{DepartTimeFrom: 18, ReturnTimeFrom: 16}
	}
	if len(c.TripPatterns) == 0 {
		c.TripPatterns = []models.TripPattern{
			{Name: "금-일", DepartWeekday: models.Friday, ReturnWeekday: models.Sunday},
		}
	}
	if c.Scan.Weeks == 0 {
		c.Scan.Weeks = 16
	}
	if c.Scan.URLTemplate == "" {
		c.Scan.URLTemplate = DefaultURLTemplate
	}
	if c.Scan.DelayMinStr == "" {
		c.Scan.DelayMinStr = "2s"
	}
	if c.Scan.DelayMaxStr == "" {
		c.Scan.DelayMaxStr = "5s"
	}
	if c.Scan.MissThreshold == 0 {
		c.Scan.MissThreshold = 1
	}
	if c.Scan.MinTextLength == 0 {
		c.Scan.MinTextLength = 100
	}
	if c.Scan.Schedule == "" {
		c.Scan.Schedule = "30 */3 * * *"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "flight_tracker.db"
	}
	if c.Database.Port == "" {
		c.Database.Port = "3306"
	}
	if c.Render.BaseURL == "" {
		c.Render.BaseURL = "http://localhost:3000"
	}
	if c.Render.TimeoutStr == "" {
		c.Render.TimeoutStr = "60s"
	}
	if c.Render.WaitStr == "" {
		c.Render.WaitStr = "8s"
	}
	if c.Render.Selector == "" {
		c.Render.Selector = "main"
	}
	if c.Render.UserAgent == "" {
		c.Render.UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
			"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	}
	if c.Discord.APIBase == "" {
		c.Discord.APIBase = "https://discord.com/api/v10"
	}
	if len(c.Briefing.Hours) == 0 {
		c.Briefing.Hours = []int{9, 13, 17, 21}
	}
	if c.Export.Path == "" {
		c.Export.Path = "data/flights.json"
	}
	if c.Export.HistoryLimit == 0 {
		c.Export.HistoryLimit = 200
	}
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
}

func (c *Config) resolveRoutes() {
	c.routes = make([]models.Route, 0, len(c.RouteEntries))
	for i, rc := range c.RouteEntries {
		r := models.Route{
			ID:             rc.ID,
			Origin:         utils.NormalizeAirportCode(rc.Origin),
			Destination:    utils.NormalizeAirportCode(rc.Destination),
			Label:          rc.Label,
			DepartTimeFrom: c.Defaults.DepartTimeFrom,
			ReturnTimeFrom: c.Defaults.ReturnTimeFrom,
		}
		if r.ID == 0 {
			r.ID = i + 1
		}
		if r.Label == "" {
			r.Label = r.Destination
		}
		if rc.DepartTimeFrom != nil {
			r.DepartTimeFrom = *rc.DepartTimeFrom
		}
		if rc.ReturnTimeFrom != nil {
			r.ReturnTimeFrom = *rc.ReturnTimeFrom
		}
		c.routes = append(c.routes, r)
	}
}

func validHour(h int) bool { return h >= 0 && h <= 23 }

func (c *Config) validate() error {
	var errs []error
	if len(c.routes) == 0 {
		errs = append(errs, errors.New("at least one route is required"))
	}
	seen := map[int]bool{}
	for _, r := range c.routes {
		if seen[r.ID] {
			errs = append(errs, fmt.Errorf("duplicate route id %d", r.ID))
		}
		seen[r.ID] = true
		if !utils.IsIATACode(r.Origin) || !utils.IsIATACode(r.Destination) {
			errs = append(errs, fmt.Errorf("route %d: invalid airport code %q/%q", r.ID, r.Origin, r.Destination))
		}
		if r.Origin == r.Destination {
			errs = append(errs, fmt.Errorf("route %d: origin equals destination", r.ID))
		}
		if !validHour(r.DepartTimeFrom) || !validHour(r.ReturnTimeFrom) {
			errs = append(errs, fmt.Errorf("route %d: cutoff hours must be within 0-23", r.ID))
		}
	}
	for _, p := range c.TripPatterns {
		if !p.DepartWeekday.Valid() || !p.ReturnWeekday.Valid() {
			errs = append(errs, fmt.Errorf("trip pattern %q: weekdays must be within 0-6", p.Name))
		}
	}
	for _, e := range c.ExtraDates {
		if e.Depart.IsZero() || e.Return.IsZero() || e.Return.Before(e.Depart) {
			errs = append(errs, fmt.Errorf("extra date %s/%s: return must not precede depart", e.Depart, e.Return))
		}
	}
	if c.Scan.Weeks < 0 {
		errs = append(errs, errors.New("scan.weeks must not be negative"))
	}
	if c.Scan.DelayMin < 0 || c.Scan.DelayMax < c.Scan.DelayMin {
		errs = append(errs, errors.New("scan.delay_min must be >= 0 and <= scan.delay_max"))
	}
	if c.Scan.Retries() < 0 {
		errs = append(errs, errors.New("scan.max_retries must not be negative"))
	}
	if c.Scan.MissThreshold < 1 {
		errs = append(errs, errors.New("scan.miss_threshold must be at least 1"))
	}
	for _, h := range c.Briefing.Hours {
		if !validHour(h) {
			errs = append(errs, fmt.Errorf("briefing hour %d out of range", h))
		}
	}
	switch c.Database.Driver {
	case "sqlite":
	case "mysql":
		if c.Database.DBName == "" {
			errs = append(errs, errors.New("database.dbname is required for mysql"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}
	if c.Export.HistoryLimit < 0 {
		errs = append(errs, errors.New("export.history_limit must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
