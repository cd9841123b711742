package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	log "github.com/sirupsen/logrus"
	"github.com/titanous/json5"
)

type HTTP struct {
	Addr        string   `json:"addr"`
	CorsOrigins []string `json:"cors_origins"`
}

type Database struct {
	URL string `json:"url"`
}

type Redis struct {
	URL string `json:"url"`
}

type Restaurant struct {
	BaseURL          string `json:"base_url"`
	LoginPath        string `json:"login_path"`
	LoginAPIPath     string `json:"login_api_path"`
	LocalesPath      string `json:"locales_path"`
	DeliveryPath     string `json:"delivery_path"`
	ReportPath       string `json:"report_path"`
	UserAgent        string `json:"user_agent"`
	CloudflareBypass bool   `json:"cloudflare_bypass"`
	TimeoutSeconds   int    `json:"timeout_seconds"`
}

func (r Restaurant) URL(path string) string {
	return strings.TrimRight(r.BaseURL, "/") + path
}

type Scheduler struct {
	DeliveriesIntervalSeconds int `json:"deliveries_interval_seconds"`
	DelayBetweenLocalesMillis int `json:"delay_between_locales_millis"`
	LocalesIntervalSeconds    int `json:"locales_interval_seconds"`
	LoginRefreshHours         int `json:"login_refresh_hours"`
	MaxDeliveriesPerLocal     int `json:"max_deliveries_per_local"`
	DeliveriesPageSize        int `json:"deliveries_page_size"`
}

type OpeningHours struct {
	OpenAt  string `json:"open_at"`
	CloseAt string `json:"close_at"`
}

type Locales struct {
	BlacklistIDs []string          `json:"blacklist_ids"`
	Rename       map[string]string `json:"rename"`
}

type Didi struct {
	MapaFile        string   `json:"mapa_file"`
	Blacklist       []string `json:"blacklist"`
	StaleSeconds    int      `json:"stale_seconds"`
	BroadcastMillis int      `json:"broadcast_millis"`
	ConsoleURL      string   `json:"console_url"`
	CaptureEndpoint string   `json:"capture_endpoint"`
}

type Auth struct {
	JWTSecret string `json:"jwt_secret"`
	TTLHours  int    `json:"ttl_hours"`
}

type SFTP struct {
	Server         string `json:"server"`
	Username       string `json:"username"`
	PrivateKeyFile string `json:"private_key_file"`
	HostKey        string `json:"host_key"`
	RemoteDir      string `json:"remote_dir"`
}

type SMTP struct {
	Server       string   `json:"server"`
	Port         int      `json:"port"`
	EmailAddress string   `json:"email_address"`
	Password     string   `json:"password"`
	Recipients   []string `json:"recipients"`
}

type Sheets struct {
	SpreadsheetID   string `json:"spreadsheet_id"`
	SheetName       string `json:"sheet_name"`
	CredentialsFile string `json:"credentials_file"`
}

type Config struct {
	LogLevel     string       `json:"log_level"`
	LogJSON      bool         `json:"log_json"`
	DataDir      string       `json:"data_dir"`
	HTTP         HTTP         `json:"http"`
	Database     Database     `json:"database"`
	Redis        Redis        `json:"redis"`
	Restaurant   Restaurant   `json:"restaurant"`
	Scheduler    Scheduler    `json:"scheduler"`
	OpeningHours OpeningHours `json:"opening_hours"`
	Locales      Locales      `json:"locales"`
	Didi         Didi         `json:"didi"`
	Auth         Auth         `json:"auth"`
	SFTP         SFTP         `json:"sftp"`
	SMTP         SMTP         `json:"smtp"`
	Sheets       Sheets       `json:"sheets"`
}

func Default() Config {
	return Config{
		LogLevel: "info",
		DataDir:  "data",
		HTTP: HTTP{
			Addr: ":8000",
		},
		Database: Database{
			URL: "sqlite://data/restaurant.db",
		},
		Restaurant: Restaurant{
			BaseURL:        "http://salchimonster.restaurant.pe",
			LoginPath:      "/restaurant/#!/login",
			LoginAPIPath:   "/restaurant/m/rest/usuario/login",
			LocalesPath:    "/restaurant/api/rest/local/getLocalesPermitidos/0",
			DeliveryPath:   "/restaurant/api/rest/delivery",
			ReportPath:     "/restaurant/api/reports/report.php",
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			TimeoutSeconds: 60,
		},
		Scheduler: Scheduler{
			DeliveriesIntervalSeconds: 120,
			DelayBetweenLocalesMillis: 5000,
			LocalesIntervalSeconds:    600,
			LoginRefreshHours:         12,
			MaxDeliveriesPerLocal:     100,
			DeliveriesPageSize:        50,
		},
		OpeningHours: OpeningHours{
			OpenAt:  "12:30",
			CloseAt: "00:00",
		},
		Didi: Didi{
			MapaFile:        "data/didi/mapa_restaurant_didi.yaml",
			StaleSeconds:    36,
			BroadcastMillis: 5000,
			ConsoleURL:      "https://didi-food.com/es-CO/store/pc/",
			CaptureEndpoint: "http://localhost:8000/didi/capture",
		},
		Auth: Auth{
			TTLHours: 24 * 30,
		},
		SMTP: SMTP{
			Port: 587,
		},
		Sheets: Sheets{
			SheetName: "Resumen",
		},
	}
}

func splitExt(f string) (string, string) {
	ext := filepath.Ext(f)
	return strings.TrimSuffix(f, ext), strings.TrimPrefix(ext, ".")
}

// Read merges <name>.json5 and <name>.local.json5 over the defaults, the local file
// winning. Environment variables are applied last. A missing file is not an error.
func Read(name string) (Config, error) {
	cfg := Default()

	prefix, ext := splitExt(name)
	files := []string{name, fmt.Sprintf("%s.local.%s", prefix, ext)}

	for _, file := range files {
		raw, err := os.ReadFile(file)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return cfg, fmt.Errorf("Read: failed to read %s: %w", file, err)
		}

		var override Config
		if err = json5.Unmarshal(raw, &override); err != nil {
			return cfg, fmt.Errorf("Read: failed to parse %s: %w", file, err)
		}

		if err = mergo.Merge(&cfg, override, mergo.WithOverride); err != nil {
			return cfg, fmt.Errorf("Read: failed to merge %s: %w", file, err)
		}

		log.Debugf("merged config file %s", file)
	}

	applyEnv(&cfg)

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

func (c Config) UploadsDir() string {
	return filepath.Join(c.DataDir, "uploads")
}

func (c Config) PlanillasDir() string {
	return filepath.Join(c.DataDir, "planillas")
}

func (c Config) ReportsDir() string {
	return filepath.Join(c.DataDir, "reports")
}

// SetupLogging configures the global logrus logger.
func (c Config) SetupLogging() {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if c.LogJSON {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
