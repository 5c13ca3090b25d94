package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds file- and environment-driven configuration. Environment
// variables override values read from the YAML file.
type Config struct {
	Marvin struct {
		APIToken string `yaml:"api_token"`
		APIURL   string `yaml:"api_url"`   // default: https://serv.amazingmarvin.com/api
		CouchURL string `yaml:"couch_url"` // e.g., https://account.cloudant.com
		Database string `yaml:"database"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
	} `yaml:"marvin"`
	Notion struct {
		Token     string `yaml:"token"`
		BaseURL   string `yaml:"base_url"` // default: https://api.notion.com
		Databases struct {
			Tasks         string `yaml:"tasks"`
			Projects      string `yaml:"projects"`
			Activities    string `yaml:"activities"`
			Pillars       string `yaml:"pillars"`
			Subcategories string `yaml:"subcategories"`
			Goals         string `yaml:"goals"`
			Weeks         string `yaml:"weeks"`
			Months        string `yaml:"months"`
			Quarters      string `yaml:"quarters"`
			Trackers      string `yaml:"trackers"`
			DailyTracking string `yaml:"daily_tracking"`
			Steps         string `yaml:"steps"`
		} `yaml:"databases"`
	} `yaml:"notion"`
	Garmin struct {
		Token   string `yaml:"token"` // empty disables the activities and daily stages
		BaseURL string `yaml:"base_url"`
	} `yaml:"garmin"`
	MySQL struct {
		DSN string `yaml:"dsn"` // e.g., user:pass@tcp(host:3306)/dbname?parseTime=true&multiStatements=true
	} `yaml:"mysql"`
	Sync struct {
		Timezone string        `yaml:"timezone"` // default: America/New_York
		Window   time.Duration `yaml:"window"`   // default: 30m
		Rate     time.Duration `yaml:"rate"`     // minimum spacing of outbound calls, default: 3s
		Horizon  int           `yaml:"horizon"`  // days ahead, default: 14
		Reverse  bool          `yaml:"reverse"`
		Timeout  time.Duration `yaml:"timeout"` // per run, default: 10m
	} `yaml:"sync"`
	HTTP struct {
		Addr string `yaml:"addr"` // default: :8080
	} `yaml:"http"`
	Schedule Schedule `yaml:"schedule"`
}

// Schedule holds the cron specs of the serve mode. An empty spec disables
// the job.
type Schedule struct {
	Tasks      string `yaml:"tasks"`      // default: */15 * * * *
	Today      string `yaml:"today"`      // trackers and today, default: 0 5 * * *
	Activities string `yaml:"activities"` // activities and daily totals, default: 0 * * * *
}

// Load reads the optional YAML file at path, then environment variables.
func Load(path string) (Config, error) {
	var cfg Config

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	str(&cfg.Marvin.APIToken, "MARVIN_API_TOKEN")
	str(&cfg.Marvin.APIURL, "MARVIN_API_URL")
	str(&cfg.Marvin.CouchURL, "MARVIN_COUCH_URL")
	str(&cfg.Marvin.Database, "MARVIN_DATABASE")
	str(&cfg.Marvin.User, "MARVIN_USER")
	str(&cfg.Marvin.Password, "MARVIN_PASSWORD")

	str(&cfg.Notion.Token, "NOTION_TOKEN")
	str(&cfg.Notion.BaseURL, "NOTION_BASE_URL")
	dbs := &cfg.Notion.Databases
	str(&dbs.Tasks, "NOTION_TASKS_DB")
	str(&dbs.Projects, "NOTION_PROJECTS_DB")
	str(&dbs.Activities, "NOTION_ACTIVITIES_DB")
	str(&dbs.Pillars, "NOTION_PILLARS_DB")
	str(&dbs.Subcategories, "NOTION_SUBCATEGORIES_DB")
	str(&dbs.Goals, "NOTION_GOALS_DB")
	str(&dbs.Weeks, "NOTION_WEEKS_DB")
	str(&dbs.Months, "NOTION_MONTHS_DB")
	str(&dbs.Quarters, "NOTION_QUARTERS_DB")
	str(&dbs.Trackers, "NOTION_TRACKERS_DB")
	str(&dbs.DailyTracking, "NOTION_DAILY_TRACKING_DB")
	str(&dbs.Steps, "NOTION_STEPS_DB")

	str(&cfg.Garmin.Token, "GARMIN_TOKEN")
	str(&cfg.Garmin.BaseURL, "GARMIN_BASE_URL")

	str(&cfg.MySQL.DSN, "MYSQL_DSN")

	str(&cfg.Sync.Timezone, "SYNC_TZ")
	if err := duration(&cfg.Sync.Window, "SYNC_WINDOW"); err != nil {
		return cfg, err
	}
	if err := duration(&cfg.Sync.Rate, "SYNC_RATE"); err != nil {
		return cfg, err
	}
	if err := duration(&cfg.Sync.Timeout, "SYNC_TIMEOUT"); err != nil {
		return cfg, err
	}
	if v := os.Getenv("SYNC_HORIZON_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return cfg, errors.New("SYNC_HORIZON_DAYS must be a non-negative integer")
		}
		cfg.Sync.Horizon = n
	}
	if v := os.Getenv("SYNC_REVERSE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, errors.New("SYNC_REVERSE must be a boolean")
		}
		cfg.Sync.Reverse = b
	}

	str(&cfg.HTTP.Addr, "HTTP_ADDR")
	str(&cfg.Schedule.Tasks, "SYNC_SCHEDULE_TASKS")
	str(&cfg.Schedule.Today, "SYNC_SCHEDULE_TODAY")
	str(&cfg.Schedule.Activities, "SYNC_SCHEDULE_ACTIVITIES")

	defaults(&cfg)

	if cfg.Marvin.APIToken == "" {
		return cfg, errors.New("MARVIN_API_TOKEN is required")
	}
	if cfg.Marvin.CouchURL == "" || cfg.Marvin.Database == "" {
		return cfg, errors.New("MARVIN_COUCH_URL and MARVIN_DATABASE are required")
	}
	if cfg.Notion.Token == "" {
		return cfg, errors.New("NOTION_TOKEN is required")
	}
	if dbs.Tasks == "" {
		return cfg, errors.New("NOTION_TASKS_DB is required")
	}
	return cfg, nil
}

func defaults(cfg *Config) {
	if cfg.Marvin.APIURL == "" {
		cfg.Marvin.APIURL = "https://serv.amazingmarvin.com/api"
	}
	if cfg.Notion.BaseURL == "" {
		cfg.Notion.BaseURL = "https://api.notion.com"
	}
	if cfg.Garmin.BaseURL == "" {
		cfg.Garmin.BaseURL = "https://connectapi.garmin.com"
	}
	if cfg.Sync.Timezone == "" {
		cfg.Sync.Timezone = "America/New_York"
	}
	if cfg.Sync.Window == 0 {
		cfg.Sync.Window = 30 * time.Minute
	}
	if cfg.Sync.Rate == 0 {
		cfg.Sync.Rate = 3 * time.Second
	}
	if cfg.Sync.Horizon == 0 {
		cfg.Sync.Horizon = 14
	}
	if cfg.Sync.Timeout == 0 {
		cfg.Sync.Timeout = 10 * time.Minute
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.Schedule.Tasks == "" {
		cfg.Schedule.Tasks = "*/15 * * * *"
	}
	if cfg.Schedule.Today == "" {
		cfg.Schedule.Today = "0 5 * * *"
	}
	if cfg.Schedule.Activities == "" {
		cfg.Schedule.Activities = "0 * * * *"
	}
}

func str(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func duration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s must be a duration: %w", key, err)
	}
	*dst = d
	return nil
}
