// Package config loads the service configuration from a YAML file, an
// optional .env file and HOSTDASH_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"hostdash/internal/domain"
	"hostdash/internal/sampler"
	"hostdash/internal/tasks"
)

const envPrefix = "HOSTDASH_"

const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Storage        StorageConfig        `yaml:"storage"`
	Logging        LoggingConfig        `yaml:"logging"`
	Sampler        SamplerConfig        `yaml:"sampler"`
	ScheduledTasks ScheduledTasksConfig `yaml:"scheduled_tasks"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type StorageConfig struct {
	// Type is "sqlite" or "memory".
	Type string `yaml:"type"`
	Path string `yaml:"path"`
	// Location is the zone reading dates are rendered and parsed in:
	// "Local", "UTC" or an IANA name.
	Location string `yaml:"location"`
}

type LoggingConfig struct {
	Dir     string `yaml:"dir"`
	File    string `yaml:"file"`
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

type SamplerConfig struct {
	TimeoutMS         int      `yaml:"timeout_ms"`
	CPUWindowMS       int      `yaml:"cpu_window_ms"`
	StoragePath       string   `yaml:"storage_path"`
	TemperatureGroups []string `yaml:"temperature_groups"`
}

type ScheduledTasksConfig struct {
	Enabled   bool           `yaml:"enabled"`
	Intervals Intervals      `yaml:"intervals"`
	Deletion  DeletionConfig `yaml:"deletion"`
}

// Intervals are in seconds. Zero disables a sampling job.
type Intervals struct {
	CPUTemperature     int `yaml:"cpu_temperature"`
	CPUUtilization     int `yaml:"cpu_utilization"`
	MemoryUtilization  int `yaml:"memory_utilization"`
	StorageUtilization int `yaml:"storage_utilization"`
	Deletion           int `yaml:"deletion"`
}

type DeletionConfig struct {
	Enabled bool `yaml:"enabled"`
	// DeleteOlderThan is the maximum reading age in seconds.
	DeleteOlderThan int `yaml:"delete_older_than"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Storage: StorageConfig{
			Type:     StorageSQLite,
			Path:     ".." + string(os.PathSeparator) + "db" + string(os.PathSeparator) + "metrics.db",
			Location: "Local",
		},
		Logging: LoggingConfig{
			Dir:   ".." + string(os.PathSeparator) + "log",
			File:  "webService.log",
			Level: "info",
		},
		Sampler: SamplerConfig{
			TimeoutMS:         int(sampler.DefaultTimeout / time.Millisecond),
			CPUWindowMS:       500,
			StoragePath:       sampler.DefaultStoragePath,
			TemperatureGroups: append([]string(nil), sampler.DefaultTemperatureGroups...),
		},
		ScheduledTasks: ScheduledTasksConfig{
			Enabled: true,
			Intervals: Intervals{
				CPUTemperature:     60,
				CPUUtilization:     60,
				MemoryUtilization:  60,
				StorageUtilization: 300,
				Deletion:           3600,
			},
			Deletion: DeletionConfig{
				Enabled:         true,
				DeleteOlderThan: 7 * 24 * 60 * 60,
			},
		},
	}
}

// Load reads path over the defaults. An empty path or a missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	config := Default()

	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return config, nil
}

// LoadEnvFile loads envFile (".env" when empty) into the process
// environment without overriding variables already set. It reports
// whether a file was loaded.
func LoadEnvFile(envFile string) (bool, error) {
	if envFile == "" {
		envFile = ".env"
	}

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		return false, nil
	}

	if err := godotenv.Load(envFile); err != nil {
		return false, fmt.Errorf("load %s: %w", envFile, err)
	}
	return true, nil
}

// LoadWithEnv layers the sources shared by every command: envFile into
// the process environment, path over the defaults, then HOSTDASH_*
// variables. Flag overrides and Validate are left to the caller.
func LoadWithEnv(path, envFile string) (*Config, error) {
	if _, err := LoadEnvFile(envFile); err != nil {
		return nil, err
	}

	config, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides fields from HOSTDASH_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(envPrefix + name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = n
		return nil
	}
	flag := func(name string, dst *bool) error {
		v, ok := lookup(envPrefix + name)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = b
		return nil
	}

	str("ADDR", &c.Server.Addr)
	str("STORAGE_TYPE", &c.Storage.Type)
	str("DB_PATH", &c.Storage.Path)
	str("LOCATION", &c.Storage.Location)
	str("LOG_DIR", &c.Logging.Dir)
	str("LOG_LEVEL", &c.Logging.Level)
	str("STORAGE_PATH", &c.Sampler.StoragePath)

	if err := flag("LOG_CONSOLE", &c.Logging.Console); err != nil {
		return err
	}
	if err := flag("SCHEDULER_ENABLED", &c.ScheduledTasks.Enabled); err != nil {
		return err
	}
	if err := flag("DELETION_ENABLED", &c.ScheduledTasks.Deletion.Enabled); err != nil {
		return err
	}
	if err := num("DELETE_OLDER_THAN", &c.ScheduledTasks.Deletion.DeleteOlderThan); err != nil {
		return err
	}
	return num("CPU_WINDOW_MS", &c.Sampler.CPUWindowMS)
}

func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	switch c.Storage.Type {
	case StorageSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the sqlite store")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("storage.type must be %q or %q, got %q", StorageSQLite, StorageMemory, c.Storage.Type)
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	if c.Logging.File == "" {
		return fmt.Errorf("logging.file is required")
	}

	if c.Sampler.TimeoutMS <= 0 {
		return fmt.Errorf("sampler.timeout_ms must be positive, got %d", c.Sampler.TimeoutMS)
	}
	if c.Sampler.CPUWindowMS < 0 {
		return fmt.Errorf("sampler.cpu_window_ms must be non-negative, got %d", c.Sampler.CPUWindowMS)
	}
	if c.Sampler.CPUWindowMS >= c.Sampler.TimeoutMS {
		return fmt.Errorf("sampler.cpu_window_ms (%d) must be shorter than sampler.timeout_ms (%d)", c.Sampler.CPUWindowMS, c.Sampler.TimeoutMS)
	}

	iv := c.ScheduledTasks.Intervals
	for name, v := range map[string]int{
		"cpu_temperature":     iv.CPUTemperature,
		"cpu_utilization":     iv.CPUUtilization,
		"memory_utilization":  iv.MemoryUtilization,
		"storage_utilization": iv.StorageUtilization,
	} {
		if v < 0 {
			return fmt.Errorf("scheduled_tasks.intervals.%s must be non-negative, got %d", name, v)
		}
	}

	if c.ScheduledTasks.Deletion.Enabled {
		if iv.Deletion <= 0 {
			return fmt.Errorf("scheduled_tasks.intervals.deletion must be positive when deletion is enabled, got %d", iv.Deletion)
		}
		if c.ScheduledTasks.Deletion.DeleteOlderThan <= 0 {
			return fmt.Errorf("scheduled_tasks.deletion.delete_older_than must be positive, got %d", c.ScheduledTasks.Deletion.DeleteOlderThan)
		}
	}

	return nil
}

func (c *Config) Location() (*time.Location, error) {
	switch c.Storage.Location {
	case "", "Local":
		return time.Local, nil
	case "UTC":
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Storage.Location)
	if err != nil {
		return nil, fmt.Errorf("storage.location %q: %w", c.Storage.Location, err)
	}
	return loc, nil
}

func (c *Config) SamplerConfig() sampler.Config {
	return sampler.Config{
		Timeout:           time.Duration(c.Sampler.TimeoutMS) * time.Millisecond,
		CPUWindow:         time.Duration(c.Sampler.CPUWindowMS) * time.Millisecond,
		StoragePath:       c.Sampler.StoragePath,
		TemperatureGroups: c.Sampler.TemperatureGroups,
	}
}

func (c *Config) TasksConfig() tasks.Config {
	iv := c.ScheduledTasks.Intervals
	seconds := func(n int) time.Duration { return time.Duration(n) * time.Second }

	return tasks.Config{
		Intervals: map[domain.Category]time.Duration{
			domain.CPUTemperature:     seconds(iv.CPUTemperature),
			domain.CPUUtilization:     seconds(iv.CPUUtilization),
			domain.MemoryUtilization:  seconds(iv.MemoryUtilization),
			domain.StorageUtilization: seconds(iv.StorageUtilization),
		},
		Retention: tasks.Retention{
			Enabled:  c.ScheduledTasks.Deletion.Enabled,
			MaxAge:   seconds(c.ScheduledTasks.Deletion.DeleteOlderThan),
			Interval: seconds(iv.Deletion),
		},
	}
}
