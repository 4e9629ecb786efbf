// Package dcconfig loads the disk cache's recognized configuration
// options (spec.md §6) from a YAML file, with environment-variable
// overrides and defaults applied afterward — a
// yaml.v2-tagged-struct-plus-env-override shape, scaled down to the
// options this cache actually recognizes.
package dcconfig

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type (
	// Config is every option spec.md §6 lists as recognized.
	Config struct {
		Backend BackendConfig `yaml:"backend"`
		Queue   QueueConfig   `yaml:"queue"`
	}

	// BackendConfig configures the reference tabular backend (C7).
	BackendConfig struct {
		// TableName is the table to target.
		TableName string `yaml:"table_name"`
		// DriverURL, User, Password configure the database connection.
		DriverURL string `yaml:"driver_url"`
		User      string `yaml:"user"`
		Password  string `yaml:"password"`
		// MaxActive is the max concurrent connections.
		MaxActive int `yaml:"max_active"`
		// TestBeforeInsert pre-checks existence before INSERT.
		TestBeforeInsert bool `yaml:"test_before_insert"`
		// AllowRemoveAll honours remove_all.
		AllowRemoveAll bool `yaml:"allow_remove_all"`
		// ShrinkerIntervalSeconds is the expiry sweep cadence.
		ShrinkerIntervalSeconds int `yaml:"shrinker_interval_s"`
		// CacheName / Region is the row-store partition label.
		CacheName string `yaml:"cache_name"`
	}

	// QueueConfig configures the event queue (C4).
	QueueConfig struct {
		// Capacity is the event queue bound.
		Capacity int `yaml:"queue_capacity"`
	}
)

// Load reads YAML config from path, then applies environment-variable
// overrides (via godotenv, so a .env file in the process's working
// directory is also honoured) and defaults for anything left unset.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // optional .env alongside the process; absence is not an error

	var cfg Config
	if path != `` {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.Backend.TableName = getEnv(`DISKCACHE_TABLE_NAME`, c.Backend.TableName)
	c.Backend.DriverURL = getEnv(`DISKCACHE_DRIVER_URL`, c.Backend.DriverURL)
	c.Backend.User = getEnv(`DISKCACHE_USER`, c.Backend.User)
	c.Backend.Password = getEnv(`DISKCACHE_PASSWORD`, c.Backend.Password)
	c.Backend.CacheName = getEnv(`DISKCACHE_REGION`, c.Backend.CacheName)

	if v := getEnvInt(`DISKCACHE_MAX_ACTIVE`, 0); v > 0 {
		c.Backend.MaxActive = v
	}
	if v := getEnvInt(`DISKCACHE_SHRINKER_INTERVAL_S`, 0); v > 0 {
		c.Backend.ShrinkerIntervalSeconds = v
	}
	if v := getEnvInt(`DISKCACHE_QUEUE_CAPACITY`, 0); v > 0 {
		c.Queue.Capacity = v
	}

	c.Backend.TestBeforeInsert = getEnvBool(`DISKCACHE_TEST_BEFORE_INSERT`, c.Backend.TestBeforeInsert)
	c.Backend.AllowRemoveAll = getEnvBool(`DISKCACHE_ALLOW_REMOVE_ALL`, c.Backend.AllowRemoveAll)
}

func (c *Config) applyDefaults() {
	if c.Backend.TableName == `` {
		c.Backend.TableName = `disk_cache_entries`
	}
	if c.Backend.CacheName == `` {
		c.Backend.CacheName = `default`
	}
	if c.Backend.ShrinkerIntervalSeconds == 0 {
		c.Backend.ShrinkerIntervalSeconds = 60
	}
	if c.Queue.Capacity == 0 {
		c.Queue.Capacity = 1024
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != `` {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != `` {
		return val == `true` || val == `1`
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != `` {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
