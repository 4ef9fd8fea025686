package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	tokenDerivENV     = "DERIV_TOKEN"
	databaseDSN       = "DATABASE_DSN"
)

// Config ...
type Config struct {
	Deriv struct {
		AppID    string `yaml:"app_id"`
		Token    string `yaml:"token"`
		Endpoint string `yaml:"endpoint"`
	} `yaml:"deriv"`
	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	DB      string `yaml:"db_dsn"`
	Service struct {
		HealthAddr string `yaml:"health_addr"`
	} `yaml:"service"`

	// Что стримим: символы Deriv и таймфреймы в минутах.
	Symbols    []string `yaml:"symbols"`
	Timeframes []int    `yaml:"timeframes"`

	// Детектор / гейт
	ConfidenceThreshold int `yaml:"confidence_threshold"` // минимальный суммарный скор (0..8)
	RateLimitMinutes    int `yaml:"rate_limit_minutes"`   // окно дедупликации алертов
	SeriesCapacity      int `yaml:"series_capacity"`      // глубина rolling-истории на серию

	// Транспорт
	ReconnectBackoffSec int `yaml:"reconnect_backoff_sec"`

	// Уборка протухших dedup-записей
	DedupSweepInterval time.Duration
}

func NewConfig() (*Config, error) {

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		return nil, errors.Wrap(err, "open config file")
	}

	defer func() {
		_ = file.Close()
	}()

	decoder := yaml.NewDecoder(file)
	config := Config{
		Symbols:    []string{"frxXAUUSD", "R_75", "R_75S"},
		Timeframes: []int{1, 5, 10},

		ConfidenceThreshold: 5,
		RateLimitMinutes:    25,
		SeriesCapacity:      100,
		ReconnectBackoffSec: 5,

		DedupSweepInterval: durationFromEnv("DEDUP_SWEEP_INTERVAL", "10m"),
	}
	config.Deriv.AppID = "1089"
	config.Deriv.Endpoint = "wss://ws.binaryws.com/websockets/v3"
	config.Service.HealthAddr = ":8080"

	err = decoder.Decode(&config)
	if err != nil {
		return nil, errors.Wrap(err, "decode config file")
	}

	token := os.Getenv(tokenTelegramENV)
	if token != "" {
		config.Telegram.Token = token
	}

	derivToken := os.Getenv(tokenDerivENV)
	if derivToken != "" {
		config.Deriv.Token = derivToken
	}

	dsn := os.Getenv(databaseDSN)
	if dsn != "" {
		config.DB = dsn
	}

	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Telegram.ChatID = id
		}
	}

	if len(config.Symbols) == 0 || len(config.Timeframes) == 0 {
		return nil, fmt.Errorf("symbols and timeframes must not be empty")
	}
	if config.SeriesCapacity <= 0 {
		return nil, fmt.Errorf("series_capacity must be positive, got %d", config.SeriesCapacity)
	}

	return &config, nil
}

// WSURL — полный адрес подключения к Deriv.
func (c *Config) WSURL() string {
	return fmt.Sprintf("%s?app_id=%s", c.Deriv.Endpoint, c.Deriv.AppID)
}

func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitMinutes) * time.Minute
}

func (c *Config) ReconnectBackoff() time.Duration {
	return time.Duration(c.ReconnectBackoffSec) * time.Second
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
