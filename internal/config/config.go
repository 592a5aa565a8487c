// Package config предоставляет структуры и функции для парсинга и загрузки конфига
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING" env-required:"true"`
	HTTPServer              `yaml:"http_server"`
	RedisConnection         `yaml:"redis_connection"`
	BlobStore               `yaml:"blob_store"`
	RateLimit               `yaml:"rate_limit"`
	AMQP                    `yaml:"amqp"`
	Report                  `yaml:"report"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	Address      string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	Timeout      time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"10s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" env:"HTTP_MAX_BODY_BYTES" env-default:"16777216"`
}

// RedisConnection структура для настройки подключения к redis.
// Пустой адрес отключает кэширование статистики.
type RedisConnection struct {
	Address     string        `yaml:"address" env:"REDIS_ADDRESS"`
	Password    string        `yaml:"password" env:"REDIS_PASSWORD"`
	User        string        `yaml:"user" env:"REDIS_USER"`
	DB          int           `yaml:"db" env:"REDIS_DB"`
	MaxRetries  int           `yaml:"max_retries" env-default:"3"`
	DialTimeout time.Duration `yaml:"dial_timeout" env-default:"5s"`
	Timeout     time.Duration `yaml:"timeout" env-default:"3s"`
	StatsTTL    time.Duration `yaml:"stats_ttl" env:"REDIS_STATS_TTL" env-default:"10m"`
}

// BlobStore каталог для изображений чеков
type BlobStore struct {
	Dir            string `yaml:"dir" env:"BLOB_STORE_DIR" env-default:"./data/bills"`
	MaxImageBytes  int    `yaml:"max_image_bytes" env:"BLOB_STORE_MAX_IMAGE_BYTES" env-default:"10485760"`
	MaxImagePixels int    `yaml:"max_image_pixels" env:"BLOB_STORE_MAX_IMAGE_PIXELS" env-default:"40000000"`
}

// RateLimit ограничение частоты запросов
type RateLimit struct {
	RPS   float64 `yaml:"rps" env:"RATE_LIMIT_RPS" env-default:"10"`
	Burst int     `yaml:"burst" env:"RATE_LIMIT_BURST" env-default:"20"`
}

// AMQP настройки публикации событий. Пустой url отключает публикацию.
type AMQP struct {
	URL        string `yaml:"url" env:"AMQP_URL"`
	Exchange   string `yaml:"exchange" env-default:"receipts"`
	RoutingKey string `yaml:"routing_key" env-default:"bill.uploaded"`
}

// Report геометрия страницы отчёта в пунктах
type Report struct {
	PageWidth    float64 `yaml:"page_width" env-default:"595.28"`
	PageHeight   float64 `yaml:"page_height" env-default:"841.89"`
	Margin       float64 `yaml:"margin" env-default:"36"`
	MetaHeight   float64 `yaml:"meta_height" env-default:"80"`
	FontSize     float64 `yaml:"font_size" env-default:"12"`
	FetchWorkers int     `yaml:"fetch_workers" env-default:"4"`
}

// MustLoad загружает конфиг из файла, указанного в CONFIG_PATH, и завершает процесс при ошибке
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// Load читает конфиг из path, применяет переменные окружения и проверяет значения
func Load(path string) (*Config, error) {
	const op = "config.Load"
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// Validate проверяет согласованность значений
func (c *Config) Validate() error {
	if c.BlobStore.Dir == "" {
		return errors.New("blob_store.dir is empty")
	}
	if c.MaxImageBytes <= 0 {
		return errors.New("blob_store.max_image_bytes must be positive")
	}
	if c.MaxImagePixels <= 0 {
		return errors.New("blob_store.max_image_pixels must be positive")
	}
	if c.PageWidth <= 0 || c.PageHeight <= 0 {
		return errors.New("report page size must be positive")
	}
	if c.Margin < 0 || c.MetaHeight < 0 || c.FontSize <= 0 {
		return errors.New("report margin, meta_height and font_size are invalid")
	}
	if c.PageWidth-2*c.Margin <= 0 {
		return errors.New("report margins leave no horizontal room")
	}
	if c.PageHeight-2*c.Margin-c.MetaHeight <= 0 {
		return errors.New("report meta block leaves no room for an image")
	}
	if c.FetchWorkers < 1 {
		return errors.New("report.fetch_workers must be at least 1")
	}
	if c.RPS <= 0 || c.Burst < 1 {
		return errors.New("rate_limit rps and burst must be positive")
	}
	return nil
}

// String печатает конфиг без секретов
func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"RedisConnection:\n"+
			"  Address: %s\n"+
			"  DB: %d\n"+
			"  StatsTTL: %s\n"+
			"BlobStore:\n"+
			"  Dir: %s\n"+
			"AMQP:\n"+
			"  Enabled: %t\n"+
			"  Exchange: %s\n",
		c.Env,
		c.HTTPServer.Address,
		c.HTTPServer.Timeout,
		c.HTTPServer.IdleTimeout,
		c.RedisConnection.Address,
		c.DB,
		c.StatsTTL,
		c.BlobStore.Dir,
		c.AMQP.URL != "",
		c.Exchange,
	)
}
