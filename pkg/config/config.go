package config

import (
	"log"
	"os"
	"time"

	"github.com/IsVohi/OrderFlow-sub001/pkg/utils"
	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env      string  `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTP    `yaml:"http"`
	Postgres PG      `yaml:"postgres"`
	Kafka    Kafka   `yaml:"kafka"`
	Redis    Redis   `yaml:"redis"`
	Sweeper  Sweeper `yaml:"sweeper"`
	Logger   Logger  `yaml:"logger"`
}

type HTTP struct {
	Port    string        `yaml:"port" env:"HTTP_PORT" env-default:":3000"`
	Timeout time.Duration `yaml:"timeout" env-default:"4s"`
}

type PG struct {
	URL string `yaml:"url" env:"DB_URL"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
}

type Redis struct {
	Addr string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
}

type Sweeper struct {
	Interval       time.Duration `yaml:"interval" env:"SWEEP_INTERVAL" env-default:"1m"`
	BatchSize      int           `yaml:"batch_size" env:"SWEEP_BATCH_SIZE" env-default:"100"`
	ReservationTTL time.Duration `yaml:"reservation_ttl" env:"RESERVATION_TTL" env-default:"30m"`
}

type Logger struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

func MustLoad() *Config {
	var cfg Config

	configPath := utils.ParseWithFallback("CONFIG_PATH", "./config/local.yaml")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// No config file means env-only deployment (containers).
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			log.Fatalf("error reading config from env: %v", err)
		}

		return &cfg
	}

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("error reading config: %v", err)
	}

	return &cfg
}
