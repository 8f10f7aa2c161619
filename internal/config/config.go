package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Env        string `env:"ENV" envDefault:"local"`
	HTTPServer HTTPServer
	WSServer   WSServer
	MySQL      MySQL
	Broadcast  Broadcast
	Pusher     Pusher
	Crash      Crash
	Prices     Prices
}

type HTTPServer struct {
	Address     string        `env:"HTTP_SERVER_ADDRESS" envDefault:"localhost:8080"`
	Timeout     time.Duration `env:"HTTP_SERVER_TIMEOUT" envDefault:"4s"`
	IdleTimeout time.Duration `env:"HTTP_SERVER_IDLE_TIMEOUT" envDefault:"60s"`
}

type WSServer struct {
	Address     string        `env:"WS_SERVER_ADDRESS" envDefault:"localhost:8081"`
	Timeout     time.Duration `env:"WS_SERVER_TIMEOUT" envDefault:"4s"`
	IdleTimeout time.Duration `env:"WS_SERVER_IDLE_TIMEOUT" envDefault:"60s"`
}

type MySQL struct {
	DSN string `env:"MYSQL_DSN" envDefault:"root:123@tcp(localhost:3309)/api?charset=utf8mb4,utf8&parseTime=True&loc=Local"`
}

// Broadcast selects the event transport: "ws" pushes through the hub
// process, "pusher" goes through Pusher Channels.
type Broadcast struct {
	Driver string `env:"BROADCAST_DRIVER" envDefault:"ws"`
	HubURL string `env:"BROADCAST_HUB_URL" envDefault:"ws://localhost:8081/ws"`
}

type Pusher struct {
	AppID   string `env:"PUSHER_APP_ID"`
	Key     string `env:"PUSHER_KEY"`
	Secret  string `env:"PUSHER_SECRET"`
	Cluster string `env:"PUSHER_CLUSTER" envDefault:"eu"`
}

// Crash holds the round tuning. AcceptWindow is how long bets stay open
// before the multiplier starts, RoundDuration is the upper bound on a round
// that somehow never reaches its crash point.
type Crash struct {
	HouseEdge     float64       `env:"CRASH_HOUSE_EDGE" envDefault:"0.05"`
	GrowthRate    float64       `env:"CRASH_GROWTH_RATE" envDefault:"0.1"`
	AcceptWindow  time.Duration `env:"CRASH_ACCEPT_WINDOW" envDefault:"5s"`
	TickInterval  time.Duration `env:"CRASH_TICK_INTERVAL" envDefault:"100ms"`
	RoundDuration time.Duration `env:"CRASH_ROUND_DURATION" envDefault:"60s"`
	Cooldown      time.Duration `env:"CRASH_COOLDOWN" envDefault:"3s"`
}

type Prices struct {
	BaseURL string        `env:"COINGECKO_API_URL" envDefault:"https://api.coingecko.com/api/v3"`
	Timeout time.Duration `env:"PRICES_TIMEOUT" envDefault:"5s"`
	TTL     time.Duration `env:"PRICES_CACHE_TTL" envDefault:"30s"`
}

func MustLoad() *Config {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		panic("failed to parse config: " + err.Error())
	}

	return cfg
}
