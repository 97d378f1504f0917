package core

import (
	"fmt"
	"log"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"Artsy/provider"
)

type ProviderConf struct {
	Id             string `yaml:"id"`
	Endpoint       string `yaml:"endpoint"`
	ApiKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
	MinImageBytes  int    `yaml:"min_image_bytes"`
}

type Config struct {
	Env            string `yaml:"env" env:"ENV" env-default:"prod"`
	TelegramApiKey string `yaml:"telegram_api_key" env:"TELEGRAM_API_KEY" env-default:""`
	Username       string `yaml:"username" env:"BOT_USERNAME" env-default:""`
	Chat           struct {
		ApiKey         string  `yaml:"api_key" env:"CHAT_API_KEY" env-default:""`
		Endpoint       string  `yaml:"endpoint" env-default:"https://api.openai.com/v1/chat/completions"`
		Model          string  `yaml:"model" env-default:"gpt-4o-mini"`
		Temperature    float64 `yaml:"temperature" env-default:"0.7"`
		TimeoutSeconds int     `yaml:"timeout_seconds" env-default:"120"`
	} `yaml:"chat"`
	Providers []ProviderConf `yaml:"providers"`
	Image     struct {
		// Overall deadline for one generation request, across all
		// providers and retries
		DeadlineSeconds int `yaml:"deadline_seconds" env-default:"300"`
	} `yaml:"image"`
	Session struct {
		MaxTurns     int `yaml:"max_turns" env-default:"64"`
		IdleTTLHours int `yaml:"idle_ttl_hours" env-default:"24"`
		SweepMinutes int `yaml:"sweep_minutes" env-default:"10"`
	} `yaml:"session"`
	Mongo struct {
		Enabled  bool   `yaml:"enabled" env-default:"false"`
		Host     string `yaml:"host" env-default:"127.0.0.1"`
		Port     string `yaml:"port" env-default:"27017"`
		User     string `yaml:"user" env-default:"admin"`
		Password string `yaml:"password" env-default:"pass"`
		Database string `yaml:"database" env-default:""`
	} `yaml:"mongo"`
}

func Load(path string) (*Config, error) {
	conf := &Config{}
	if err := cleanenv.ReadConfig(path, conf); err != nil {
		desc, _ := cleanenv.GetDescription(conf, nil)
		return nil, fmt.Errorf("config: %s; %s", err, desc)
	}
	return conf, nil
}

func MustLoad(path string) *Config {
	conf, err := Load(path)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	return conf
}

// ProviderList converts configured providers to descriptors, applying
// defaults where fields were left out. Order in the file is the fallback
// priority.
func (c *Config) ProviderList() []provider.Descriptor {
	list := make([]provider.Descriptor, 0, len(c.Providers))
	for _, p := range c.Providers {
		d := provider.Descriptor{
			Id:            p.Id,
			Endpoint:      p.Endpoint,
			AuthToken:     p.ApiKey,
			Timeout:       time.Duration(p.TimeoutSeconds) * time.Second,
			MaxRetries:    p.MaxRetries,
			MinImageBytes: p.MinImageBytes,
		}
		if d.Timeout <= 0 {
			d.Timeout = 60 * time.Second
		}
		if d.MaxRetries <= 0 {
			d.MaxRetries = 3
		}
		if d.MinImageBytes <= 0 {
			d.MinImageBytes = 1024
		}
		list = append(list, d)
	}
	return list
}
