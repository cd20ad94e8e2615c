package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"mailsweep/internal/classifier"
	"mailsweep/internal/gmail"
	"mailsweep/pkg/config"
)

type JWTConfig struct {
	Secret string `yaml:"secret"`
}

type VaultConfig struct {
	Secret string `yaml:"secret"`
}

// CronConfig guards the scheduler trigger endpoint with a shared secret.
type CronConfig struct {
	Secret string `yaml:"secret"`
}

type Config struct {
	Server config.ServerConfig `yaml:"server"`
	DB     config.DBConfig     `yaml:"db"`
	Redis  config.RedisConfig  `yaml:"redis"`
	MQ     config.MQConfig     `yaml:"mq"`
	JWT    JWTConfig           `yaml:"jwt"`
	Vault  VaultConfig         `yaml:"vault"`
	Cron   CronConfig          `yaml:"cron"`
	Google gmail.Config        `yaml:"google"`
	AI     classifier.Config   `yaml:"ai"`
}

func Load() *Config {
	path := config.GetEnv("CONFIG_PATH", "config.yaml")
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("failed to open %s: %v", path, err)
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		log.Fatalf("failed to decode %s: %v", path, err)
	}

	overrideFromEnv(&cfg)
	return &cfg
}

func overrideFromEnv(cfg *Config) {
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideMQFromEnv(&cfg.MQ)

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.JWT.Secret = secret
	}
	if secret := os.Getenv("VAULT_SECRET"); secret != "" {
		cfg.Vault.Secret = secret
	}
	if secret := os.Getenv("CRON_SECRET"); secret != "" {
		cfg.Cron.Secret = secret
	}
	if id := os.Getenv("GOOGLE_CLIENT_ID"); id != "" {
		cfg.Google.ClientID = id
	}
	if secret := os.Getenv("GOOGLE_CLIENT_SECRET"); secret != "" {
		cfg.Google.ClientSecret = secret
	}
	if url := os.Getenv("GOOGLE_REDIRECT_URL"); url != "" {
		cfg.Google.RedirectURL = url
	}
	if key := os.Getenv("AI_API_KEY"); key != "" {
		cfg.AI.APIKey = key
	}
	if endpoint := os.Getenv("AI_ENDPOINT"); endpoint != "" {
		cfg.AI.Endpoint = endpoint
	}
	if model := os.Getenv("AI_MODEL"); model != "" {
		cfg.AI.Model = model
	}
}
