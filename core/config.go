package core

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env            string           `yaml:"env" env:"ENV" env-default:"prod"`
	TelegramApiKey string           `yaml:"telegram_api_key" env:"TELEGRAM_TOKEN" env-default:""`
	Username       string           `yaml:"username" env:"BOT_USERNAME" env-default:""`
	Placeholder    string           `yaml:"placeholder" env:"PLACEHOLDER" env-default:"Typing ..."`
	HelpMessage    string           `yaml:"help_mesg" env:"HELP_MESG" env-default:"Type command /top to see what's hot!"`
	LogFile        string           `yaml:"log_file" env:"LOG_FILE" env-default:""`
	StateTTL       time.Duration    `yaml:"state_ttl" env:"STATE_TTL" env-default:"0s"`
	Generation     GenerationConfig `yaml:"generation" env-prefix:"GENERATION_"`
	Market         MarketConfig     `yaml:"market" env-prefix:"MARKET_"`
	Mongo          MongoConfig      `yaml:"mongo" env-prefix:"MONGO_"`
}

// GenerationConfig describes the text-to-image provider and how prompts are sent to it
type GenerationConfig struct {
	BaseUrl        string        `yaml:"base_url" env:"BASE_URL" env-default:""`
	ApiKey         string        `yaml:"api_key" env:"API_KEY" env-default:""`
	DefaultModel   string        `yaml:"default_model" env:"DEFAULT_MODEL" env-default:"stable-diffusion-v1-5"`
	Models         []string      `yaml:"models" env:"MODELS" env-default:"stable-diffusion-v1-5,sd=stable-diffusion-v1-5,inkpunk,anything-v4,openjourney"`
	Delimiter      string        `yaml:"delimiter" env:"DELIMITER" env-default:","`
	AnyModel       bool          `yaml:"any_model" env:"ANY_MODEL" env-default:"false"`
	Width          int           `yaml:"width" env:"WIDTH" env-default:"512"`
	Height         int           `yaml:"height" env:"HEIGHT" env-default:"512"`
	BatchSize      int           `yaml:"batch_size" env:"BATCH_SIZE" env-default:"1"`
	Steps          int           `yaml:"steps" env:"STEPS" env-default:"30"`
	Sampler        string        `yaml:"sampler" env:"SAMPLER" env-default:"Euler a"`
	Seed           int64         `yaml:"seed" env:"SEED" env-default:"-1"`
	CfgScale       float64       `yaml:"cfg_scale" env:"CFG_SCALE" env-default:"7"`
	PollAttempts   int           `yaml:"poll_attempts" env:"POLL_ATTEMPTS" env-default:"12"`
	PollInterval   time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL" env-default:"10s"`
	Timeout        time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"60s"`
}

type MarketConfig struct {
	Url     string        `yaml:"url" env:"URL" env-default:"https://gamefidash.com/api/v2/projects?page=1&page_size=10&date_range=24h&sort_dim=volume"`
	Timeout time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"30s"`
}

type MongoConfig struct {
	Enabled  bool   `yaml:"enabled" env:"ENABLED" env-default:"false"`
	Host     string `yaml:"host" env:"HOST" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"27017"`
	User     string `yaml:"user" env:"USER" env-default:"admin"`
	Password string `yaml:"password" env:"PASSWORD" env-default:"pass"`
	Database string `yaml:"database" env:"DATABASE" env-default:"muse"`
}

// Enabled reports whether the image provider is configured
func (g *GenerationConfig) Enabled() bool {
	return g.BaseUrl != "" && g.ApiKey != ""
}

func (m *MongoConfig) Uri() string {
	return fmt.Sprintf("mongodb://%s:%s@%s:%s", m.User, m.Password, m.Host, m.Port)
}

// Load reads the config file when it exists, the environment overrides it either way
func Load(path string) (*Config, error) {
	conf := &Config{}
	var err error
	if _, statErr := os.Stat(path); path != "" && statErr == nil {
		err = cleanenv.ReadConfig(path, conf)
	} else {
		err = cleanenv.ReadEnv(conf)
	}
	if err != nil {
		desc, _ := cleanenv.GetDescription(conf, nil)
		return nil, fmt.Errorf("config: %s; %s", err, desc)
	}
	if err = conf.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return conf, nil
}

func MustLoad(path string) *Config {
	conf, err := Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return conf
}

func (c *Config) validate() error {
	if c.Generation.DefaultModel == "" {
		return errors.New("generation.default_model is empty")
	}
	if c.Generation.PollAttempts < 1 {
		return fmt.Errorf("generation.poll_attempts must be positive, got %d", c.Generation.PollAttempts)
	}
	if c.Generation.PollInterval < 0 {
		return fmt.Errorf("generation.poll_interval is negative: %s", c.Generation.PollInterval)
	}
	return nil
}
