package apismith

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the TOML form of a client's options.
//
//	[client]
//	base_url = "https://api.example.com"
//	endpoint = "v1"
//	timeout = "10s"
//	container = "data.items"
//	[client.headers]
//	Authorization = "Bearer ${API_TOKEN}"
//
//	[retry]
//	max_retries = 5
//	strategy = "decorrelated"
type Config struct {
	Client    ClientConfig    `toml:"client"`
	Retry     RetryConfig     `toml:"retry"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Cache     CacheConfig     `toml:"cache"`
	Dedup     DedupConfig     `toml:"dedup"`
	Debug     DebugFileConfig `toml:"debug"`
}

type ClientConfig struct {
	BaseURL      string            `toml:"base_url"`
	Endpoint     string            `toml:"endpoint"`
	Timeout      Duration          `toml:"timeout"`
	Headers      map[string]string `toml:"headers"`
	Query        map[string]string `toml:"query"`
	Body         map[string]any    `toml:"body"`
	BodyEncoding string            `toml:"body_encoding"`
	Container    string            `toml:"container"`
	Username     string            `toml:"username"`
	Password     string            `toml:"password"`
}

type RetryConfig struct {
	MaxRetries     *int     `toml:"max_retries"`
	InitialBackoff Duration `toml:"initial_backoff"`
	MaxBackoff     Duration `toml:"max_backoff"`
	Multiplier     float64  `toml:"multiplier"`
	Jitter         *float64 `toml:"jitter"`
	Strategy       string   `toml:"strategy"`
	Budget         int      `toml:"budget"`
	BudgetWindow   Duration `toml:"budget_window"`
}

type RateLimitConfig struct {
	Enabled bool     `toml:"enabled"`
	Tokens  int      `toml:"tokens"`
	Refill  Duration `toml:"refill"`
}

type CacheConfig struct {
	Enabled bool     `toml:"enabled"`
	TTL     Duration `toml:"ttl"`
}

type DedupConfig struct {
	Enabled bool `toml:"enabled"`
}

type DebugFileConfig struct {
	Enabled bool `toml:"enabled"`
}

// Duration wraps time.Duration for TOML parsing
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText formats the duration as a string
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// LoadConfig reads a TOML file. ${VAR} references in string values are
// expanded from the environment.
func LoadConfig(path string) (*Config, error) {
	path = os.ExpandEnv(path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.expandEnvVars()
	return &cfg, nil
}

// ParseConfig decodes TOML text.
func ParseConfig(content string) (*Config, error) {
	var cfg Config
	if _, err := toml.Decode(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.expandEnvVars()
	return &cfg, nil
}

func (c *Config) expandEnvVars() {
	c.Client.BaseURL = os.ExpandEnv(c.Client.BaseURL)
	c.Client.Endpoint = os.ExpandEnv(c.Client.Endpoint)
	c.Client.Username = os.ExpandEnv(c.Client.Username)
	c.Client.Password = os.ExpandEnv(c.Client.Password)
	for k, v := range c.Client.Headers {
		c.Client.Headers[k] = os.ExpandEnv(v)
	}
	for k, v := range c.Client.Query {
		c.Client.Query[k] = os.ExpandEnv(v)
	}
	for k, v := range c.Client.Body {
		if s, ok := v.(string); ok {
			c.Client.Body[k] = os.ExpandEnv(s)
		}
	}
}

// Options converts the file into client options. Zero values leave the
// client defaults in place.
func (c *Config) Options() ([]Option, error) {
	var opts []Option

	cc := c.Client
	if cc.BaseURL != "" {
		opts = append(opts, WithBaseURL(cc.BaseURL))
	}
	if cc.Endpoint != "" {
		opts = append(opts, WithEndpoint(cc.Endpoint))
	}
	if cc.Timeout.Duration > 0 {
		opts = append(opts, WithTimeout(cc.Timeout.Duration))
	}
	for k, v := range cc.Headers {
		opts = append(opts, WithHeader(k, v))
	}
	if len(cc.Query) > 0 {
		opts = append(opts, WithBaseQuery(cc.Query))
	}
	if len(cc.Body) > 0 {
		opts = append(opts, WithBaseBody(cc.Body))
	}
	switch strings.ToLower(cc.BodyEncoding) {
	case "", "json":
	case "form":
		opts = append(opts, WithBodyEncoding(EncodeForm))
	default:
		return nil, fmt.Errorf("client.body_encoding: unknown encoding %q", cc.BodyEncoding)
	}
	if cc.Container != "" {
		opts = append(opts, WithResponseContainer(ParseContainer(cc.Container)...))
	}
	if cc.Username != "" || cc.Password != "" {
		opts = append(opts, WithBasicAuth(cc.Username, cc.Password))
	}

	rc := c.Retry
	if rc.MaxRetries != nil {
		opts = append(opts, WithMaxRetries(*rc.MaxRetries))
	}
	if rc.InitialBackoff.Duration > 0 {
		opts = append(opts, WithInitialBackoff(rc.InitialBackoff.Duration))
	}
	if rc.MaxBackoff.Duration > 0 {
		opts = append(opts, WithMaxBackoff(rc.MaxBackoff.Duration))
	}
	if rc.Multiplier > 0 {
		opts = append(opts, WithBackoffMultiplier(rc.Multiplier))
	}
	if rc.Jitter != nil {
		opts = append(opts, WithJitter(*rc.Jitter))
	}
	if rc.Strategy != "" {
		s, ok := ParseBackoffStrategy(rc.Strategy)
		if !ok {
			return nil, fmt.Errorf("retry.strategy: unknown strategy %q", rc.Strategy)
		}
		opts = append(opts, WithBackoffStrategy(s))
	}
	if rc.Budget > 0 {
		window := rc.BudgetWindow.Duration
		if window <= 0 {
			window = time.Minute
		}
		opts = append(opts, WithRetryBudget(rc.Budget, window))
	}

	if c.RateLimit.Enabled {
		opts = append(opts, WithRateLimiter(c.RateLimit.Tokens, c.RateLimit.Refill.Duration))
	}
	if c.Cache.Enabled {
		ttl := c.Cache.TTL.Duration
		if ttl <= 0 {
			ttl = 5 * time.Minute
		}
		opts = append(opts, WithCache(ttl))
	}
	if c.Dedup.Enabled {
		opts = append(opts, WithDeduplication())
	}
	if c.Debug.Enabled {
		opts = append(opts, WithSimpleLogger())
	}

	return opts, nil
}

// WithConfig applies a loaded Config. Conversion problems are reported by
// ValidateConfiguration.
func WithConfig(cfg *Config) Option {
	return func(c *Client) {
		if cfg == nil {
			return
		}
		opts, err := cfg.Options()
		if err != nil {
			c.optionErrors = append(c.optionErrors, err.Error())
			return
		}
		for _, opt := range opts {
			opt(c)
		}
	}
}
