package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables read by Load.
const (
	EnvAddr          = "OITM_ADDR"
	EnvAuthSecret    = "OITM_AUTH_SECRET"
	EnvAPIBase       = "OITM_API_BASE"
	EnvLoginPath     = "OITM_LOGIN_PATH"
	EnvReplayTimeout = "OITM_REPLAY_TIMEOUT"
	EnvRateBurst     = "OITM_RATE_BURST"
	EnvRatePerSec    = "OITM_RATE_PER_SEC"
	EnvTrustedProxy  = "OITM_TRUSTED_PROXIES"
)

type Config struct {
	Addr          string
	AuthSecret    string
	APIBase       string
	LoginPath     string
	ReplayTimeout time.Duration
	RateBurst     int
	RatePerSec    int

	// Proxies whose X-Forwarded-For header is trusted. Empty by default.
	TrustedProxies []netip.Prefix
}

// Default returns the settings used for anything the environment leaves unset.
func Default() Config {
	return Config{
		Addr:          ":4321",
		APIBase:       "http://127.0.0.1:8000",
		LoginPath:     "/login",
		ReplayTimeout: 5 * time.Second,
		RateBurst:     40,
		RatePerSec:    20,
	}
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	cfg := Default()

	if v := env(EnvAddr); v != "" {
		cfg.Addr = v
	}
	cfg.AuthSecret = env(EnvAuthSecret)
	if v := env(EnvAPIBase); v != "" {
		cfg.APIBase = v
	}
	if v := env(EnvLoginPath); v != "" {
		cfg.LoginPath = v
	}
	if v := env(EnvReplayTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvReplayTimeout, err)
		}
		cfg.ReplayTimeout = d
	}
	var err error
	if cfg.RateBurst, err = envInt(EnvRateBurst, cfg.RateBurst); err != nil {
		return Config{}, err
	}
	if cfg.RatePerSec, err = envInt(EnvRatePerSec, cfg.RatePerSec); err != nil {
		return Config{}, err
	}
	if cfg.TrustedProxies, err = ParseProxies(env(EnvTrustedProxy)); err != nil {
		return Config{}, fmt.Errorf("%s: %w", EnvTrustedProxy, err)
	}
	return cfg, nil
}

// Validate reports the first setting that cannot be served.
func (c Config) Validate() error {
	if c.AuthSecret == "" {
		return fmt.Errorf("%s is required", EnvAuthSecret)
	}
	if !strings.HasPrefix(c.LoginPath, "/") {
		return errors.New("login path must start with /")
	}
	if c.ReplayTimeout <= 0 {
		return errors.New("replay timeout must be positive")
	}
	if c.RateBurst <= 0 || c.RatePerSec <= 0 {
		return errors.New("rate limits must be positive")
	}
	return nil
}

// ParseProxies reads a comma-separated list of CIDR prefixes or bare
// addresses.
func ParseProxies(v string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "/") {
			p, err := netip.ParsePrefix(part)
			if err != nil {
				return nil, err
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(part)
		if err != nil {
			return nil, err
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envInt(key string, fallback int) (int, error) {
	v := env(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
