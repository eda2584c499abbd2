package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del servicio.
type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		BaseURL            string   `yaml:"base_url"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	} `yaml:"server"`

	// Line agrupa las credenciales de LINE Login (OAuth2/OIDC) y de la
	// Messaging API. Los secretos pueden venir cifrados con secretbox
	// (formato "base64(nonce)|base64(ct)"); ver DecryptedChannelSecret.
	Line struct {
		Login struct {
			ChannelID     string `yaml:"channel_id"`
			ChannelSecret string `yaml:"channel_secret"`
			CallbackURL   string `yaml:"callback_url"`
		} `yaml:"login"`
		Messaging struct {
			ChannelAccessToken string `yaml:"channel_access_token"`
			ChannelSecret      string `yaml:"channel_secret"`
		} `yaml:"messaging"`
	} `yaml:"line"`

	Storage struct {
		// memory | postgres
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	Auth struct {
		// SessionTTL es el tiempo de vida de los artefactos state/nonce.
		SessionTTL string `yaml:"session_ttl"`
	} `yaml:"auth"`

	JWT struct {
		Issuer    string `yaml:"issuer"`
		Audience  string `yaml:"audience"`
		AccessTTL string `yaml:"access_ttl"`
		// Ed25519Seed es la seed (base64, 32 bytes) de la clave de firma.
		Ed25519Seed string `yaml:"ed25519_seed"`
	} `yaml:"jwt"`

	Dispatch struct {
		WindowSize  int    `yaml:"window_size"`
		WindowPause string `yaml:"window_pause"`
		PushTimeout string `yaml:"push_timeout"`
	} `yaml:"dispatch"`

	Scheduler struct {
		Enabled  bool   `yaml:"enabled"`
		Interval string `yaml:"interval"`
	} `yaml:"scheduler"`

	Admin struct {
		// APIKeyHash es el hash bcrypt de la API key de administración.
		// Si está vacío, los endpoints admin rechazan todo request.
		APIKeyHash string `yaml:"api_key_hash"`
	} `yaml:"admin"`

	Rate struct {
		Enabled bool `yaml:"enabled"`
		Send    struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"send"`
		Callback struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"callback"`
	} `yaml:"rate"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load lee el YAML (si existe), aplica defaults y overrides por env.
// path vacío ⇒ solo defaults + env.
func Load(path string) (*Config, error) {
	var c Config

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
			// Sin archivo: seguimos con defaults + env
		} else if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	c.applyDefaults()
	c.applyEnvOverrides()

	if err := c.validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "10m"
	}
	if c.Auth.SessionTTL == "" {
		c.Auth.SessionTTL = "10m"
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "linerelay"
	}
	if c.JWT.Audience == "" {
		c.JWT.Audience = "linerelay-client"
	}
	if c.JWT.AccessTTL == "" {
		c.JWT.AccessTTL = "1h"
	}
	if c.Dispatch.WindowSize <= 0 {
		c.Dispatch.WindowSize = 5
	}
	if c.Dispatch.WindowPause == "" {
		c.Dispatch.WindowPause = "100ms"
	}
	if c.Dispatch.PushTimeout == "" {
		c.Dispatch.PushTimeout = "10s"
	}
	if c.Scheduler.Interval == "" {
		c.Scheduler.Interval = "30s"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// applyEnvOverrides pisa valores del YAML con variables de entorno.
// Convención: LINE_* para credenciales, el resto con prefijo LINERELAY_.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("LINERELAY_APP_ENV"); ok {
		c.App.Env = v
	}
	if v, ok := getEnvStr("LINERELAY_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("LINERELAY_BASE_URL"); ok {
		c.Server.BaseURL = v
	}
	if v, ok := getEnvCSV("LINERELAY_CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}

	if v, ok := getEnvStr("LINE_CHANNEL_ID"); ok {
		c.Line.Login.ChannelID = v
	}
	if v, ok := getEnvStr("LINE_CHANNEL_SECRET"); ok {
		c.Line.Login.ChannelSecret = v
	}
	if v, ok := getEnvStr("LINE_CALLBACK_URL"); ok {
		c.Line.Login.CallbackURL = v
	}
	if v, ok := getEnvStr("LINE_MESSAGING_CHANNEL_ACCESS_TOKEN"); ok {
		c.Line.Messaging.ChannelAccessToken = v
	}
	if v, ok := getEnvStr("LINE_MESSAGING_CHANNEL_SECRET"); ok {
		c.Line.Messaging.ChannelSecret = v
	}

	if v, ok := getEnvStr("LINERELAY_STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("LINERELAY_STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvStr("LINERELAY_CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("LINERELAY_REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvInt("LINERELAY_REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}

	if v, ok := getEnvStr("LINERELAY_JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvStr("LINERELAY_JWT_ED25519_SEED"); ok {
		c.JWT.Ed25519Seed = v
	}

	if v, ok := getEnvInt("LINERELAY_DISPATCH_WINDOW_SIZE"); ok {
		c.Dispatch.WindowSize = v
	}
	if v, ok := getEnvStr("LINERELAY_DISPATCH_WINDOW_PAUSE"); ok {
		c.Dispatch.WindowPause = v
	}

	if v, ok := getEnvBool("LINERELAY_SCHEDULER_ENABLED"); ok {
		c.Scheduler.Enabled = v
	}
	if v, ok := getEnvStr("LINERELAY_SCHEDULER_INTERVAL"); ok {
		c.Scheduler.Interval = v
	}

	if v, ok := getEnvStr("LINERELAY_ADMIN_API_KEY_HASH"); ok {
		c.Admin.APIKeyHash = v
	}
	if v, ok := getEnvStr("LINERELAY_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
}

func (c *Config) validate() error {
	// Duraciones en string: validarlas acá para fallar temprano.
	for _, d := range []string{
		c.Cache.Memory.DefaultTTL,
		c.Auth.SessionTTL,
		c.JWT.AccessTTL,
		c.Dispatch.WindowPause,
		c.Dispatch.PushTimeout,
		c.Scheduler.Interval,
	} {
		if d == "" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			return fmt.Errorf("config: invalid duration %q: %w", d, err)
		}
	}
	if c.Rate.Send.Window != "" {
		if _, err := time.ParseDuration(c.Rate.Send.Window); err != nil {
			return fmt.Errorf("config: invalid rate.send.window: %w", err)
		}
	}
	if c.Rate.Callback.Window != "" {
		if _, err := time.ParseDuration(c.Rate.Callback.Window); err != nil {
			return fmt.Errorf("config: invalid rate.callback.window: %w", err)
		}
	}

	if c.Storage.Driver == "postgres" && strings.TrimSpace(c.Storage.DSN) == "" {
		return fmt.Errorf("config: storage.driver=postgres requiere storage.dsn")
	}
	if c.Cache.Kind == "redis" && strings.TrimSpace(c.Cache.Redis.Addr) == "" {
		return fmt.Errorf("config: cache.kind=redis requiere cache.redis.addr")
	}
	return nil
}

// Dur parsea una duración ya validada. Devuelve def si está vacía.
func Dur(s string, def time.Duration) time.Duration {
	if strings.TrimSpace(s) == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}
