package config

import (
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	ServerPort              string        `koanf:"server-port"`
	ServerReadHeaderTimeout time.Duration `koanf:"server-read-header-timeout"`
	ServerWriteTimeout      time.Duration `koanf:"server-write-timeout"`
	ServerIdleTimeout       time.Duration `koanf:"server-idle-timeout"`
	RequestTimeout          time.Duration `koanf:"request-timeout"`

	DatabaseURL string `koanf:"database-url"`
	DBMaxConns  int32  `koanf:"db-max-conns"`
	DBMinConns  int32  `koanf:"db-min-conns"`

	JWTSecret            string        `koanf:"jwt-secret"`
	JWTIssuer            string        `koanf:"jwt-issuer"`
	SessionTokenTTL      time.Duration `koanf:"session-token-ttl"`
	VerificationTokenTTL time.Duration `koanf:"verification-token-ttl"`
	ResetTokenTTL        time.Duration `koanf:"reset-token-ttl"`
	PasswordHasher       string        `koanf:"password-hasher"`
	BcryptCost           int           `koanf:"bcrypt-cost"`

	PublicURL       string        `koanf:"public-url"`
	AppName         string        `koanf:"app-name"`
	SMTPHost        string        `koanf:"smtp-host"`
	SMTPPort        int           `koanf:"smtp-port"`
	SMTPUsername    string        `koanf:"smtp-username"`
	SMTPPassword    string        `koanf:"smtp-password"`
	MailFrom        string        `koanf:"mail-from"`
	MailSendTimeout time.Duration `koanf:"mail-send-timeout"`
	MailMaxRetries  int           `koanf:"mail-max-retries"`
	MailQueueSize   int           `koanf:"mail-queue-size"`

	CORSOrigins        []string      `koanf:"cors-origins"`
	RateLimitRPM       int           `koanf:"rate-limit-rpm"`
	AuthRateLimitRPM   int           `koanf:"auth-rate-limit-rpm"`
	TrustedProxies     []string      `koanf:"trusted-proxies"`
	ResetSweepInterval time.Duration `koanf:"reset-sweep-interval"`

	LogLevel  string `koanf:"log-level"`
	LogFormat string `koanf:"log-format"`
}

// Options selects the optional layers above the built-in defaults.
type Options struct {
	File  string
	Flags *pflag.FlagSet
}

var defaults = map[string]any{
	"server-port":                "8080",
	"server-read-header-timeout": 15 * time.Second,
	"server-write-timeout":       30 * time.Second,
	"server-idle-timeout":        120 * time.Second,
	"request-timeout":            30 * time.Second,
	"database-url":               "",
	"db-max-conns":               10,
	"db-min-conns":               1,
	"jwt-secret":                 "",
	"jwt-issuer":                 "go-account-service",
	"session-token-ttl":          24 * time.Hour,
	"verification-token-ttl":     15 * time.Minute,
	"reset-token-ttl":            time.Hour,
	"password-hasher":            "bcrypt",
	"bcrypt-cost":                bcrypt.DefaultCost,
	"public-url":                 "http://localhost:3000",
	"app-name":                   "MelodyVerse",
	"smtp-host":                  "",
	"smtp-port":                  587,
	"smtp-username":              "",
	"smtp-password":              "",
	"mail-from":                  "",
	"mail-send-timeout":          15 * time.Second,
	"mail-max-retries":           3,
	"mail-queue-size":            256,
	"cors-origins":               "*",
	"rate-limit-rpm":             100,
	"auth-rate-limit-rpm":        10,
	"trusted-proxies":            "",
	"reset-sweep-interval":       10 * time.Minute,
	"log-level":                  "info",
	"log-format":                 "text",
}

// RegisterFlags adds the flags the serve command exposes. Their keys match
// the YAML keys so the posflag layer overrides the file.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("server-port", "8080", "HTTP listen port")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("database-url", "", "PostgreSQL connection string; empty uses the in-memory store")
}

// Load layers built-in defaults, the optional YAML file, command-line flags
// and finally environment variables (including a local .env file).
func Load(opts Options) (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("set default %s: %w", key, err)
		}
	}

	if path := strings.TrimSpace(opts.File); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if opts.Flags != nil {
		if err := k.Load(posflag.Provider(opts.Flags, ".", k), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	for key := range defaults {
		if value, ok := lookupEnv(envName(key)); ok {
			if err := k.Set(key, value); err != nil {
				return nil, fmt.Errorf("set %s: %w", envName(key), err)
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.CORSOrigins = splitCSV(cfg.CORSOrigins)
	cfg.TrustedProxies = splitCSV(cfg.TrustedProxies)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.SessionTokenTTL <= 0 || c.VerificationTokenTTL <= 0 || c.ResetTokenTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}

	switch strings.ToLower(c.PasswordHasher) {
	case "bcrypt":
		if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
			return fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
		}
	case "argon2id":
	default:
		return fmt.Errorf("PASSWORD_HASHER must be bcrypt or argon2id")
	}

	if strings.TrimSpace(c.PublicURL) == "" {
		return fmt.Errorf("PUBLIC_URL cannot be empty")
	}

	if c.SMTPHost != "" && strings.TrimSpace(c.MailFrom) == "" {
		return fmt.Errorf("MAIL_FROM is required when SMTP_HOST is set")
	}

	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}

	if _, err := parseTrustedProxies(c.TrustedProxies); err != nil {
		return err
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json")
	}

	return nil
}

func envName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

func lookupEnv(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

// splitCSV flattens entries so both a YAML list and "a,b" from the
// environment end up as one trimmed list.
func splitCSV(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		for _, part := range strings.Split(entry, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			out = append(out, trimmed)
		}
	}

	return out
}

// TrustedProxyPrefixes returns the proxies whose forwarding headers the rate
// limiter honours. Entries are checked by Validate.
func (c *Config) TrustedProxyPrefixes() []netip.Prefix {
	prefixes, _ := parseTrustedProxies(c.TrustedProxies)
	return prefixes
}

// parseTrustedProxies accepts CIDR blocks or bare addresses.
func parseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("TRUSTED_PROXIES entry %q: %w", entry, err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES entry %q: %w", entry, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}
