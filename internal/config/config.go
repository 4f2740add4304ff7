package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName          = "WinLEW Agent"
	defaultAppEnv           = "development"
	defaultPort             = "8080"
	defaultLogLevel         = "info"
	defaultLogFormat        = "json"
	defaultShutdownDelay    = 10 * time.Second
	defaultIdempotencyTTL   = 24 * time.Hour
	defaultCallTimeout      = 15 * time.Second
	defaultClaimsFile       = "./faucet_claims.json"
	defaultRegistrations    = "./registrations.json"
	defaultDripAmount       = "1000"
	defaultTokenDecimals    = 6
	defaultRPCRateLimit     = 10
	defaultRelayPerMinute   = 20
	defaultPriceSources     = "solscan,raydium,pumpfun,dexscreener"
	defaultSolscanBaseURL   = "https://pro-api.solscan.io"
	defaultRaydiumBaseURL   = "https://api-v3.raydium.io"
	defaultPumpFunBaseURL   = "https://api.pump.fun"
	defaultDexscreenerURL   = "https://api.dexscreener.io"
	idemTTLSecondsEnvVar    = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar        = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar   = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar  = "SHUTDOWN_TIMEOUT"
	callTimeoutEnvVar       = "EXTERNAL_CALL_TIMEOUT"
	claimsBackendFile       = "file"
	claimsBackendPostgres   = "postgres"
	cooldownBackendMemory   = "memory"
	cooldownBackendRedis    = "redis"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	LogFormat      string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	// External calls (price sources, RPC, name lookups, transfers) share one timeout.
	CallTimeout time.Duration

	RPCURL        string
	RPCRateLimit  int
	TokenMint     string
	TokenDecimals int32
	KeypairPath   string
	DripAmount    string

	ClaimsBackend     string
	ClaimsFile        string
	RegistrationsFile string
	CooldownBackend   string

	// DryRun replaces on-chain transfers with synthetic signatures.
	DryRun bool
	// AnnounceDisbursements posts each drip to the general webhook.
	AnnounceDisbursements bool

	ModIDs             []string
	RelaySecret        string
	RelayRatePerMinute int

	PriceSources       []string
	SolscanAPIKey      string
	SolscanBaseURL     string
	RaydiumPoolID      string
	RaydiumBaseURL     string
	PumpFunPoolID      string
	PumpFunBaseURL     string
	DexscreenerPairID  string
	DexscreenerBaseURL string

	SchedulerEnabled  bool
	VoiceChannelID    string
	PriceChannelID    string
	AlertChannelID    string
	GeneralWebhookURL string
	PriceWebhookURL   string
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		AppEnv:         getEnv("APP_ENV", defaultAppEnv),
		Port:           getEnv("PORT", defaultPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", defaultLogFormat)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		ShutdownPeriod: defaultShutdownDelay,
		IdempotencyTTL: defaultIdempotencyTTL,
		CallTimeout:    defaultCallTimeout,

		RPCURL:      strings.TrimSpace(os.Getenv("RPC_URL")),
		TokenMint:   strings.TrimSpace(os.Getenv("TOKEN_MINT")),
		KeypairPath: strings.TrimSpace(os.Getenv("KEYPAIR_PATH")),
		DripAmount:  getEnv("DRIP_AMOUNT", defaultDripAmount),

		ClaimsBackend:     strings.ToLower(getEnv("CLAIMS_BACKEND", claimsBackendFile)),
		ClaimsFile:        getEnv("CLAIMS_FILE", defaultClaimsFile),
		RegistrationsFile: getEnv("REGISTRATIONS_FILE", defaultRegistrations),
		CooldownBackend:   strings.ToLower(getEnv("COOLDOWN_BACKEND", cooldownBackendMemory)),

		ModIDs:      splitList(os.Getenv("MOD_IDS")),
		RelaySecret: os.Getenv("RELAY_SECRET"),

		PriceSources:       splitList(getEnv("PRICE_SOURCES", defaultPriceSources)),
		SolscanAPIKey:      os.Getenv("SOLSCAN_API_KEY"),
		SolscanBaseURL:     getEnv("SOLSCAN_BASE_URL", defaultSolscanBaseURL),
		RaydiumPoolID:      os.Getenv("RAYDIUM_POOL_ID"),
		RaydiumBaseURL:     getEnv("RAYDIUM_BASE_URL", defaultRaydiumBaseURL),
		PumpFunPoolID:      os.Getenv("PUMPFUN_POOL_ID"),
		PumpFunBaseURL:     getEnv("PUMPFUN_BASE_URL", defaultPumpFunBaseURL),
		DexscreenerPairID:  os.Getenv("DEXSCREENER_PAIR_ID"),
		DexscreenerBaseURL: getEnv("DEXSCREENER_BASE_URL", defaultDexscreenerURL),

		VoiceChannelID:    os.Getenv("VOICE_CHANNEL_ID"),
		PriceChannelID:    os.Getenv("PRICE_CHANNEL_ID"),
		AlertChannelID:    os.Getenv("ALERT_CHANNEL_ID"),
		GeneralWebhookURL: os.Getenv("GENERAL_WEBHOOK_URL"),
		PriceWebhookURL:   os.Getenv("PRICE_WEBHOOK_URL"),
	}

	var err error
	if cfg.ShutdownPeriod, err = durationFromEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationFromEnv(idemTTLSecondsEnvVar, idemTTLDurEnvVar, defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}
	if v := os.Getenv(callTimeoutEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", callTimeoutEnvVar, err)
		}
		cfg.CallTimeout = d
	}

	if cfg.RPCRateLimit, err = intFromEnv("RPC_RATE_LIMIT", defaultRPCRateLimit); err != nil {
		return Config{}, err
	}
	if cfg.RelayRatePerMinute, err = intFromEnv("RELAY_RATE_LIMIT_PER_MIN", defaultRelayPerMinute); err != nil {
		return Config{}, err
	}
	decimals, err := intFromEnv("TOKEN_DECIMALS", defaultTokenDecimals)
	if err != nil {
		return Config{}, err
	}
	if decimals < 0 || decimals > 18 {
		return Config{}, fmt.Errorf("TOKEN_DECIMALS must be between 0 and 18")
	}
	cfg.TokenDecimals = int32(decimals)

	if cfg.SchedulerEnabled, err = boolFromEnv("SCHEDULER_ENABLED", true); err != nil {
		return Config{}, err
	}
	if cfg.DryRun, err = boolFromEnv("TRANSFER_DRY_RUN", false); err != nil {
		return Config{}, err
	}
	if cfg.AnnounceDisbursements, err = boolFromEnv("ANNOUNCE_DISBURSEMENTS", false); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	var missing []string
	if c.RPCURL == "" {
		missing = append(missing, "RPC_URL")
	}
	if c.TokenMint == "" {
		missing = append(missing, "TOKEN_MINT")
	}
	if c.KeypairPath == "" {
		missing = append(missing, "KEYPAIR_PATH")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}

	switch c.ClaimsBackend {
	case claimsBackendFile:
		if c.ClaimsFile == "" {
			return fmt.Errorf("CLAIMS_FILE must be set for the file claims backend")
		}
	case claimsBackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set when CLAIMS_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("unknown CLAIMS_BACKEND %q", c.ClaimsBackend)
	}

	switch c.CooldownBackend {
	case cooldownBackendMemory:
	case cooldownBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL must be set when COOLDOWN_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unknown COOLDOWN_BACKEND %q", c.CooldownBackend)
	}

	if c.CallTimeout <= 0 {
		return fmt.Errorf("%s must be positive", callTimeoutEnvVar)
	}
	if len(c.PriceSources) == 0 {
		return fmt.Errorf("PRICE_SOURCES must list at least one source")
	}
	return nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// PostgresClaims reports whether the claim ledger lives in PostgreSQL.
func (c Config) PostgresClaims() bool { return c.ClaimsBackend == claimsBackendPostgres }

// RedisCooldowns reports whether the cooldown table is kept in Redis.
func (c Config) RedisCooldowns() bool { return c.CooldownBackend == cooldownBackendRedis }

// IsModerator reports whether the requester belongs to the authorized set.
func (c Config) IsModerator(requesterID string) bool {
	for _, id := range c.ModIDs {
		if id == requesterID {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func intFromEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func durationFromEnv(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(durationKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
