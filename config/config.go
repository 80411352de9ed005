package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const fakeWebhookSecret = "whsec_local_development"

type Config struct {
	DatabaseURL string
	Port        string
	Environment string
	JWTSecret   string

	// TrustedProxies lists reverse proxies whose X-Forwarded-For is honoured.
	TrustedProxies []string

	Stripe    StripeConfig
	Tips      TipConfig
	RateLimit RateLimitConfig
}

type StripeConfig struct {
	SecretKey         string
	WebhookSecret     string
	ConnectRefreshURL string
	ConnectReturnURL  string
}

// TipConfig holds tip bounds and the fee schedule. Amounts are minor units.
type TipConfig struct {
	DefaultCurrency    string
	MinTipCents        int64
	MaxTipCents        int64
	ProcessingFeeRate  decimal.Decimal
	ProcessingFeeFixed int64
	PlatformFeeRate    decimal.Decimal
	MaxMessageLength   int
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DATABASE_URL", "streettips.db")
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("JWT_SECRET", "your-secret-key-change-in-production")
	v.SetDefault("STRIPE_SECRET_KEY", "")
	v.SetDefault("STRIPE_WEBHOOK_SECRET", "")
	v.SetDefault("CONNECT_REFRESH_URL", "http://localhost:3000/performer/onboarding/refresh")
	v.SetDefault("CONNECT_RETURN_URL", "http://localhost:3000/performer/onboarding/complete")
	v.SetDefault("DEFAULT_CURRENCY", "usd")
	v.SetDefault("MIN_TIP_CENTS", 50)
	v.SetDefault("MAX_TIP_CENTS", 10000)
	v.SetDefault("PROCESSING_FEE_RATE", "0.029")
	v.SetDefault("PROCESSING_FEE_FIXED_CENTS", 30)
	v.SetDefault("PLATFORM_FEE_RATE", "0.05")
	v.SetDefault("MAX_MESSAGE_LENGTH", 200)
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 50)
	v.SetDefault("TRUSTED_PROXIES", "")
}

// Load reads defaults, an optional CONFIG_FILE and environment variables, in
// increasing order of precedence.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	processingRate, err := decimal.NewFromString(v.GetString("PROCESSING_FEE_RATE"))
	if err != nil {
		return nil, fmt.Errorf("PROCESSING_FEE_RATE: %w", err)
	}
	platformRate, err := decimal.NewFromString(v.GetString("PLATFORM_FEE_RATE"))
	if err != nil {
		return nil, fmt.Errorf("PLATFORM_FEE_RATE: %w", err)
	}

	cfg := &Config{
		DatabaseURL:    v.GetString("DATABASE_URL"),
		Port:           v.GetString("PORT"),
		Environment:    v.GetString("ENVIRONMENT"),
		JWTSecret:      v.GetString("JWT_SECRET"),
		TrustedProxies: splitList(v.GetString("TRUSTED_PROXIES")),
		Stripe: StripeConfig{
			SecretKey:         v.GetString("STRIPE_SECRET_KEY"),
			WebhookSecret:     v.GetString("STRIPE_WEBHOOK_SECRET"),
			ConnectRefreshURL: v.GetString("CONNECT_REFRESH_URL"),
			ConnectReturnURL:  v.GetString("CONNECT_RETURN_URL"),
		},
		Tips: TipConfig{
			DefaultCurrency:    strings.ToLower(v.GetString("DEFAULT_CURRENCY")),
			MinTipCents:        v.GetInt64("MIN_TIP_CENTS"),
			MaxTipCents:        v.GetInt64("MAX_TIP_CENTS"),
			ProcessingFeeRate:  processingRate,
			ProcessingFeeFixed: v.GetInt64("PROCESSING_FEE_FIXED_CENTS"),
			PlatformFeeRate:    platformRate,
			MaxMessageLength:   v.GetInt("MAX_MESSAGE_LENGTH"),
		},
		RateLimit: RateLimitConfig{
			RPS:   v.GetFloat64("RATE_LIMIT_RPS"),
			Burst: v.GetInt("RATE_LIMIT_BURST"),
		},
	}

	if cfg.UseFakeGateway() && cfg.Stripe.WebhookSecret == "" {
		cfg.Stripe.WebhookSecret = fakeWebhookSecret
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// UseFakeGateway is true when no processor credentials are configured.
func (c *Config) UseFakeGateway() bool {
	return c.Stripe.SecretKey == ""
}

// Validate rejects configurations that would break tip invariants and warns
// about insecure but workable settings.
func Validate(cfg *Config, log zerolog.Logger) error {
	t := cfg.Tips
	if t.MinTipCents <= 0 {
		return errors.New("MIN_TIP_CENTS must be positive")
	}
	if t.MinTipCents > t.MaxTipCents {
		return fmt.Errorf("MIN_TIP_CENTS (%d) exceeds MAX_TIP_CENTS (%d)", t.MinTipCents, t.MaxTipCents)
	}
	if t.ProcessingFeeRate.IsNegative() || t.ProcessingFeeFixed < 0 || t.PlatformFeeRate.IsNegative() {
		return errors.New("fee settings must not be negative")
	}
	if t.PlatformFeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return errors.New("PLATFORM_FEE_RATE must be below 1")
	}
	if len(t.DefaultCurrency) != 3 {
		return fmt.Errorf("DEFAULT_CURRENCY must be a 3-letter ISO code, got %q", t.DefaultCurrency)
	}

	// The minimum tip has to absorb both fees so net amounts stay non-negative.
	minTip := decimal.NewFromInt(t.MinTipCents)
	fees := minTip.Mul(t.ProcessingFeeRate).Add(decimal.NewFromInt(t.ProcessingFeeFixed)).Round(0).
		Add(minTip.Mul(t.PlatformFeeRate).Round(0))
	if fees.GreaterThan(minTip) {
		return fmt.Errorf("MIN_TIP_CENTS (%d) does not cover fees of %s", t.MinTipCents, fees.String())
	}

	if !cfg.UseFakeGateway() && cfg.Stripe.WebhookSecret == "" {
		return errors.New("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set")
	}

	if len(cfg.JWTSecret) < 32 {
		log.Warn().Int("length", len(cfg.JWTSecret)).Msg("JWT_SECRET should be at least 32 characters")
	}
	if cfg.Environment == "production" && cfg.UseFakeGateway() {
		log.Warn().Msg("running in production without STRIPE_SECRET_KEY, payments use the fake gateway")
	}
	return nil
}
