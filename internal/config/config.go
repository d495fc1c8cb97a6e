package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Environment keys.
const (
	KeyPort             = "PORT"
	KeyDatabaseURL      = "DATABASE_URL"
	KeyCORSOrigin       = "CORS_ORIGIN"
	KeyAPIKey           = "API_KEY"
	KeyGeminiModel      = "GEMINI_MODEL"
	KeyWhisperInterval  = "WHISPER_INTERVAL"
	KeyWhisperHideDelay = "WHISPER_HIDE_DELAY"
	KeySentConfirmation = "SENT_CONFIRMATION"
	KeyLikeSessionTTL   = "LIKE_SESSION_TTL"
	KeyDebug            = "DEBUG"
)

// Config is the resolved process configuration.
type Config struct {
	Port        string
	DatabaseURL string
	CORSOrigin  string
	Debug       bool

	GeminiAPIKey string
	GeminiModel  string

	WhisperInterval  time.Duration
	WhisperHideDelay time.Duration
	SentConfirmation time.Duration
	LikeSessionTTL   time.Duration
}

// Load reads an optional .env file and then the process environment.
// The returned bool reports whether a .env file was found.
func Load(envFiles ...string) (*Config, bool) {
	foundEnv := godotenv.Load(envFiles...) == nil
	return FromViper(newViper()), foundEnv
}

func newViper() *viper.Viper {
	vp := viper.New()
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	vp.SetDefault(KeyPort, "8080")
	vp.SetDefault(KeyDatabaseURL, "sqlite://whispr.db")
	vp.SetDefault(KeyCORSOrigin, "*")
	vp.SetDefault(KeyGeminiModel, "gemini-3-flash-preview")
	vp.SetDefault(KeyWhisperInterval, "6500ms")
	vp.SetDefault(KeyWhisperHideDelay, "800ms")
	vp.SetDefault(KeySentConfirmation, "3s")
	vp.SetDefault(KeyLikeSessionTTL, "24h")
	vp.SetDefault(KeyDebug, false)
	return vp
}

// FromViper resolves a Config from vp. Exposed for tests.
func FromViper(vp *viper.Viper) *Config {
	return &Config{
		Port:             vp.GetString(KeyPort),
		DatabaseURL:      vp.GetString(KeyDatabaseURL),
		CORSOrigin:       vp.GetString(KeyCORSOrigin),
		Debug:            vp.GetBool(KeyDebug),
		GeminiAPIKey:     vp.GetString(KeyAPIKey),
		GeminiModel:      vp.GetString(KeyGeminiModel),
		WhisperInterval:  vp.GetDuration(KeyWhisperInterval),
		WhisperHideDelay: vp.GetDuration(KeyWhisperHideDelay),
		SentConfirmation: vp.GetDuration(KeySentConfirmation),
		LikeSessionTTL:   vp.GetDuration(KeyLikeSessionTTL),
	}
}
