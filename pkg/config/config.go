package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/fx"
)

type Language struct {
	Label string `mapstructure:"LABEL"`
	Code  string `mapstructure:"CODE"`
}

type Provider struct {
	URL              string        `mapstructure:"URL"`
	APIKey           string        `mapstructure:"API_KEY"`
	BaseURL          string        `mapstructure:"BASE_URL"`
	ConnectTimeout   time.Duration `mapstructure:"CONNECT_TIMEOUT"`
	ReadTimeout      time.Duration `mapstructure:"READ_TIMEOUT"`
	MaxAttempts      int           `mapstructure:"MAX_ATTEMPTS"`
	Backoff          time.Duration `mapstructure:"BACKOFF"`
	RateLimitBackoff time.Duration `mapstructure:"RATE_LIMIT_BACKOFF"`
	RatePerSecond    float64       `mapstructure:"RATE_PER_SECOND"`
	Burst            int           `mapstructure:"BURST"`
}

type CacheSettings struct {
	Size int           `mapstructure:"CACHE_SIZE"`
	TTL  time.Duration `mapstructure:"CACHE_TTL"`
}

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	Otel       struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"OTEL"`
	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Database struct {
		Type           string `mapstructure:"TYPE"`
		DSN            string `mapstructure:"DSN"`
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBNAME         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	Flagsmith struct {
		Addr   string `mapstructure:"ADDR"`
		ApiKey string `mapstructure:"API_KEY"`
	} `mapstructure:"FLAGSMITH"`
	Line struct {
		ChannelAccessToken string   `mapstructure:"CHANNEL_ACCESS_TOKEN"`
		ChannelSecret      string   `mapstructure:"CHANNEL_SECRET"`
		APIBaseURL         string   `mapstructure:"API_BASE_URL"`
		MasterUserIDs      []string `mapstructure:"MASTER_USER_IDS"`
	} `mapstructure:"LINE"`
	Admin struct {
		Token string `mapstructure:"TOKEN"`
	} `mapstructure:"ADMIN"`
	DataFile    string `mapstructure:"DATA_FILE"`
	Translation struct {
		CacheSize        int           `mapstructure:"CACHE_SIZE"`
		CacheTTL         time.Duration `mapstructure:"CACHE_TTL"`
		GateCapacity     int           `mapstructure:"GATE_CAPACITY"`
		JobTimeout       time.Duration `mapstructure:"JOB_TIMEOUT"`
		DefaultEngine    string        `mapstructure:"DEFAULT_ENGINE"`
		DefaultLanguages []string      `mapstructure:"DEFAULT_LANGUAGES"`
	} `mapstructure:"TRANSLATION"`
	Group    CacheSettings `mapstructure:"GROUP"`
	Tenant   CacheSettings `mapstructure:"TENANT"`
	Provider struct {
		Google Provider `mapstructure:"GOOGLE"`
		DeepL  Provider `mapstructure:"DEEPL"`
	} `mapstructure:"PROVIDER"`
	Reaper struct {
		InactiveDays int           `mapstructure:"INACTIVE_DAYS"`
		Hour         int           `mapstructure:"HOUR"`
		Minute       int           `mapstructure:"MINUTE"`
		Interval     time.Duration `mapstructure:"INTERVAL"`
		RunOnStart   bool          `mapstructure:"RUN_ON_START"`
	} `mapstructure:"REAPER"`
	Languages []Language `mapstructure:"LANGUAGES"`
}

// DefaultLanguageTable is the selectable target-language table, in menu order.
var DefaultLanguageTable = []Language{
	{Label: "🇹🇼 中文(台灣)", Code: "zh-TW"},
	{Label: "🇺🇸 英文", Code: "en"},
	{Label: "🇹🇭 泰文", Code: "th"},
	{Label: "🇻🇳 越南文", Code: "vi"},
	{Label: "🇲🇲 緬甸文", Code: "my"},
	{Label: "🇰🇷 韓文", Code: "ko"},
	{Label: "🇮🇩 印尼文", Code: "id"},
	{Label: "🇯🇵 日文", Code: "ja"},
	{Label: "🇷🇺 俄文", Code: "ru"},
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

func LoadConfig() (*Config, error) {
	return Load(".")
}

// Load reads config.yaml from the given paths and overlays environment
// variables. A missing config file is not an error.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(cfg.Languages) == 0 {
		cfg.Languages = append([]Language(nil), DefaultLanguageTable...)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "fanfan-translator")
	v.SetDefault("APP_VERSION", "dev")

	v.SetDefault("HTTP_SERVER.ADDR", "5000")
	v.SetDefault("HTTP_SERVER.READ_TIMEOUT", 10*time.Second)
	v.SetDefault("HTTP_SERVER.WRITE_TIMEOUT", 30*time.Second)
	v.SetDefault("HTTP_SERVER.IDLE_TIMEOUT", 60*time.Second)

	v.SetDefault("DATABASE.TYPE", "sqlite")
	v.SetDefault("DATABASE.DSN", "fanfan.db")
	v.SetDefault("DATABASE.HOST", "")
	v.SetDefault("DATABASE.PORT", "5432")
	v.SetDefault("DATABASE.DBNAME", "")
	v.SetDefault("DATABASE.USER", "")
	v.SetDefault("DATABASE.PASSWORD", "")
	v.SetDefault("DATABASE.SSLMODE", "disable")
	v.SetDefault("DATABASE.TIMEZONE", "UTC")
	v.SetDefault("DATABASE.CONNECTION_POOL.MAX_IDLE_CONN", 5)
	v.SetDefault("DATABASE.CONNECTION_POOL.MAX_OPEN_CONNS", 10)
	v.SetDefault("DATABASE.CONNECTION_POOL.CONN_MAX_LIFETIME", time.Hour)
	v.SetDefault("DATABASE.CONNECTION_POOL.CONN_MAX_IDLE_TIME", 10*time.Minute)

	v.SetDefault("REDIS.ADDR", "")
	v.SetDefault("REDIS.PASSWORD", "")
	v.SetDefault("REDIS.DB", 0)
	v.SetDefault("REDIS.POOL_SIZE", 10)
	v.SetDefault("REDIS.POOL_TIMEOUT", 4*time.Second)

	v.SetDefault("OTEL.ADDR", "")
	v.SetDefault("FLAGSMITH.ADDR", "")
	v.SetDefault("FLAGSMITH.API_KEY", "")

	v.SetDefault("LINE.CHANNEL_ACCESS_TOKEN", "")
	v.SetDefault("LINE.CHANNEL_SECRET", "")
	v.SetDefault("LINE.API_BASE_URL", "https://api.line.me")
	v.SetDefault("LINE.MASTER_USER_IDS", []string{})

	v.SetDefault("ADMIN.TOKEN", "")
	v.SetDefault("DATA_FILE", "data.json")

	v.SetDefault("TRANSLATION.CACHE_SIZE", 1000)
	v.SetDefault("TRANSLATION.CACHE_TTL", time.Hour)
	v.SetDefault("TRANSLATION.GATE_CAPACITY", 4)
	v.SetDefault("TRANSLATION.JOB_TIMEOUT", 20*time.Second)
	v.SetDefault("TRANSLATION.DEFAULT_ENGINE", "google")
	v.SetDefault("TRANSLATION.DEFAULT_LANGUAGES", []string{"zh-TW"})

	v.SetDefault("GROUP.CACHE_SIZE", 500)
	v.SetDefault("GROUP.CACHE_TTL", 5*time.Minute)
	v.SetDefault("TENANT.CACHE_SIZE", 200)
	v.SetDefault("TENANT.CACHE_TTL", 30*time.Minute)

	v.SetDefault("PROVIDER.GOOGLE.URL", "https://translate.googleapis.com/translate_a/single")
	v.SetDefault("PROVIDER.GOOGLE.CONNECT_TIMEOUT", 1500*time.Millisecond)
	v.SetDefault("PROVIDER.GOOGLE.READ_TIMEOUT", 3*time.Second)
	v.SetDefault("PROVIDER.GOOGLE.MAX_ATTEMPTS", 1)
	v.SetDefault("PROVIDER.GOOGLE.BACKOFF", 100*time.Millisecond)
	v.SetDefault("PROVIDER.GOOGLE.RATE_LIMIT_BACKOFF", time.Second)
	v.SetDefault("PROVIDER.GOOGLE.RATE_PER_SECOND", 0)
	v.SetDefault("PROVIDER.GOOGLE.BURST", 0)

	v.SetDefault("PROVIDER.DEEPL.API_KEY", "")
	v.SetDefault("PROVIDER.DEEPL.BASE_URL", "https://api-free.deepl.com")
	v.SetDefault("PROVIDER.DEEPL.CONNECT_TIMEOUT", 2*time.Second)
	v.SetDefault("PROVIDER.DEEPL.READ_TIMEOUT", 5*time.Second)
	v.SetDefault("PROVIDER.DEEPL.MAX_ATTEMPTS", 1)
	v.SetDefault("PROVIDER.DEEPL.BACKOFF", 100*time.Millisecond)
	v.SetDefault("PROVIDER.DEEPL.RATE_LIMIT_BACKOFF", time.Second)
	v.SetDefault("PROVIDER.DEEPL.RATE_PER_SECOND", 0)
	v.SetDefault("PROVIDER.DEEPL.BURST", 0)

	v.SetDefault("REAPER.INACTIVE_DAYS", 20)
	v.SetDefault("REAPER.HOUR", 3)
	v.SetDefault("REAPER.MINUTE", 0)
	v.SetDefault("REAPER.INTERVAL", 0)
	v.SetDefault("REAPER.RUN_ON_START", false)
}
