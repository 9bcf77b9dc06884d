package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// ErrInvalidConfig marks configuration problems that abort a run.
var ErrInvalidConfig = errors.New("invalid configuration")

// Minimum delays kept regardless of configuration.
const (
	MinCallDelay = 1 * time.Second
	MinPostDelay = 10 * time.Second
)

// Config holds all application configuration. It is built once per process
// by Load and treated as read-only afterwards.
type Config struct {
	App      App      `mapstructure:",squash"`
	Browser  Browser  `mapstructure:",squash"`
	Coupang  Coupang  `mapstructure:",squash"`
	Content  Content  `mapstructure:",squash"`
	Trends   Trends   `mapstructure:",squash"`
	Schedule Schedule `mapstructure:",squash"`
	Platform Platform `mapstructure:",squash"`
	Blogger  Blogger  `mapstructure:",squash"`
	Tistory  Tistory  `mapstructure:",squash"`
	Indexing Indexing `mapstructure:",squash"`
	OpenAI   OpenAI   `mapstructure:",squash"`
	HTTP     HTTP     `mapstructure:",squash"`
	Stealth  Stealth  `mapstructure:",squash"`
	Database Database `mapstructure:",squash"`
	Daemon   Daemon   `mapstructure:",squash"`
}

type App struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // "text" or "json"
	WorkDir   string `mapstructure:"work_dir"`
}

type Browser struct {
	Headless    bool          `mapstructure:"browser_headless"`
	Bin         string        `mapstructure:"rod_browser_bin"`
	UserDataDir string        `mapstructure:"browser_user_data_dir"`
	Timeout     time.Duration `mapstructure:"browser_timeout"`
	SessionDir  string        `mapstructure:"session_dir"`
}

type Coupang struct {
	Username          string   `mapstructure:"coupang_username"`
	Password          string   `mapstructure:"coupang_password"`
	SubID             string   `mapstructure:"coupang_sub_id"`
	KeepLogin         bool     `mapstructure:"keep_coupang_login"`
	ProductLimit      int      `mapstructure:"coupang_product_limit"`
	TrendProductLimit int      `mapstructure:"trend_product_limit"`
	UseRocket         bool     `mapstructure:"use_rocket_shipping"`
	BannedWords       []string `mapstructure:"banned_words"`
	ExactMatching     bool     `mapstructure:"exact_search_matching"`
	ProductLinksFile  string   `mapstructure:"product_links_file"`
	RatePerSecond     float64  `mapstructure:"coupang_rate_per_second"`
}

type Content struct {
	TemplateDir         string `mapstructure:"template_dir"`
	TemplateName        string `mapstructure:"template_name"`
	TitleBannerTemplate string `mapstructure:"title_banner_template"`
	UseTitleBanner      bool   `mapstructure:"use_title_banner"`
	UseImages           bool   `mapstructure:"use_product_images"`
	RequireReviews      bool   `mapstructure:"require_review_content"`
	AIReviewSummary     bool   `mapstructure:"use_ai_review_summary"`
	AIDescription       bool   `mapstructure:"use_ai_description"`
	AIGuide             bool   `mapstructure:"use_ai_guide"`
	AITitle             bool   `mapstructure:"use_ai_title"`
	ShortURL            bool   `mapstructure:"use_short_url"`
	ShortenerURL        string `mapstructure:"shortener_url"`
}

type Trends struct {
	Source        string   `mapstructure:"trend_source"` // "manual", "naver", "feed"
	Keywords      []string `mapstructure:"keywords"`
	NaverCategory string   `mapstructure:"naver_category"`
	FeedURL       string   `mapstructure:"trend_feed_url"`
}

type Schedule struct {
	Enabled      bool          `mapstructure:"use_schedule"`
	Interval     string        `mapstructure:"schedule_interval"` // e.g. "3시간마다"
	CallDelayMin time.Duration `mapstructure:"call_delay_min"`
	CallDelayMax time.Duration `mapstructure:"call_delay_max"`
	PostDelayMin time.Duration `mapstructure:"post_delay_min"`
	PostDelayMax time.Duration `mapstructure:"post_delay_max"`
}

type Platform struct {
	Name    string `mapstructure:"platform"` // "blogger", "tistory"
	Account string `mapstructure:"account"`
}

type Blogger struct {
	BlogID          string `mapstructure:"blogger_blog_id"`
	CredentialsFile string `mapstructure:"blogger_credentials_file"`
	TokenFile       string `mapstructure:"blogger_token_file"`
}

type Tistory struct {
	Username string `mapstructure:"tistory_username"`
	Password string `mapstructure:"tistory_password"`
	Domain   string `mapstructure:"tistory_domain"`
	Category string `mapstructure:"tistory_category"`
}

type Indexing struct {
	Enabled         bool   `mapstructure:"use_search_console"`
	CredentialsFile string `mapstructure:"indexing_credentials_file"`
}

type OpenAI struct {
	APIKey  string        `mapstructure:"openai_api_key"`
	Model   string        `mapstructure:"openai_model"`
	BaseURL string        `mapstructure:"openai_base_url"`
	Timeout time.Duration `mapstructure:"openai_timeout"`
}

type HTTP struct {
	Host      string `mapstructure:"host"`
	Port      string `mapstructure:"port"`
	APIKey    string `mapstructure:"api_key"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

type Stealth struct {
	DelayProfile  string  `mapstructure:"delay_profile"` // "cautious", "normal", "aggressive"
	RespectRobots bool    `mapstructure:"respect_robots"`
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	RateBurst     int     `mapstructure:"rate_burst"`
	ProxyFile     string  `mapstructure:"proxy_file"`
}

type Database struct {
	URL string `mapstructure:"database_url"`
}

type Daemon struct {
	BatchCron      string `mapstructure:"daemon_batch_cron"`
	IndexRetryCron string `mapstructure:"daemon_index_retry_cron"`
	IndexRetryMax  int    `mapstructure:"daemon_index_retry_max"`
}

// SetDefaults registers every key so AutomaticEnv can resolve it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("WORK_DIR", ".")

	v.SetDefault("BROWSER_HEADLESS", false)
	v.SetDefault("ROD_BROWSER_BIN", "")
	v.SetDefault("BROWSER_USER_DATA_DIR", "")
	v.SetDefault("BROWSER_TIMEOUT", "15s")
	v.SetDefault("SESSION_DIR", ".sessions")

	v.SetDefault("COUPANG_USERNAME", "")
	v.SetDefault("COUPANG_PASSWORD", "")
	v.SetDefault("COUPANG_SUB_ID", "")
	v.SetDefault("KEEP_COUPANG_LOGIN", true)
	v.SetDefault("COUPANG_PRODUCT_LIMIT", 5)
	v.SetDefault("TREND_PRODUCT_LIMIT", 1)
	v.SetDefault("USE_ROCKET_SHIPPING", false)
	v.SetDefault("BANNED_WORDS", "")
	v.SetDefault("EXACT_SEARCH_MATCHING", true)
	v.SetDefault("PRODUCT_LINKS_FILE", "product_links.json")
	v.SetDefault("COUPANG_RATE_PER_SECOND", 1.0)

	v.SetDefault("TEMPLATE_DIR", "templates")
	v.SetDefault("TEMPLATE_NAME", "default")
	v.SetDefault("TITLE_BANNER_TEMPLATE", "default")
	v.SetDefault("USE_TITLE_BANNER", false)
	v.SetDefault("USE_PRODUCT_IMAGES", true)
	v.SetDefault("REQUIRE_REVIEW_CONTENT", true)
	v.SetDefault("USE_AI_REVIEW_SUMMARY", false)
	v.SetDefault("USE_AI_DESCRIPTION", false)
	v.SetDefault("USE_AI_GUIDE", false)
	v.SetDefault("USE_AI_TITLE", false)
	v.SetDefault("USE_SHORT_URL", false)
	v.SetDefault("SHORTENER_URL", "https://tinyurl.com/api-create.php")

	v.SetDefault("TREND_SOURCE", "manual")
	v.SetDefault("KEYWORDS", "")
	v.SetDefault("NAVER_CATEGORY", "")
	v.SetDefault("TREND_FEED_URL", "https://trends.google.com/trending/rss?geo=KR")

	v.SetDefault("USE_SCHEDULE", false)
	v.SetDefault("SCHEDULE_INTERVAL", "3시간마다")
	v.SetDefault("CALL_DELAY_MIN", "1s")
	v.SetDefault("CALL_DELAY_MAX", "3s")
	v.SetDefault("POST_DELAY_MIN", "10s")
	v.SetDefault("POST_DELAY_MAX", "20s")

	v.SetDefault("PLATFORM", "blogger")
	v.SetDefault("ACCOUNT", "")

	v.SetDefault("BLOGGER_BLOG_ID", "")
	v.SetDefault("BLOGGER_CREDENTIALS_FILE", "credentials.json")
	v.SetDefault("BLOGGER_TOKEN_FILE", "token.json")

	v.SetDefault("TISTORY_USERNAME", "")
	v.SetDefault("TISTORY_PASSWORD", "")
	v.SetDefault("TISTORY_DOMAIN", "")
	v.SetDefault("TISTORY_CATEGORY", "")

	v.SetDefault("USE_SEARCH_CONSOLE", false)
	v.SetDefault("INDEXING_CREDENTIALS_FILE", "service_account.json")

	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com")
	v.SetDefault("OPENAI_TIMEOUT", "60s")

	v.SetDefault("HOST", "")
	v.SetDefault("PORT", "8080")
	v.SetDefault("API_KEY", "")
	v.SetDefault("JWT_SECRET", "")

	v.SetDefault("DELAY_PROFILE", "normal")
	v.SetDefault("RESPECT_ROBOTS", true)
	v.SetDefault("RATE_PER_SECOND", 2.0)
	v.SetDefault("RATE_BURST", 3)
	v.SetDefault("PROXY_FILE", "")

	v.SetDefault("DATABASE_URL", "")

	v.SetDefault("DAEMON_BATCH_CRON", "")
	v.SetDefault("DAEMON_INDEX_RETRY_CRON", "0 9 * * *")
	v.SetDefault("DAEMON_INDEX_RETRY_MAX", 100)
}

// Load reads .env (if present) and the environment into a Config.
// Overrides, when given, are applied on top before validation; keys use the
// same names as the environment variables.
func Load(overrides map[string]any) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	SetDefaults(v)

	file := os.Getenv("CONFIG_FILE")
	if file == "" {
		file = ".env"
	}
	v.SetConfigType("env")
	v.SetConfigFile(file)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		logrus.WithField("file", file).Debug("config file not read, using environment only")
	}

	for key, val := range overrides {
		v.Set(key, val)
	}

	cfg := &Config{}
	err := v.Unmarshal(cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	))
	if err != nil {
		return nil, errors.Wrap(err, "decode configuration")
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Coupang.BannedWords = trimAll(c.Coupang.BannedWords)
	c.Trends.Keywords = trimAll(c.Trends.Keywords)
	c.Platform.Name = strings.ToLower(strings.TrimSpace(c.Platform.Name))
	c.Trends.Source = strings.ToLower(strings.TrimSpace(c.Trends.Source))

	s := &c.Schedule
	if s.CallDelayMin < MinCallDelay {
		logrus.WithField("call_delay_min", s.CallDelayMin).Warn("call delay below floor, raising")
		s.CallDelayMin = MinCallDelay
	}
	if s.CallDelayMax < s.CallDelayMin {
		s.CallDelayMax = s.CallDelayMin
	}
	if s.PostDelayMin < MinPostDelay {
		logrus.WithField("post_delay_min", s.PostDelayMin).Warn("post delay below floor, raising")
		s.PostDelayMin = MinPostDelay
	}
	if s.PostDelayMax < s.PostDelayMin {
		s.PostDelayMax = s.PostDelayMin
	}
}

// Validate checks settings that every command depends on.
func (c *Config) Validate() error {
	switch c.Platform.Name {
	case "blogger", "tistory":
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown platform %q", c.Platform.Name)
	}
	switch c.Trends.Source {
	case "manual", "naver", "feed":
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown trend source %q", c.Trends.Source)
	}
	if c.Coupang.ProductLimit <= 0 {
		return errors.Wrap(ErrInvalidConfig, "COUPANG_PRODUCT_LIMIT must be positive")
	}
	if c.Coupang.TrendProductLimit <= 0 {
		return errors.Wrap(ErrInvalidConfig, "TREND_PRODUCT_LIMIT must be positive")
	}
	if c.Stealth.RatePerSecond <= 0 {
		return errors.Wrap(ErrInvalidConfig, "RATE_PER_SECOND must be positive")
	}
	if c.Stealth.RateBurst < 1 {
		return errors.Wrap(ErrInvalidConfig, "RATE_BURST must be at least 1")
	}
	return nil
}

// ValidateForRun checks the credentials a publishing batch needs.
func (c *Config) ValidateForRun() error {
	if c.Coupang.SubID == "" {
		return errors.Wrap(ErrInvalidConfig, "COUPANG_SUB_ID is required")
	}
	switch c.Platform.Name {
	case "blogger":
		if c.Blogger.BlogID == "" {
			return errors.Wrap(ErrInvalidConfig, "BLOGGER_BLOG_ID is required")
		}
	case "tistory":
		if c.Tistory.Domain == "" {
			return errors.Wrap(ErrInvalidConfig, "TISTORY_DOMAIN is required")
		}
	}
	if (c.Content.AIDescription || c.Content.AIGuide || c.Content.AIReviewSummary || c.Content.AITitle) && c.OpenAI.APIKey == "" {
		return errors.Wrap(ErrInvalidConfig, "OPENAI_API_KEY is required when AI content is enabled")
	}
	return nil
}

// SessionAccount returns the identifier session files are keyed by.
func (c *Config) SessionAccount() string {
	if c.Platform.Account != "" {
		return c.Platform.Account
	}
	if c.Coupang.Username != "" {
		return c.Coupang.Username
	}
	return "default"
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
