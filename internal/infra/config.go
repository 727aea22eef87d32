package infra

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Драйверы хранилища контента
const (
	StoreDriverPostgREST = "postgrest"
	StoreDriverPostgres  = "postgres"
)

// Config — корневая структура конфигурации адаптера.
// Собирается один раз при старте процесса и передается в конструкторы явно.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Site     SiteConfig     `mapstructure:"site"`
	Store    StoreConfig    `mapstructure:"store"`
	Probe    ProbeConfig    `mapstructure:"probe"`
	Incident IncidentConfig `mapstructure:"incident"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig описывает настройки HTTP-сервера.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// MetricsConfig — отдельный listener для Prometheus.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// SiteConfig — идентичность сайта, которую видит мониторинг.
type SiteConfig struct {
	ID          string `mapstructure:"id"`
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Version     string `mapstructure:"version"`
}

// StoreConfig описывает подключение к хранилищу контента (Supabase/PostgREST или Postgres напрямую).
type StoreConfig struct {
	Driver       string `mapstructure:"driver"`
	URL          string `mapstructure:"url"`
	Key          string `mapstructure:"key"`
	DSN          string `mapstructure:"dsn"`
	ContentTable string `mapstructure:"content_table"`
	FormsTable   string `mapstructure:"forms_table"`
}

// Configured — единственное место, где решается, заданы ли учетные данные хранилища.
func (c StoreConfig) Configured() bool {
	switch c.Driver {
	case StoreDriverPostgres:
		return c.DSN != ""
	default:
		return c.URL != "" && c.Key != ""
	}
}

// ProbeConfig — бюджет времени для проб агрегированного health.
type ProbeConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// IncidentConfig — shared secret для эндпоинта логирования инцидентов.
type IncidentConfig struct {
	Secret string `mapstructure:"secret"`
	Header string `mapstructure:"header"`
}

// RedisConfig описывает Pub/Sub для веера событий. Пустой Addr отключает публикацию.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// envBindings — ключи без дефолтов и имена переменных, под которыми адаптер уже развернут.
// Ключи с дефолтами viper подхватывает из ENV сам (SERVER_ADDR, PROBE_TIMEOUT, ...).
var envBindings = map[string][]string{
	"store.url":        {"STORE_URL", "VITE_SUPABASE_URL"},
	"store.key":        {"STORE_KEY", "VITE_SUPABASE_ANON_KEY"},
	"store.dsn":        {"STORE_DSN"},
	"site.id":          {"SITE_ID"},
	"site.name":        {"SITE_NAME"},
	"site.environment": {"SITE_ENVIRONMENT", "ENVIRONMENT"},
	"site.version":     {"SITE_VERSION", "VERCEL_GIT_COMMIT_SHA"},
	"incident.secret":  {"INCIDENT_SECRET", "DONEWELL_LOG_SECRET"},
	"redis.addr":       {"REDIS_ADDR"},
	"redis.password":   {"REDIS_PASSWORD"},
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Настройка поиска файла
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// 2. ENV: SERVER_ADDR=:9000 перекроет server.addr
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, names := range envBindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	// 3. Дефолты
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Файла нет — работаем на ENV и дефолтах
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	cfg.normalize()
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("site.id", "tb_prod_001")
	v.SetDefault("site.name", "trickbaseai.com")
	v.SetDefault("site.environment", "production")
	v.SetDefault("site.version", "dev")
	v.SetDefault("store.driver", StoreDriverPostgREST)
	v.SetDefault("store.content_table", "blog_posts")
	v.SetDefault("store.forms_table", "contact_submissions")
	v.SetDefault("probe.timeout", 2*time.Second)
	v.SetDefault("incident.header", "X-DoneWell-Secret")
	v.SetDefault("redis.db", 0)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}

// commitSHA — полный или укороченный git SHA длиннее короткой формы.
var commitSHA = regexp.MustCompile(`^[0-9a-fA-F]{8,40}$`)

// normalize приводит значения к виду, который ожидают компоненты.
func (c *Config) normalize() {
	// Git SHA сокращаем до короткой формы, остальные версии оставляем как есть
	if commitSHA.MatchString(c.Site.Version) {
		c.Site.Version = c.Site.Version[:7]
	}
	if c.Site.Version == "" {
		c.Site.Version = "dev"
	}
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	c.Store.URL = strings.TrimRight(c.Store.URL, "/")
}
