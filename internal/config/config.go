package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix         = "PMS"
	DefaultConfigFile = "config.yml"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Repository RepositoryConfig `mapstructure:"repository"`
	API        APIConfig        `mapstructure:"api"`
	Dashboard  DashboardConfig  `mapstructure:"dashboard"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// RateLimit - запросов в минуту с одного IP, 0 отключает ограничение
	RateLimit   int      `mapstructure:"rate_limit"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	MaxConnections int           `mapstructure:"max_connections"`
	MinConnections int           `mapstructure:"min_connections"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	SQLitePath     string        `mapstructure:"sqlite_path"`
}

type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

type RepositoryConfig struct {
	Type     string `mapstructure:"type"` // "inmemory", "postgres" или "sqlite"
	SeedFile string `mapstructure:"seed_file"`
}

// APIConfig - откуда дашборд берёт график. Пустой BaseURL означает собственный /api/schedule.
type APIConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	FetchRetries  int           `mapstructure:"fetch_retries"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

type DashboardConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	Timezone        string        `mapstructure:"timezone"`
}

// NewFlagSet - флаги командной строки, перекрывающие файл и окружение
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", DefaultConfigFile, "путь к файлу конфигурации")
	fs.String("port", "", "порт HTTP-сервера")
	fs.String("repository", "", "тип хранилища: inmemory, postgres, sqlite")
	fs.Bool("mcp", false, "обслуживать MCP по stdio вместо HTTP")
	return fs
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.rate_limit", 300)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("logging.development", false)

	v.SetDefault("repository.type", "inmemory")
	v.SetDefault("repository.seed_file", "")

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.min_connections", 2)
	v.SetDefault("database.idle_timeout", 5*time.Minute)
	v.SetDefault("database.sqlite_path", "data/schedule.db")

	v.SetDefault("api.base_url", "")
	v.SetDefault("api.timeout", 10*time.Second)
	v.SetDefault("api.fetch_retries", 2)
	v.SetDefault("api.retry_interval", 200*time.Millisecond)

	v.SetDefault("dashboard.refresh_interval", 5*time.Minute)
	v.SetDefault("dashboard.timezone", "Asia/Bangkok")
}

// Load собирает конфигурацию: значения по умолчанию, файл, переменные PMS_*, флаги.
// Отсутствие файла по умолчанию не ошибка, явно указанный файл обязан существовать.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	path := DefaultConfigFile
	explicit := false
	if fs != nil {
		if flag := fs.Lookup("config"); flag != nil {
			path = flag.Value.String()
			explicit = flag.Changed
		}
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !(errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("чтение %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		bindFlag(v, fs, "server.port", "port")
		bindFlag(v, fs, "repository.type", "repository")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("разбор конфигурации: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func bindFlag(v *viper.Viper, fs *pflag.FlagSet, key, name string) {
	if flag := fs.Lookup(name); flag != nil && flag.Changed {
		_ = v.BindPFlag(key, flag)
	}
}

func (c *Config) Validate() error {
	switch c.Repository.Type {
	case "inmemory", "sqlite":
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("database.url обязателен для хранилища postgres")
		}
	default:
		return fmt.Errorf("неизвестный тип хранилища %q", c.Repository.Type)
	}

	if c.Server.Port == "" {
		return errors.New("server.port не задан")
	}
	if c.API.FetchRetries < 0 {
		return errors.New("api.fetch_retries не может быть отрицательным")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

func (c *Config) GetServerAddr() string {
	return net.JoinHostPort(c.Server.Host, c.Server.Port)
}

// APIBaseURL - адрес API графика, по умолчанию этот же процесс
func (c *Config) APIBaseURL() string {
	if c.API.BaseURL != "" {
		return c.API.BaseURL
	}
	host := c.Server.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, c.Server.Port)
}

// Location - часовой пояс, в котором считается "сегодня"
func (c *Config) Location() (*time.Location, error) {
	if c.Dashboard.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Dashboard.Timezone)
	if err != nil {
		return nil, fmt.Errorf("часовой пояс %q: %w", c.Dashboard.Timezone, err)
	}
	return loc, nil
}
