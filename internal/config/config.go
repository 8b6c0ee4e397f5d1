package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	authConfig "github.com/iurnickita/sellerdesk/internal/auth/config"
	backendConfig "github.com/iurnickita/sellerdesk/internal/backendclient/config"
	handlerConfig "github.com/iurnickita/sellerdesk/internal/handler/config"
	loggerConfig "github.com/iurnickita/sellerdesk/internal/logger/config"
	mergerConfig "github.com/iurnickita/sellerdesk/internal/merger/config"
	reportConfig "github.com/iurnickita/sellerdesk/internal/report/config"
	serviceConfig "github.com/iurnickita/sellerdesk/internal/service/config"
	storeConfig "github.com/iurnickita/sellerdesk/internal/store/config"
)

const (
	envPrefix  = "SELLERDESK"
	envCfgFile = "SELLERDESK_CONFIG"
)

var ErrBackendURLRequired = errors.New("backend.base_url is required")

type Config struct {
	Handler handlerConfig.Config `mapstructure:"handler"`
	Service serviceConfig.Config `mapstructure:"service"`
	Store   storeConfig.Config   `mapstructure:"store"`
	Logger  loggerConfig.Config  `mapstructure:"logger"`
	Auth    authConfig.Config    `mapstructure:"auth"`
	Backend backendConfig.Config `mapstructure:"backend"`
	Merger  mergerConfig.Config  `mapstructure:"merger"`
	Report  reportConfig.Config  `mapstructure:"report"`
}

// GetConfig собирает конфигурацию: значения по умолчанию, файл из
// SELLERDESK_CONFIG, переменные окружения SELLERDESK_<SECTION>_<KEY>.
func GetConfig() (Config, error) {
	v := viper.New()
	setDefaults(v)

	if file := os.Getenv(envCfgFile); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Backend.BaseURL == "" {
		return Config{}, ErrBackendURLRequired
	}
	return cfg, nil
}

// Каждый ключ должен иметь значение по умолчанию, иначе AutomaticEnv его не увидит
func setDefaults(v *viper.Viper) {
	merger := mergerConfig.Default()
	report := reportConfig.Default()

	v.SetDefault("handler.server_addr", ":8080")
	v.SetDefault("handler.read_timeout", 15*time.Second)
	v.SetDefault("handler.write_timeout", 2*time.Minute)
	v.SetDefault("handler.shutdown_timeout", 10*time.Second)

	v.SetDefault("service.default_page_size", 20)
	v.SetDefault("service.artifact_ttl", 15*time.Minute)
	v.SetDefault("service.reports_on_advance", true)
	v.SetDefault("service.session_idle", 12*time.Hour)
	v.SetDefault("service.include_unconfirmed", false)

	v.SetDefault("store.db_dsn", "")

	v.SetDefault("logger.log_level", "info")

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("backend.base_url", "")
	v.SetDefault("backend.document_base_url", "")
	v.SetDefault("backend.token", "")
	v.SetDefault("backend.timeout", 30*time.Second)
	v.SetDefault("backend.breaker_failures", 5)
	v.SetDefault("backend.breaker_timeout", 30*time.Second)

	v.SetDefault("merger.concurrency", merger.Concurrency)
	v.SetDefault("merger.fetch_timeout", merger.FetchTimeout)
	v.SetDefault("merger.fingerprint_prefix", merger.FingerprintPrefix)
	v.SetDefault("merger.label_width", merger.LabelWidth)
	v.SetDefault("merger.label_height", merger.LabelHeight)

	v.SetDefault("report.rows_per_page", report.RowsPerPage)
	v.SetDefault("report.font_path", report.FontPath)
	v.SetDefault("report.locale", report.Locale)
	v.SetDefault("report.currency", report.Currency)
}
