package config

import "time"

type Config struct {
	// Адрес REST API дашборда
	BaseURL string `mapstructure:"base_url"`
	// Хост для относительных ссылок на документы; пусто - BaseURL
	DocumentBaseURL string        `mapstructure:"document_base_url"`
	Token           string        `mapstructure:"token"`
	Timeout         time.Duration `mapstructure:"timeout"`
	// Подряд идущих отказов до размыкания
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}
