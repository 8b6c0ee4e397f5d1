package config

import "time"

type Config struct {
	ServerAddr   string        `mapstructure:"server_addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// Сколько ждать завершения запросов при остановке
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}
