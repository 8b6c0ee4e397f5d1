package config

import "time"

type Config struct {
	DefaultPageSize int `mapstructure:"default_page_size"`
	// Сколько хранится сформированный документ до скачивания
	ArtifactTTL time.Duration `mapstructure:"artifact_ttl"`
	// Формировать документы сразу после перевода в статус отгрузки
	ReportsOnAdvance bool          `mapstructure:"reports_on_advance"`
	SessionIdle      time.Duration `mapstructure:"session_idle"`
	// Запрашивать у Wildberries неподтверждённые сборочные задания
	IncludeUnconfirmed bool `mapstructure:"include_unconfirmed"`
}
