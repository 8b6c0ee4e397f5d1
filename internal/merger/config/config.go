package config

import "time"

type Config struct {
	// Параллельных загрузок фрагментов
	Concurrency  int           `mapstructure:"concurrency"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	// Сколько первых байт фрагмента участвует в отпечатке; 0 - весь фрагмент
	FingerprintPrefix int `mapstructure:"fingerprint_prefix"`
	// Размер страницы для этикеток-картинок, мм
	LabelWidth  float64 `mapstructure:"label_width"`
	LabelHeight float64 `mapstructure:"label_height"`
}

func Default() Config {
	return Config{
		Concurrency:  4,
		FetchTimeout: 20 * time.Second,
		LabelWidth:   58,
		LabelHeight:  40,
	}
}
