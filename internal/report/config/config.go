package config

type Config struct {
	// Строк заказов на страницу листинга
	RowsPerPage int `mapstructure:"rows_per_page"`
	// TTF со шрифтом с кириллицей; пусто - встроенный Helvetica
	FontPath string `mapstructure:"font_path"`
	Locale   string `mapstructure:"locale"`
	// ISO 4217, например RUB
	Currency string `mapstructure:"currency"`
}

func Default() Config {
	return Config{
		RowsPerPage: 25,
		Locale:      "ru",
		Currency:    "RUB",
	}
}
