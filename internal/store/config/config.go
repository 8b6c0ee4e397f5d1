package config

type Config struct {
	// Строка подключения к PostgreSQL; пусто - журнал в памяти
	DBDsn string `mapstructure:"db_dsn"`
}
