package config

type Config struct {
	// Ключ подписи JWT; пусто - авторизация отключена
	JWTSecret string `mapstructure:"jwt_secret"`
}
