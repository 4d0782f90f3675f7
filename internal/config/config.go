package config

import "github.com/spf13/viper"

// Config carries process-wide settings, loaded from environment variables
// with development defaults. It is constructed once in main and passed by
// reference to everything that needs it.
type Config struct {
	AppPort string

	MongoURI string
	MongoDB  string

	JWTSecret string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	RabbitMQURL string

	UploadDir string

	// Origin of the SPA allowed to send credentialed requests.
	CORSOrigin string

	// Production switches session cookies to Secure + SameSite=None for the
	// cross-site SPA; development keeps Lax so plain-http localhost works.
	Production bool
}

// Load reads configuration from the environment.
func Load() *Config {
	viper.SetDefault("APP_PORT", ":8080")
	viper.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	viper.SetDefault("MONGO_DB", "relm")
	viper.SetDefault("JWT_SECRET", "dev-secret-change-me")
	viper.SetDefault("SMTP_PORT", 465)
	viper.SetDefault("UPLOAD_DIR", "./public/images/uploads")
	viper.SetDefault("CORS_ORIGIN", "http://localhost:5173")
	viper.SetDefault("APP_ENV", "development")
	viper.AutomaticEnv()

	return &Config{
		AppPort:      viper.GetString("APP_PORT"),
		MongoURI:     viper.GetString("MONGO_URI"),
		MongoDB:      viper.GetString("MONGO_DB"),
		JWTSecret:    viper.GetString("JWT_SECRET"),
		SMTPHost:     viper.GetString("SMTP_HOST"),
		SMTPPort:     viper.GetInt("SMTP_PORT"),
		SMTPUsername: viper.GetString("SMTP_USERNAME"),
		SMTPPassword: viper.GetString("SMTP_PASSWORD"),
		SMTPFrom:     viper.GetString("SMTP_FROM"),
		RabbitMQURL:  viper.GetString("RABBITMQ_URL"),
		UploadDir:    viper.GetString("UPLOAD_DIR"),
		CORSOrigin:   viper.GetString("CORS_ORIGIN"),
		Production:   viper.GetString("APP_ENV") == "production",
	}
}
