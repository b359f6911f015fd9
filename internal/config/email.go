package config

import (
	"os"
	"sync"
)

type EmailConfig struct {
	APIURL string
	APIKey string
	From   string
}

var (
	emailConfig *EmailConfig
	emailOnce   sync.Once
)

func LoadEmailConfig() *EmailConfig {
	emailOnce.Do(func() {
		emailConfig = &EmailConfig{
			APIURL: getEnv("EMAIL_API_URL", "https://api.resend.com/emails"),
			APIKey: os.Getenv("EMAIL_API_KEY"),
			From:   getEnv("EMAIL_FROM", "Intellego <no-reply@intellego.app>"),
		}
	})
	return emailConfig
}
