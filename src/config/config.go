package config

import (
	"fmt"
	"os"
	"time"
)

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_TIMEZONE := os.Getenv("DATABASE_TIMEZONE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

const TIME_PARSE_FORMAT = "2006-01-02 15:04:05 -07:00"

// Session tokens live for one hour in both the signed token and the session
// cache. Ticket status cache entries live for a day.
const (
	SESSION_TTL      = 3600 * time.Second
	TICKET_CACHE_TTL = 86400 * time.Second
)

func ApiEnv() string {
	return os.Getenv("API_ENV")
}

func ApiHost() string {
	return os.Getenv("API_HOST")
}

func AppHost() string {
	return os.Getenv("APP_HOST")
}

func OauthClientID() string {
	return os.Getenv("OAUTH_CLIENT_ID")
}

func OauthClientSecret() string {
	return os.Getenv("OAUTH_CLIENT_SECRET")
}

func SmtpFrom() string {
	return os.Getenv("SMTP_FROM")
}

func FCMEnabled() bool {
	return os.Getenv("SECRETS_DIR") != ""
}
