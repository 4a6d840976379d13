package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

// ErrMissingEnv is returned when a required environment variable is unset.
// A variable that is set to the empty string is accepted.
var ErrMissingEnv = errors.New("required environment variable is not set")

const (
	defaultRefreshPeriod = 10 * time.Minute
	defaultNotifyBefore  = 5 * time.Minute
	defaultDatabasePath  = "./data/caldav-daemon.db"
)

// Config holds the connection parameters for a CalDAV server.
type Config struct {
	Username string
	Password string
	Host     string
	BaseURL  string
	Timezone *time.Location // used for floating DATE-TIME values
}

// DaemonConfig extends Config with notification daemon settings.
type DaemonConfig struct {
	*Config
	RefreshPeriod  time.Duration
	NotifyBefore   time.Duration
	ServerOffset   time.Duration
	TelegramToken  string
	TelegramChatID int64
	DatabasePath   string
}

func Load() (*Config, error) {
	username, err := required("CALDAV_USERNAME")
	if err != nil {
		return nil, err
	}
	password, err := required("CALDAV_PASSWORD")
	if err != nil {
		return nil, err
	}
	host, err := required("CALDAV_URL")
	if err != nil {
		return nil, err
	}

	tz := time.Local
	if name := os.Getenv("CALDAV_TIMEZONE"); name != "" {
		tz, err = time.LoadLocation(name)
		if err != nil {
			return nil, fmt.Errorf("invalid CALDAV_TIMEZONE: %w", err)
		}
	}

	return &Config{
		Username: username,
		Password: password,
		Host:     host,
		BaseURL:  fmt.Sprintf("https://%s/%s/", host, username),
		Timezone: tz,
	}, nil
}

func LoadDaemon() (*DaemonConfig, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	var chatID int64
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token != "" {
		chatID, err = strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_CHAT_ID is required and must be a number")
		}
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = defaultDatabasePath
	}

	return &DaemonConfig{
		Config:         cfg,
		RefreshPeriod:  minutes("CALDAV_REFRESH_PERIOD_MINUTES", defaultRefreshPeriod),
		NotifyBefore:   minutes("CALDAV_NOTIFY_BEFORE_MINUTES", defaultNotifyBefore),
		ServerOffset:   hours("CALDAV_SERVER_OFFSET_HOURS"),
		TelegramToken:  token,
		TelegramChatID: chatID,
		DatabasePath:   dbPath,
	}, nil
}

func required(name string) (string, error) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("%s is required: %w", name, ErrMissingEnv)
	}
	return v, nil
}

func minutes(name string, def time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("Invalid %s=%q, using %s", name, v, def)
		return def
	}
	return time.Duration(n) * time.Minute
}

func hours(name string) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Invalid %s=%q, ignoring", name, v)
		return 0
	}
	return time.Duration(n) * time.Hour
}
