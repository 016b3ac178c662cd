package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/juju/errors"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("projmatch.config")

type Config struct {
	Env        string
	ServerPort string
	BaseURL    string
	LogLevel   string

	DatabaseDSN string

	AccessSecret    string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	OrgEmailDomain         string
	DefaultSupervisorQuota int

	AIAPIKey            string
	AIAPIBase           string
	AIModel             string
	AITimeout           time.Duration
	AIRequestsPerMinute int

	KafkaBroker   string
	KafkaTopic    string
	KafkaUsername string
	KafkaPassword string
	KafkaGroupID  string

	CloudinaryUrl string

	SMTPAddr         string
	GmailUser        string
	GmailAppPassword string
	MailFrom         string
	MailFromName     string
}

func LoadConfig() Config {
	env := os.Getenv("ENV")
	if env != "prod" {
		if err := godotenv.Overload(); err != nil {
			logger.Warningf("env file not loaded: %v", err)
		}
	}

	cfg := Config{
		Env:        env,
		ServerPort: getString("SERVER_PORT", ":8000"),
		BaseURL:    getString("BASE_URL", "*"),
		LogLevel:   getString("LOG_LEVEL", "<root>=INFO"),

		DatabaseDSN: os.Getenv("DATABASE_DSN"),

		AccessSecret:    os.Getenv("ACCESS_SECRET"),
		AccessTokenTTL:  getDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: getDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),

		OrgEmailDomain:         strings.ToLower(getString("ORG_EMAIL_DOMAIN", "uts.edu.au")),
		DefaultSupervisorQuota: getInt("DEFAULT_SUPERVISOR_QUOTA", 3),

		AIAPIKey:            os.Getenv("DEEPSEEK_API_KEY"),
		AIAPIBase:           getString("DEEPSEEK_API_BASE", "https://api.deepseek.com/v1"),
		AIModel:             getString("DEEPSEEK_MODEL", "deepseek-chat"),
		AITimeout:           getDuration("AI_TIMEOUT", 30*time.Second),
		AIRequestsPerMinute: getInt("AI_REQUESTS_PER_MINUTE", 60),

		KafkaBroker:   os.Getenv("KAFKA_BROKER"),
		KafkaTopic:    os.Getenv("KAFKA_TOPIC"),
		KafkaUsername: os.Getenv("KAFKA_USERNAME"),
		KafkaPassword: os.Getenv("KAFKA_PASSWORD"),
		KafkaGroupID:  getString("KAFKA_GROUP_ID", "projmatch-notifier"),

		CloudinaryUrl: os.Getenv("CLOUDINARY_URL"),

		SMTPAddr:         getString("SMTP_ADDR", "smtp.gmail.com:587"),
		GmailUser:        os.Getenv("GMAIL_USER"),
		GmailAppPassword: os.Getenv("GMAIL_APP_PASSWORD"),
		MailFrom:         os.Getenv("MAIL_FROM"),
		MailFromName:     getString("MAIL_FROM_NAME", "Project Match"),
	}

	logger.Debugf("config loaded: port=%s org_domain=%s ai_configured=%t kafka=%t cloudinary=%t",
		cfg.ServerPort, cfg.OrgEmailDomain, cfg.AIAPIKey != "", cfg.KafkaBroker != "", cfg.CloudinaryUrl != "")
	return cfg
}

// ValidateServer reports the settings the API server cannot start without.
func (c Config) ValidateServer() error {
	var missing []string
	if c.DatabaseDSN == "" {
		missing = append(missing, "DATABASE_DSN")
	}
	if c.AccessSecret == "" {
		missing = append(missing, "ACCESS_SECRET")
	}
	if len(missing) > 0 {
		return errors.NewNotValid(nil, "config: missing "+strings.Join(missing, ", "))
	}
	if c.DefaultSupervisorQuota < 0 {
		return errors.NewNotValid(nil, "config: DEFAULT_SUPERVISOR_QUOTA must not be negative")
	}
	return nil
}

// ValidateNotifier reports the settings the notifier cannot start without.
func (c Config) ValidateNotifier() error {
	var missing []string
	if c.KafkaBroker == "" {
		missing = append(missing, "KAFKA_BROKER")
	}
	if c.KafkaTopic == "" {
		missing = append(missing, "KAFKA_TOPIC")
	}
	if c.GmailUser == "" && c.MailFrom == "" {
		missing = append(missing, "GMAIL_USER or MAIL_FROM")
	}
	if len(missing) > 0 {
		return errors.NewNotValid(nil, "config: missing "+strings.Join(missing, ", "))
	}
	return nil
}

func getString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		logger.Warningf("%s=%q is not a positive duration, using %s", key, v, fallback)
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warningf("%s=%q is not an integer, using %d", key, v, fallback)
		return fallback
	}
	return n
}
