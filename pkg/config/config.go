package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	OpsPort   int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	Log      LogConfig
	Sync     SyncConfig
	Roles    RoleConfig
	Users    UserDefaultsConfig
	Naming   NamingConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type LogConfig struct {
	Level  string
	Format string
}

// SyncConfig governs a reconciliation run.
type SyncConfig struct {
	Enabled             bool
	Provider            string
	Target              string
	ProcessByDepartment bool
	SubDays             int
	ErrorThreshold      int
	GracePeriod         time.Duration
	RecoverGrades       bool
	ReplayWorkers       int
	ReplayRetries       int
}

// RoleConfig maps roster roles onto target-system role shortnames.
type RoleConfig struct {
	Student          string
	PrimaryTeacher   string
	SecondaryTeacher string
}

// UserDefaultsConfig supplies field defaults for lazily created users.
type UserDefaultsConfig struct {
	EmailSuffix string
	Confirmed   bool
	City        string
	Country     string
	AuthMethod  string
}

// NamingConfig holds course naming templates. Recognized tokens:
// {year} {name} {department} {session} {course_number} {fullname}.
type NamingConfig struct {
	ShortnameTemplate string
	FullnameTemplate  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.OpsPort = v.GetInt("OPS_PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Sync = SyncConfig{
		Enabled:             v.GetBool("SYNC_ENABLED"),
		Provider:            v.GetString("SYNC_PROVIDER"),
		Target:              v.GetString("SYNC_TARGET"),
		ProcessByDepartment: v.GetBool("SYNC_PROCESS_BY_DEPARTMENT"),
		SubDays:             v.GetInt("SYNC_SUB_DAYS"),
		ErrorThreshold:      v.GetInt("SYNC_ERROR_THRESHOLD"),
		GracePeriod:         parseDuration(v.GetString("SYNC_GRACE_PERIOD"), 2*time.Hour),
		RecoverGrades:       v.GetBool("SYNC_RECOVER_GRADES"),
		ReplayWorkers:       v.GetInt("SYNC_REPLAY_WORKERS"),
		ReplayRetries:       v.GetInt("SYNC_REPLAY_RETRIES"),
	}

	cfg.Roles = RoleConfig{
		Student:          v.GetString("ROLE_STUDENT"),
		PrimaryTeacher:   v.GetString("ROLE_PRIMARY_TEACHER"),
		SecondaryTeacher: v.GetString("ROLE_SECONDARY_TEACHER"),
	}

	cfg.Users = UserDefaultsConfig{
		EmailSuffix: v.GetString("USER_EMAIL_SUFFIX"),
		Confirmed:   v.GetBool("USER_CONFIRMED"),
		City:        v.GetString("USER_CITY"),
		Country:     v.GetString("USER_COUNTRY"),
		AuthMethod:  v.GetString("USER_AUTH_METHOD"),
	}

	cfg.Naming = NamingConfig{
		ShortnameTemplate: v.GetString("COURSE_SHORTNAME_TEMPLATE"),
		FullnameTemplate:  v.GetString("COURSE_FULLNAME_TEMPLATE"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("OPS_PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "ues_sync")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SYNC_ENABLED", true)
	v.SetDefault("SYNC_PROVIDER", "")
	v.SetDefault("SYNC_TARGET", "")
	v.SetDefault("SYNC_PROCESS_BY_DEPARTMENT", false)
	v.SetDefault("SYNC_SUB_DAYS", 60)
	v.SetDefault("SYNC_ERROR_THRESHOLD", 100)
	v.SetDefault("SYNC_GRACE_PERIOD", "2h")
	v.SetDefault("SYNC_RECOVER_GRADES", true)
	v.SetDefault("SYNC_REPLAY_WORKERS", 1)
	v.SetDefault("SYNC_REPLAY_RETRIES", 1)

	v.SetDefault("ROLE_STUDENT", "student")
	v.SetDefault("ROLE_PRIMARY_TEACHER", "editingteacher")
	v.SetDefault("ROLE_SECONDARY_TEACHER", "teacher")

	v.SetDefault("USER_EMAIL_SUFFIX", "example.edu")
	v.SetDefault("USER_CONFIRMED", true)
	v.SetDefault("USER_CITY", "")
	v.SetDefault("USER_COUNTRY", "US")
	v.SetDefault("USER_AUTH_METHOD", "manual")

	v.SetDefault("COURSE_SHORTNAME_TEMPLATE", "{year} {name} {department} {course_number} {session}")
	v.SetDefault("COURSE_FULLNAME_TEMPLATE", "{fullname}")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}
