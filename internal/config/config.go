// Package config loads service settings from an optional config file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ruralpay/txauth/internal/database"
	"github.com/ruralpay/txauth/internal/logging"
	"github.com/ruralpay/txauth/internal/models"
	"github.com/ruralpay/txauth/internal/services"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Server     ServerConfig
	Log        LogConfig
	Limits     LimitsConfig
	Approval   ApprovalConfig
	Privileges PrivilegeConfig
	Features   FeatureConfig
	Scheduler  SchedulerConfig
	Database   database.DBConfig
	Redis      database.RedisConfig
}

type ServerConfig struct {
	Port            string        `validate:"required,numeric"`
	ReadTimeout     time.Duration `validate:"gt=0"`
	WriteTimeout    time.Duration `validate:"gt=0"`
	IdleTimeout     time.Duration `validate:"gt=0"`
	ShutdownTimeout time.Duration `validate:"gt=0"`
	AllowedOrigins  []string
}

type LogConfig struct {
	Level       string
	Environment string `validate:"oneof=production staging development local"`
}

type LimitsConfig struct {
	DailyWithdraw    decimal.Decimal `validate:"gt=0"`
	DailyTransfer    decimal.Decimal `validate:"gt=0"`
	LargeTransaction decimal.Decimal `validate:"gt=0"`
}

// ApprovalConfig holds the lower bound of every tier above Auto.
type ApprovalConfig struct {
	TellerFrom  decimal.Decimal `validate:"gt=0"`
	ManagerFrom decimal.Decimal `validate:"gtfield=TellerFrom"`
	AdminFrom   decimal.Decimal `validate:"gtfield=ManagerFrom"`
}

// PrivilegeConfig holds per-role ceilings. Admins are unbounded.
type PrivilegeConfig struct {
	Customer decimal.Decimal `validate:"gt=0"`
	Teller   decimal.Decimal `validate:"gtefield=Customer"`
	Manager  decimal.Decimal `validate:"gtefield=Teller"`
}

type FeatureConfig struct {
	OverdraftLimit decimal.Decimal `validate:"gte=0"`
	InsuranceFee   decimal.Decimal `validate:"gte=0"`
	PremiumBonus   decimal.Decimal `validate:"gte=0"`
}

type SchedulerConfig struct {
	Interval time.Duration `validate:"gt=0"`
}

var envBindings = map[string]string{
	"server.port":              "PORT",
	"server.allowed_origins":   "ALLOWED_ORIGINS",
	"log.level":                "LOG_LEVEL",
	"log.environment":          "ENV_NAME",
	"limits.daily_withdraw":    "DAILY_WITHDRAW_LIMIT",
	"limits.daily_transfer":    "DAILY_TRANSFER_LIMIT",
	"limits.large_transaction": "LARGE_TRANSACTION_THRESHOLD",
	"approval.teller_from":     "APPROVAL_TELLER_FROM",
	"approval.manager_from":    "APPROVAL_MANAGER_FROM",
	"approval.admin_from":      "APPROVAL_ADMIN_FROM",
	"privileges.customer":      "PRIVILEGE_CUSTOMER",
	"privileges.teller":        "PRIVILEGE_TELLER",
	"privileges.manager":       "PRIVILEGE_MANAGER",
	"fees.insurance":           "INSURANCE_FEE",
	"features.overdraft_limit": "OVERDRAFT_LIMIT",
	"features.premium_bonus":   "PREMIUM_BONUS",
	"scheduler.interval":       "SCHEDULER_INTERVAL",
	"database.enabled":         "DATABASE_ENABLED",
	"database.host":            "DATABASE_HOST",
	"database.port":            "DATABASE_PORT",
	"database.user":            "DATABASE_USER",
	"database.password":        "DATABASE_PASSWORD",
	"database.name":            "DATABASE_NAME",
	"database.ssl_mode":        "DATABASE_SSL_MODE",
	"redis.enabled":            "REDIS_ENABLED",
	"redis.host":               "REDIS_HOST",
	"redis.port":               "REDIS_PORT",
	"redis.password":           "REDIS_PASSWORD",
	"redis.db":                 "REDIS_DB",
	"redis.alert_key":          "REDIS_ALERT_KEY",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.allowed_origins", []string{"https://*", "http://*"})

	v.SetDefault("log.level", "")
	v.SetDefault("log.environment", string(logging.EnvironmentProduction))

	v.SetDefault("limits.daily_withdraw", "20000")
	v.SetDefault("limits.daily_transfer", "50000")
	v.SetDefault("limits.large_transaction", "20000")

	v.SetDefault("approval.teller_from", "1000")
	v.SetDefault("approval.manager_from", "10000")
	v.SetDefault("approval.admin_from", "50000")

	v.SetDefault("privileges.customer", "10000")
	v.SetDefault("privileges.teller", "50000")
	v.SetDefault("privileges.manager", "100000")

	v.SetDefault("fees.insurance", "0.50")
	v.SetDefault("features.overdraft_limit", "500")
	v.SetDefault("features.premium_bonus", "0.10")

	v.SetDefault("scheduler.interval", time.Minute)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.name", "txauth")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.alert_key", services.DefaultAlertKey)
}

// Load reads path (when it exists) and the environment on top of the
// defaults, then validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg, err := build(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func build(v *viper.Viper) (*Config, error) {
	p := decimalParser{v: v}

	cfg := &Config{
		Server: ServerConfig{
			Port:            v.GetString("server.port"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			IdleTimeout:     v.GetDuration("server.idle_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
			AllowedOrigins:  v.GetStringSlice("server.allowed_origins"),
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Environment: v.GetString("log.environment"),
		},
		Limits: LimitsConfig{
			DailyWithdraw:    p.get("limits.daily_withdraw"),
			DailyTransfer:    p.get("limits.daily_transfer"),
			LargeTransaction: p.get("limits.large_transaction"),
		},
		Approval: ApprovalConfig{
			TellerFrom:  p.get("approval.teller_from"),
			ManagerFrom: p.get("approval.manager_from"),
			AdminFrom:   p.get("approval.admin_from"),
		},
		Privileges: PrivilegeConfig{
			Customer: p.get("privileges.customer"),
			Teller:   p.get("privileges.teller"),
			Manager:  p.get("privileges.manager"),
		},
		Features: FeatureConfig{
			OverdraftLimit: p.get("features.overdraft_limit"),
			InsuranceFee:   p.get("fees.insurance"),
			PremiumBonus:   p.get("features.premium_bonus"),
		},
		Scheduler: SchedulerConfig{
			Interval: v.GetDuration("scheduler.interval"),
		},
		Database: database.DBConfig{
			Enabled:         v.GetBool("database.enabled"),
			Host:            v.GetString("database.host"),
			Port:            v.GetString("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			Name:            v.GetString("database.name"),
			SSLMode:         v.GetString("database.ssl_mode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		},
		Redis: database.RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetString("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			AlertKey: v.GetString("redis.alert_key"),
		},
	}

	if err := errors.Join(p.errs...); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

type decimalParser struct {
	v    *viper.Viper
	errs []error
}

func (p *decimalParser) get(key string) decimal.Decimal {
	raw := strings.TrimSpace(p.v.GetString(key))
	d, err := decimal.NewFromString(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not a decimal", key, raw))
	}
	return d
}

func newValidator() *validator.Validate {
	v := validator.New()
	// compare decimals through their float value
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) ApprovalBands() []services.ApprovalBand {
	return []services.ApprovalBand{
		{From: decimal.Zero, Level: models.ApprovalAuto},
		{From: c.Approval.TellerFrom, Level: models.ApprovalTeller},
		{From: c.Approval.ManagerFrom, Level: models.ApprovalManager},
		{From: c.Approval.AdminFrom, Level: models.ApprovalAdmin},
	}
}

// TransactionSettings assembles the pipeline rules. It fails when the
// approval bands do not cover every amount.
func (c *Config) TransactionSettings() (services.TransactionSettings, error) {
	table, err := services.NewApprovalTable(c.ApprovalBands()...)
	if err != nil {
		return services.TransactionSettings{}, fmt.Errorf("approval table: %w", err)
	}
	return services.TransactionSettings{
		Limits: services.Limits{
			DailyWithdraw: c.Limits.DailyWithdraw,
			DailyTransfer: c.Limits.DailyTransfer,
		},
		LargeTransaction: c.Limits.LargeTransaction,
		Approvals:        table,
		Privileges:       services.NewPrivilegePolicy(c.Privileges.Customer, c.Privileges.Teller, c.Privileges.Manager),
	}, nil
}

func (c *Config) FeatureSettings() services.FeatureSettings {
	return services.FeatureSettings{
		OverdraftLimit: c.Features.OverdraftLimit,
		InsuranceFee:   c.Features.InsuranceFee,
		PremiumBonus:   c.Features.PremiumBonus,
	}
}

func (c *Config) Logging() logging.Config {
	return logging.Config{
		Environment: logging.Environment(c.Log.Environment),
		Level:       c.Log.Level,
	}
}
