package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	MinIO      MinIOConfig      `mapstructure:"minio"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Feishu     FeishuConfig     `mapstructure:"feishu"`
	Log        LogConfig        `mapstructure:"log"`
	Compliance ComplianceConfig `mapstructure:"compliance"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type FeishuConfig struct {
	AppID             string `mapstructure:"app_id"`
	AppSecret         string `mapstructure:"app_secret"`
	VerificationToken string `mapstructure:"verification_token"`
	// 金封样确认书对应的审批定义code，只处理该定义的回调
	GoldSealApprovalCode string `mapstructure:"gold_seal_approval_code"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ComplianceConfig 合规引擎参数
type ComplianceConfig struct {
	DefaultTestExpiryMonths int           `mapstructure:"default_test_expiry_months"`
	TestTurnaroundDays      int           `mapstructure:"test_turnaround_days"`
	AtRiskWindow            time.Duration `mapstructure:"at_risk_window"`
	ReconcileCron           string        `mapstructure:"reconcile_cron"`
	RiskCacheTTL            time.Duration `mapstructure:"risk_cache_ttl"`
}

// WithDefaults 未配置的项使用默认值
func (c ComplianceConfig) WithDefaults() ComplianceConfig {
	if c.DefaultTestExpiryMonths <= 0 {
		c.DefaultTestExpiryMonths = 6
	}
	if c.TestTurnaroundDays <= 0 {
		c.TestTurnaroundDays = 14
	}
	if c.AtRiskWindow <= 0 {
		c.AtRiskWindow = 48 * time.Hour
	}
	if c.ReconcileCron == "" {
		c.ReconcileCron = "@daily"
	}
	if c.RiskCacheTTL <= 0 {
		c.RiskCacheTTL = 10 * time.Minute
	}
	return c
}

func Load() (*Config, error) {
	v := viper.New()

	// 设置配置文件
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	// 环境变量覆盖
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 没有配置文件时只用默认值和环境变量
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read qa config: %w", err)
		}
	}
	if err := bindEnvVariables(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode qa config: %w", err)
	}
	cfg.Compliance = cfg.Compliance.WithDefaults()

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("minio.bucket", "qa-lab-reports")

	v.SetDefault("jwt.issuer", "sgs-qa")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("compliance.default_test_expiry_months", 6)
	v.SetDefault("compliance.test_turnaround_days", 14)
	v.SetDefault("compliance.at_risk_window", 48*time.Hour)
	v.SetDefault("compliance.reconcile_cron", "@daily")
	v.SetDefault("compliance.risk_cache_ttl", 10*time.Minute)
}

// envBindings 配置键与环境变量的对应关系
var envBindings = map[string]string{
	"server.port": "SERVER_PORT",
	"server.mode": "SERVER_MODE",

	"database.host":         "DB_HOST",
	"database.port":         "DB_PORT",
	"database.user":         "DB_USER",
	"database.password":     "DB_PASSWORD",
	"database.dbname":       "DB_NAME",
	"database.auto_migrate": "DB_AUTO_MIGRATE",

	"redis.host":     "REDIS_HOST",
	"redis.port":     "REDIS_PORT",
	"redis.password": "REDIS_PASSWORD",

	"minio.endpoint":   "MINIO_ENDPOINT",
	"minio.access_key": "MINIO_ACCESS_KEY",
	"minio.secret_key": "MINIO_SECRET_KEY",
	"minio.bucket":     "MINIO_BUCKET",

	"jwt.secret": "JWT_SECRET",

	"feishu.app_id":                  "FEISHU_APP_ID",
	"feishu.app_secret":              "FEISHU_APP_SECRET",
	"feishu.verification_token":      "FEISHU_VERIFICATION_TOKEN",
	"feishu.gold_seal_approval_code": "FEISHU_GOLD_SEAL_APPROVAL_CODE",

	"log.level":  "LOG_LEVEL",
	"log.format": "LOG_FORMAT",

	"compliance.default_test_expiry_months": "QA_TEST_EXPIRY_MONTHS",
	"compliance.test_turnaround_days":       "QA_TEST_TURNAROUND_DAYS",
	"compliance.reconcile_cron":             "QA_RECONCILE_CRON",
}

func bindEnvVariables(v *viper.Viper) error {
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind env %s: %w", env, err)
		}
	}
	return nil
}

// DSN postgres连接串
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
