package config

import (
	"os"
	"path"
	"strings"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// DBConfig Database configuration
type DBConfig struct {
	Type     string `yaml:"type"` // postgres or sqlite
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Passwd   string `yaml:"passwd"`
	MaxConn  int    `yaml:"max_conn"`
	IdleConn int    `yaml:"idle_conn"`
	Debug    bool   `yaml:"debug"`
}

// SysConfig System configuration
type SysConfig struct {
	Appid    string `yaml:"appid"`
	Location string `yaml:"location"`
	Workdir  string `yaml:"workdir"`
	Debug    bool   `yaml:"debug"`
}

// WebConfig Web server configuration
type WebConfig struct {
	Host          string   `yaml:"host"`
	Port          int      `yaml:"port"`
	Secret        string   `yaml:"secret"`         // JWT signing key
	SessionSecret string   `yaml:"session_secret"` // storefront cookie key
	AdminPassword string   `yaml:"admin_password"` // initial password of the seeded admin account
	AllowOrigins  []string `yaml:"allow_origins"`
}

// LogConfig Logger configuration
type LogConfig struct {
	Mode       string `yaml:"mode"`
	FileEnable bool   `yaml:"file_enable"`
	Filename   string `yaml:"filename"`
}

// PaytrConfig PayTR iFrame API credentials and options
type PaytrConfig struct {
	MerchantID     string   `yaml:"merchant_id"`
	MerchantKey    string   `yaml:"merchant_key"`
	MerchantSalt   string   `yaml:"merchant_salt"`
	Endpoint       string   `yaml:"endpoint"`
	IframeURL      string   `yaml:"iframe_url"`
	OkURL          string   `yaml:"ok_url"`
	FailURL        string   `yaml:"fail_url"`
	TestMode       bool     `yaml:"test_mode"`
	Debug          bool     `yaml:"debug"`
	NoInstallment  bool     `yaml:"no_installment"`
	MaxInstallment int      `yaml:"max_installment"`
	Currency       string   `yaml:"currency"`
	TimeoutLimit   int      `yaml:"timeout_limit"` // minutes
	AllowedCIDRs   []string `yaml:"allowed_cidrs"`
}

// Enabled reports whether the merchant credentials are present
func (c PaytrConfig) Enabled() bool {
	return c.MerchantID != "" && c.MerchantKey != "" && c.MerchantSalt != ""
}

// SmtpConfig outgoing mail server for shop notifications
type SmtpConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	Workers  int    `yaml:"workers"`
}

// SftpConfig remote target for backup archives
type SftpConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Dir      string `yaml:"dir"`
	HostKey  string `yaml:"host_key"` // authorized_keys format, empty skips verification
}

// BackupConfig scheduled backup options
type BackupConfig struct {
	Schedule string     `yaml:"schedule"` // cron spec, empty disables
	Keep     int        `yaml:"keep"`
	Sftp     SftpConfig `yaml:"sftp"`
}

type AppConfig struct {
	System   SysConfig    `yaml:"system"`
	Web      WebConfig    `yaml:"web"`
	Database DBConfig     `yaml:"database"`
	Logger   LogConfig    `yaml:"logger"`
	Paytr    PaytrConfig  `yaml:"paytr"`
	Smtp     SmtpConfig   `yaml:"smtp"`
	Backup   BackupConfig `yaml:"backup"`
}

func (c *AppConfig) GetLogDir() string {
	return path.Join(c.System.Workdir, "logs")
}

func (c *AppConfig) GetDataDir() string {
	return path.Join(c.System.Workdir, "data")
}

func (c *AppConfig) GetBackupDir() string {
	return path.Join(c.System.Workdir, "backup")
}

func (c *AppConfig) GetCartDbFile() string {
	return path.Join(c.GetDataDir(), "carts.db")
}

func (c *AppConfig) InitDirs() {
	_ = os.MkdirAll(c.GetLogDir(), 0o755)
	_ = os.MkdirAll(c.GetDataDir(), 0o755)
	_ = os.MkdirAll(c.GetBackupDir(), 0o755)
}

// DefaultAppConfig returns the built-in configuration
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		System: SysConfig{
			Appid:    "Storefront",
			Location: "Europe/Istanbul",
			Workdir:  "/var/storefront",
			Debug:    false,
		},
		Web: WebConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DBConfig{
			Type:     "postgres",
			Host:     "127.0.0.1",
			Port:     5432,
			Name:     "storefront",
			User:     "postgres",
			MaxConn:  100,
			IdleConn: 10,
		},
		Logger: LogConfig{
			Mode:       "development",
			FileEnable: false,
			Filename:   "/var/storefront/logs/storefront.log",
		},
		Paytr: PaytrConfig{
			Endpoint:       "https://www.paytr.com/odeme/api/get-token",
			IframeURL:      "https://www.paytr.com/odeme/guvenli/",
			Currency:       "TL",
			MaxInstallment: 0,
			TimeoutLimit:   30,
		},
		Smtp: SmtpConfig{
			Port:    587,
			Workers: 4,
		},
		Backup: BackupConfig{
			Schedule: "@daily",
			Keep:     14,
		},
	}
}

// LoadConfig reads the YAML file (when present) over the defaults and then
// applies environment overrides.
func LoadConfig(cfile string) *AppConfig {
	cfg := DefaultAppConfig()
	if cfile != "" {
		data, err := os.ReadFile(cfile)
		if err != nil && !os.IsNotExist(err) {
			panic(err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				panic(err)
			}
		}
	}
	applyEnv(cfg)
	return cfg
}

func applyEnv(cfg *AppConfig) {
	setEnvValue("STOREFRONT_WORKDIR", &cfg.System.Workdir)
	setEnvValue("STOREFRONT_LOCATION", &cfg.System.Location)
	setEnvBoolValue("STOREFRONT_DEBUG", &cfg.System.Debug)

	setEnvValue("STOREFRONT_WEB_HOST", &cfg.Web.Host)
	setEnvIntValue("STOREFRONT_WEB_PORT", &cfg.Web.Port)
	setEnvValue("STOREFRONT_WEB_SECRET", &cfg.Web.Secret)
	setEnvValue("STOREFRONT_SESSION_SECRET", &cfg.Web.SessionSecret)
	setEnvValue("STOREFRONT_ADMIN_PASSWORD", &cfg.Web.AdminPassword)
	if v := os.Getenv("STOREFRONT_ALLOW_ORIGINS"); v != "" {
		cfg.Web.AllowOrigins = strings.Split(v, ",")
	}

	setEnvValue("DB_TYPE", &cfg.Database.Type)
	setEnvValue("DB_HOST", &cfg.Database.Host)
	setEnvIntValue("DB_PORT", &cfg.Database.Port)
	setEnvValue("DB_NAME", &cfg.Database.Name)
	setEnvValue("DB_USER", &cfg.Database.User)
	setEnvValue("DB_PASSWORD", &cfg.Database.Passwd)
	setEnvBoolValue("DB_DEBUG", &cfg.Database.Debug)

	setEnvValue("STOREFRONT_LOG_MODE", &cfg.Logger.Mode)
	setEnvBoolValue("STOREFRONT_LOG_FILE_ENABLE", &cfg.Logger.FileEnable)

	setEnvValue("PAYTR_MERCHANT_ID", &cfg.Paytr.MerchantID)
	setEnvValue("PAYTR_MERCHANT_KEY", &cfg.Paytr.MerchantKey)
	setEnvValue("PAYTR_MERCHANT_SALT", &cfg.Paytr.MerchantSalt)
	setEnvValue("PAYTR_OK_URL", &cfg.Paytr.OkURL)
	setEnvValue("PAYTR_FAIL_URL", &cfg.Paytr.FailURL)
	setEnvBoolValue("PAYTR_TEST_MODE", &cfg.Paytr.TestMode)

	setEnvValue("SMTP_HOST", &cfg.Smtp.Host)
	setEnvIntValue("SMTP_PORT", &cfg.Smtp.Port)
	setEnvValue("SMTP_USERNAME", &cfg.Smtp.Username)
	setEnvValue("SMTP_PASSWORD", &cfg.Smtp.Password)
	setEnvValue("SMTP_FROM", &cfg.Smtp.From)
}

func setEnvValue(name string, val *string) {
	var evalue = os.Getenv(name)
	if evalue != "" {
		*val = evalue
	}
}

func setEnvBoolValue(name string, val *bool) {
	var evalue = os.Getenv(name)
	if evalue != "" {
		*val = cast.ToBool(evalue)
	}
}

func setEnvIntValue(name string, val *int) {
	var evalue = os.Getenv(name)
	if evalue == "" {
		return
	}
	if p, err := cast.ToIntE(evalue); err == nil {
		*val = p
	}
}
