package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ReadTimeout               time.Duration
		WriteTimeout              time.Duration
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres (default) or memory
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RedisConfig struct {
		Addr     string
		Password string
		DB       int
	}

	SMSConfig struct {
		GatewayURL string
		APIKey     string
		SenderID   string
	}

	ComplianceConfig struct {
		MinComplianceRate     int // below: suspension
		WarningComplianceRate int // below: warning
		SuspensionPeriod      time.Duration
		PaymentGraceDays      int
		DefaultTargetScans    int
		AdminEmail            string
		SweepPolicy           string // house_coverage | target_scans
		SweepInterval         time.Duration
		SweepLockTTL          time.Duration
	}

	Config struct {
		Env              string // DEV (local; default), TEST, QA, PROD
		Build            string
		AppName          string
		Debug            bool
		TestMode         bool
		SecretKey        string
		WorkDir          string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		SendgridApiKey   string
		RollbarToken     string

		Server     ServerConfig
		Database   DatabaseConfig
		Redis      RedisConfig
		SMS        SMSConfig
		Compliance ComplianceConfig
	}
)

// Address returns the database "host:port".
func (dc DatabaseConfig) Address() string {
	return net.JoinHostPort(dc.Host, dc.Port)
}

// NewConfig loads the app configuration from the environment.
// Variables are prefixed by the current ENV, eg. `PROD_SECRETKEY`.
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	workDir := Getwd()
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:             env,
		Build:           v.GetString("build"),
		AppName:         v.GetString("appName"),
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		SecretKey:       v.GetString("secretKey"),
		WorkDir:         workDir,
		FrontendBaseURL: v.GetString("frontendBaseURL"),
		DefaultFromEmail: mail.Address{
			Name:    v.GetString("appName"),
			Address: v.GetString("defaultFromEmail"),
		},
		SendgridApiKey: v.GetString("sendgridApiKey"),
		RollbarToken:   v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			DebugHost:                 v.GetString("server.debugHost"),
			ReadTimeout:               v.GetDuration("server.readTimeout"),
			WriteTimeout:              v.GetDuration("server.writeTimeout"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		SMS: SMSConfig{
			GatewayURL: v.GetString("sms.gatewayURL"),
			APIKey:     v.GetString("sms.apiKey"),
			SenderID:   v.GetString("sms.senderID"),
		},
		Compliance: ComplianceConfig{
			MinComplianceRate:     v.GetInt("compliance.minComplianceRate"),
			WarningComplianceRate: v.GetInt("compliance.warningComplianceRate"),
			SuspensionPeriod:      v.GetDuration("compliance.suspensionPeriod"),
			PaymentGraceDays:      v.GetInt("compliance.paymentGraceDays"),
			DefaultTargetScans:    v.GetInt("compliance.defaultTargetScans"),
			AdminEmail:            v.GetString("compliance.adminEmail"),
			SweepPolicy:           v.GetString("compliance.sweepPolicy"),
			SweepInterval:         v.GetDuration("compliance.sweepInterval"),
			SweepLockTTL:          v.GetDuration("compliance.sweepLockTTL"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "NeighborGuard")
	v.SetDefault("secretKey", "vq8-#zk1)w2n$+ut=kd&p0r4(g!m)#*a7(#xs5^$dnh3eqb")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 5*time.Second)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "neighborguard")
	v.SetDefault("database.user", "neighborguard")
	v.SetDefault("database.password", "neighborguard")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("sms.gatewayURL", "")
	v.SetDefault("sms.apiKey", "")
	v.SetDefault("sms.senderID", "NGUARD")

	v.SetDefault("compliance.minComplianceRate", 70)
	v.SetDefault("compliance.warningComplianceRate", 85)
	v.SetDefault("compliance.suspensionPeriod", 7*24*time.Hour)
	v.SetDefault("compliance.paymentGraceDays", 60)
	v.SetDefault("compliance.defaultTargetScans", 20)
	v.SetDefault("compliance.adminEmail", "admin@neighborguard.com")
	v.SetDefault("compliance.sweepPolicy", "target_scans")
	v.SetDefault("compliance.sweepInterval", 24*time.Hour)
	v.SetDefault("compliance.sweepLockTTL", 10*time.Minute)
}
