package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/kavos113/quickfleet/fleet-manager/infrastructure/awsconfig"
	"github.com/kavos113/quickfleet/fleet-manager/infrastructure/kvstore"
	"github.com/kavos113/quickfleet/fleet-manager/usecase"
)

type Config struct {
	Port string

	AWS   *awsconfig.Config
	Store *kvstore.Config

	ReconcileInterval  time.Duration
	ReconcileTimeout   time.Duration
	OptimisticScript   bool
	RefreshAfterAction bool

	ScriptShell    string
	ScriptLauncher string
	ScriptEntry    string

	PublishRedis   bool
	NATSURL        string
	JournalBucket  string
	S3Endpoint     string
	AllowedOrigins string
}

func NewConfigFromEnv() *Config {
	return &Config{
		Port:  getEnv("FLEET_PORT", "8080"),
		AWS:   awsconfig.NewConfigFromEnv(),
		Store: kvstore.NewConfigFromEnv(),

		ReconcileInterval:  getDuration("RECONCILE_INTERVAL", usecase.DefaultReconcileInterval),
		ReconcileTimeout:   getDuration("RECONCILE_TIMEOUT", usecase.DefaultReconcileTimeout),
		OptimisticScript:   getBool("OPTIMISTIC_SCRIPT_STATE", false),
		RefreshAfterAction: getBool("REFRESH_AFTER_ACTION", true),

		ScriptShell:    getEnv("SCRIPT_PROFILE", string(usecase.ScriptShellPOSIX)),
		ScriptLauncher: getEnv("SCRIPT_LAUNCHER", usecase.DefaultScriptLauncher),
		ScriptEntry:    getEnv("SCRIPT_ENTRY", usecase.DefaultScriptEntry),

		PublishRedis:   getBool("PUBLISH_REDIS", false),
		NATSURL:        os.Getenv("NATS_URL"),
		JournalBucket:  os.Getenv("JOURNAL_BUCKET"),
		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "*"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Printf("invalid %s=%q, using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("invalid %s=%q, using %v", key, value, defaultValue)
		return defaultValue
	}
	return b
}
