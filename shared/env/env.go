package env

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

var (
	TelegramBotToken string
	TelegramGroupID  int64

	CallAlertsThreadID int
	TrackingThreadID   int
	SystemLogsThreadID int

	ShotCallerGroupID int64
	SourceGroupIDs    []int64
	AdminUserIDs      []int64

	Port      string
	APISecret string

	DATABASE_URL string

	PGHOST     string
	PGPORT     string
	PGUSER     string
	PGPASSWORD string
	PGDATABASE string

	LOCAL_DATABASE_HOST     string
	LOCAL_DATABASE_PORT     string
	LOCAL_DATABASE_USER     string
	LOCAL_DATABASE_PASSWORD string
	LOCAL_DATABASE_NAME     string
)

func loadEnvVariable(key string, isRequired bool) string {
	value := os.Getenv(key)
	if isRequired && value == "" {
		log.Fatalf("FATAL: Environment variable %s is required but not set.", key)
	}
	isHidden := key == "TELEGRAM_BOT_TOKEN" || key == "LOCAL_DATABASE_PASSWORD" || key == "PGPASSWORD" || key == "DATABASE_URL" || key == "API_SECRET"
	if value == "" {
		if !isRequired {
			log.Printf("INFO: Environment variable %s is not set.", key)
		}
	} else if isHidden {
		log.Printf("INFO: Loaded %s (value hidden)", key)
	} else {
		log.Printf("INFO: Loaded %s = %s", key, value)
	}
	return value
}

func loadIntEnv(key string, required bool) int {
	strValue := loadEnvVariable(key, required)
	if strValue == "" {
		if !required {
			return 0
		}
		log.Fatalf("FATAL: Required integer environment variable %s is missing after load.", key)
		return 0
	}
	id, err := strconv.Atoi(strValue)
	if err != nil {
		log.Fatalf("FATAL: Failed to parse integer environment variable %s='%s': %v", key, strValue, err)
	}
	return id
}

func loadInt64Env(key string, required bool) int64 {
	strValue := loadEnvVariable(key, required)
	if strValue == "" {
		if !required {
			return 0
		}
		log.Fatalf("FATAL: Required int64 environment variable %s is missing after load.", key)
		return 0
	}
	id, err := strconv.ParseInt(strValue, 10, 64)
	if err != nil {
		log.Fatalf("FATAL: Failed to parse int64 environment variable %s='%s': %v", key, strValue, err)
	}
	return id
}

func loadInt64ListEnv(key string, required bool) []int64 {
	strValue := loadEnvVariable(key, required)
	if strValue == "" {
		return nil
	}
	var ids []int64
	for _, part := range strings.Split(strValue, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		id, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			log.Fatalf("FATAL: Failed to parse entry '%s' of int64 list environment variable %s: %v", trimmed, key, err)
		}
		ids = append(ids, id)
	}
	return ids
}

func LoadEnv() error {
	err := godotenv.Load()
	if err != nil {
		log.Println("INFO: .env file not found or error loading, relying on system environment variables.")
	} else {
		log.Println("INFO: .env file loaded successfully.")
	}

	TelegramBotToken = loadEnvVariable("TELEGRAM_BOT_TOKEN", false)
	TelegramGroupID = loadInt64Env("TELEGRAM_GROUP_ID", false)
	CallAlertsThreadID = loadIntEnv("CALL_ALERTS_THREAD_ID", false)
	TrackingThreadID = loadIntEnv("TRACKING_THREAD_ID", false)
	SystemLogsThreadID = loadIntEnv("SYSTEM_LOGS_THREAD_ID", false)

	ShotCallerGroupID = loadInt64Env("SHOT_CALLER_GROUP_ID", false)
	SourceGroupIDs = loadInt64ListEnv("SOURCE_GROUP_IDS", false)
	AdminUserIDs = loadInt64ListEnv("ADMIN_USER_IDS", false)

	Port = loadEnvVariable("PORT", false)
	if Port == "" {
		Port = "8080"
		log.Printf("INFO: PORT not set, defaulting to %s", Port)
	}
	APISecret = loadEnvVariable("API_SECRET", false)

	DATABASE_URL = loadEnvVariable("DATABASE_URL", false)

	PGHOST = loadEnvVariable("PGHOST", false)
	PGPORT = loadEnvVariable("PGPORT", false)
	PGUSER = loadEnvVariable("PGUSER", false)
	PGPASSWORD = loadEnvVariable("PGPASSWORD", false)
	PGDATABASE = loadEnvVariable("PGDATABASE", false)

	LOCAL_DATABASE_HOST = loadEnvVariable("LOCAL_DATABASE_HOST", false)
	LOCAL_DATABASE_PORT = loadEnvVariable("LOCAL_DATABASE_PORT", false)
	LOCAL_DATABASE_USER = loadEnvVariable("LOCAL_DATABASE_USER", false)
	LOCAL_DATABASE_PASSWORD = loadEnvVariable("LOCAL_DATABASE_PASSWORD", false)
	LOCAL_DATABASE_NAME = loadEnvVariable("LOCAL_DATABASE_NAME", false)

	if DATABASE_URL == "" {
		log.Println("WARN: DATABASE_URL is not set. Connection logic might rely on PG* or LOCAL_* variables.")
	}
	if TelegramBotToken != "" && TelegramGroupID == 0 {
		log.Println("WARN: TELEGRAM_BOT_TOKEN is set, but TELEGRAM_GROUP_ID is missing, invalid, or zero.")
	}
	if TelegramBotToken != "" && len(SourceGroupIDs) == 0 {
		log.Println("WARN: SOURCE_GROUP_IDS is empty. The call listener has no groups to watch.")
	}
	if TelegramBotToken != "" && CallAlertsThreadID == 0 {
		log.Println("WARN: CALL_ALERTS_THREAD_ID is missing or invalid (0). Call alerts will go to the main chat.")
	}
	if APISecret == "" {
		log.Println("WARN: API_SECRET is not set. The manual refresh endpoint will be unsecured.")
	}

	log.Println("INFO: Environment variables loading process complete.")
	return nil
}
