package util

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var environmentLogger = log.With().Str("logger_name", "util::environment").Logger()

type serverEnvironment struct {
	NatsURL        string
	RedisHost      string
	RedisPort      string
	RedisPW        string
	RedisDB        string
	RestPort       string
	LogLevel       string
	TimingFile     string
	DisablePacing  string
	ReminderSec    string
	ReminderLimit  string
	GraceSec       string
	AIDelayMillis  string
	EnableLeaders  string
	SystemTestMode string
}

// Env is a helper object for accessing environment variables.
var Env = &serverEnvironment{
	NatsURL:        "NATS_URL",
	RedisHost:      "REDIS_HOST",
	RedisPort:      "REDIS_PORT",
	RedisPW:        "REDIS_PW",
	RedisDB:        "REDIS_DB",
	RestPort:       "REST_PORT",
	LogLevel:       "LOG_LEVEL",
	TimingFile:     "TIMING_FILE",
	DisablePacing:  "DISABLE_PACING",
	ReminderSec:    "REMINDER_SEC",
	ReminderLimit:  "REMINDER_LIMIT",
	GraceSec:       "RECONNECT_GRACE_SEC",
	AIDelayMillis:  "AI_DELAY_MILLIS",
	EnableLeaders:  "ENABLE_LEADERBOARD",
	SystemTestMode: "SYSTEM_TEST",
}

func (s *serverEnvironment) GetNatsURL() string {
	url := os.Getenv(s.NatsURL)
	if url == "" {
		return "nats://localhost:4222"
	}
	return url
}

func (s *serverEnvironment) GetRedisHost() string {
	host := os.Getenv(s.RedisHost)
	if host == "" {
		return "localhost"
	}
	return host
}

func (s *serverEnvironment) GetRedisPort() int {
	portStr := os.Getenv(s.RedisPort)
	if portStr == "" {
		return 6379
	}
	portNum, err := strconv.Atoi(portStr)
	if err != nil {
		environmentLogger.Error().Msgf("Invalid Redis port %s. Falling back to 6379", portStr)
		return 6379
	}
	return portNum
}

func (s *serverEnvironment) GetRedisPW() string {
	return os.Getenv(s.RedisPW)
}

func (s *serverEnvironment) GetRedisDB() int {
	dbStr := os.Getenv(s.RedisDB)
	if dbStr == "" {
		return 0
	}
	dbNum, err := strconv.Atoi(dbStr)
	if err != nil {
		environmentLogger.Error().Msgf("Invalid Redis db %s. Falling back to 0", dbStr)
		return 0
	}
	return dbNum
}

func (s *serverEnvironment) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", s.GetRedisHost(), s.GetRedisPort())
}

func (s *serverEnvironment) GetRestPort() int {
	portStr := os.Getenv(s.RestPort)
	if portStr == "" {
		return 8080
	}
	portNum, err := strconv.Atoi(portStr)
	if err != nil {
		environmentLogger.Error().Msgf("Invalid REST port %s. Falling back to 8080", portStr)
		return 8080
	}
	return portNum
}

func (s *serverEnvironment) GetTimingFile() string {
	f := os.Getenv(s.TimingFile)
	if f == "" {
		return "timing.yaml"
	}
	return f
}

func (s *serverEnvironment) ShouldDisablePacing() bool {
	v := os.Getenv(s.DisablePacing)
	return v == "1" || v == "true"
}

func (s *serverEnvironment) IsSystemTest() bool {
	v := os.Getenv(s.SystemTestMode)
	return v == "1" || v == "true"
}

func (s *serverEnvironment) IsLeaderboardEnabled() bool {
	v := os.Getenv(s.EnableLeaders)
	return v == "1" || v == "true"
}

// getUint32 reads one numeric override. The second return is false when the
// variable is unset or unparsable; callers keep their configured value then.
func (s *serverEnvironment) getUint32(key string) (uint32, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		environmentLogger.Error().Msgf("Invalid %s value %s. Ignoring", key, v)
		return 0, false
	}
	return uint32(n), true
}

func (s *serverEnvironment) GetReminderSec() (uint32, bool) {
	return s.getUint32(s.ReminderSec)
}

func (s *serverEnvironment) GetReminderLimit() (uint32, bool) {
	return s.getUint32(s.ReminderLimit)
}

func (s *serverEnvironment) GetGraceSec() (uint32, bool) {
	return s.getUint32(s.GraceSec)
}

func (s *serverEnvironment) GetAIDelayMillis() (uint32, bool) {
	return s.getUint32(s.AIDelayMillis)
}

func (s *serverEnvironment) GetZeroLogLogLevel() zerolog.Level {
	l := os.Getenv(s.LogLevel)
	switch l {
	case "":
		return zerolog.InfoLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled":
		return zerolog.Disabled
	default:
		panic(fmt.Sprintf("Unsupported %s: %s", s.LogLevel, l))
	}
}
