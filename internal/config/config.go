package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode      Mode
	HTTPAddr  string
	PublicURL string
	LogMode   string

	DBDriver string
	DBDSN    string

	BlobBasePath string

	AuthSecret    string
	AdminUser     string
	AdminPassHash string // bcrypt
	// DevLogin accepts username==password logins for teacher and learner
	// roles. Off by default online.
	DevLogin bool

	CORSOrigins []string

	// RuntimeScriptPath points at the runtime bundle baked into exports.
	RuntimeScriptPath string

	Heartbeat         time.Duration
	BridgePostTimeout time.Duration
	BridgeMaxBatch    int
}

func FromEnv() Config {
	mode := Mode(envOr("MODE", string(ModeOffline)))
	defOrigins := "http://localhost:3000,http://localhost:5173"
	if mode == ModeOnline {
		defOrigins = ""
	}
	return Config{
		Mode:              mode,
		HTTPAddr:          envOr("HTTP_ADDR", ":8080"),
		PublicURL:         os.Getenv("PUBLIC_URL"),
		LogMode:           envOr("LOG_MODE", logModeFor(mode)),
		DBDriver:          envOr("DB_DRIVER", "sqlite"),
		DBDSN:             envOr("DB_DSN", ""),
		BlobBasePath:      envOr("BLOB_BASE_PATH", "./data"),
		AuthSecret:        envOr("AUTH_HMAC_SECRET", "coursepack-dev-secret"),
		AdminUser:         envOr("ADMIN_USER", "admin"),
		AdminPassHash:     envOr("ADMIN_PASS_HASH", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji"),
		DevLogin:          envBool("DEV_LOGIN", mode == ModeOffline),
		CORSOrigins:       csvOr("CORS_ORIGINS", defOrigins),
		RuntimeScriptPath: os.Getenv("RUNTIME_SCRIPT"),
		Heartbeat:         time.Duration(envInt("HEARTBEAT_SECONDS", 30)) * time.Second,
		BridgePostTimeout: envDuration("BRIDGE_POST_TIMEOUT", 5*time.Second),
		BridgeMaxBatch:    envInt("BRIDGE_MAX_BATCH", 100),
	}
}

func logModeFor(m Mode) string {
	if m == ModeOnline {
		return "prod"
	}
	return "dev"
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

func envInt(k string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(k)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func envDuration(k string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(k)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
