package api

import (
	"net/http"
	"os"
	"strings"

	"cronchat/internal/config"
	"cronchat/internal/types"
)

var reportedEnv = []string{
	"PORT",
	"APP_ENV",
	"TRANSPORT",
	"REDIS_URL",
	"PUBSUB_CHANNEL",
	"DATABASE_URL",
	"DB_MAX_CONNS",
	"DB_MIN_CONNS",
	"SQLITE_PATH",
	"ARCHIVE_RETENTION",
	"BOT_SCHEDULE",
	"BOT_SENDER",
	"BOT_AUTOSTART",
	"AUTH_KEY",
	"ALLOWED_ORIGINS",
	"INSTANCE_ID",
}

var secretMarkers = []string{"SECRET", "KEY", "TOKEN", "PASSWORD"}

// TestEnvHandler reports which settings are present. Secrets are never echoed.
func TestEnvHandler(appEnv string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := make(map[string]string, len(reportedEnv))
		for _, key := range reportedEnv {
			value, ok := os.LookupEnv(key)
			if !ok {
				continue
			}
			vars[key] = maskEnvValue(key, value)
		}

		JSON(w, http.StatusOK, types.EnvReport{
			Message: "Environment test",
			EnvVars: vars,
			AppEnv:  appEnv,
		})
	}
}

func maskEnvValue(key, value string) string {
	if value == "" {
		return ""
	}
	for _, marker := range secretMarkers {
		if strings.Contains(key, marker) {
			return "****"
		}
	}
	if strings.Contains(value, "://") {
		return config.MaskDSN(value)
	}
	return value
}
