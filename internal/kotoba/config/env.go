package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// lookupEnv is replaced in tests.
var lookupEnv = os.LookupEnv

// applyEnv overrides fields from the environment. Unset or empty variables
// leave the field untouched; unparsable numbers and durations are ignored.
func (c *Config) applyEnv() {
	envString(&c.DatabasePath, "KOTOBA_DATABASE_PATH")
	envString(&c.MasterKey, "KOTOBA_MASTER_KEY")
	envString(&c.HTTPAddr, "KOTOBA_HTTP_ADDR")
	envString(&c.Log.Level, "KOTOBA_LOG_LEVEL")
	envString(&c.Log.Format, "KOTOBA_LOG_FORMAT")

	envString(&c.Gateway.BaseURL, "KOTOBA_API_BASE_URL")
	envString(&c.Gateway.APIKey, "KOTOBA_API_KEY")
	envString(&c.Gateway.Model, "KOTOBA_MODEL")
	envDuration(&c.Gateway.Timeout, "KOTOBA_GATEWAY_TIMEOUT")

	envDuration(&c.Generation.Timeout, "KOTOBA_GENERATION_TIMEOUT")
	envInt(&c.Generation.SubmitsPerMinute, "KOTOBA_SUBMITS_PER_MINUTE")

	envString(&c.Retention.Schedule, "KOTOBA_RETENTION_SCHEDULE")
	envInt(&c.Retention.MaxConversations, "KOTOBA_MAX_CONVERSATIONS")

	envString(&c.Identity.UserID, "KOTOBA_USER_ID")
	envBool(&c.Identity.Enhanced, "KOTOBA_ENHANCED")

	envString(&c.Matrix.Homeserver, "MATRIX_HOMESERVER")
	envString(&c.Matrix.UserID, "MATRIX_USER_ID")
	envString(&c.Matrix.AccessToken, "MATRIX_ACCESS_TOKEN")
	envList(&c.Matrix.Rooms, "MATRIX_ROOMS")
	envList(&c.Matrix.EnhancedUsers, "MATRIX_ENHANCED_USERS")
}

func envValue(name string) (string, bool) {
	v, ok := lookupEnv(name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func envString(dst *string, name string) {
	if v, ok := envValue(name); ok {
		*dst = v
	}
}

func envInt(dst *int, name string) {
	if v, ok := envValue(name); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(dst *bool, name string) {
	if v, ok := envValue(name); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envDuration(dst *time.Duration, name string) {
	if v, ok := envValue(name); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// envList splits a comma-separated value, trimming blanks.
func envList(dst *[]string, name string) {
	v, ok := envValue(name)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}
