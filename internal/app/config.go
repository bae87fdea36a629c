package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"online_tables_lite/internal/api"
	"online_tables_lite/internal/editor"
	"online_tables_lite/internal/notifications"
	"online_tables_lite/internal/retry"
	"online_tables_lite/internal/sheets"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Settings is the environment-derived configuration shared by every command.
type Settings struct {
	APIURL          string
	WebURL          string
	Token           string
	Debounce        time.Duration
	LogFile         string
	CredentialsFile string
	CSVDelimiter    rune
}

// SetupEnvironment loads .env file and configures zerolog output and log level.
func SetupEnvironment() {
	err := godotenv.Load()

	ConfigureLogging(os.Stderr)

	// wait until now to report on the .env file so we have the chance to set up logging first
	if err == nil {
		log.Debug().Msg("Loaded environment variables from .env file.")
	} else {
		log.Debug().Msg("No .env file found or error loading .env file; proceeding with existing environment variables.")
	}
}

// ConfigureLogging points the global logger at out: JSON with Unix
// timestamps in production, console output otherwise.
func ConfigureLogging(out io.Writer) {
	production := os.Getenv("ENV") == "production"
	if production {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = log.Output(out)
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: out != os.Stderr})
	}

	levelStr := strings.ToLower(os.Getenv("LOGLEVEL"))
	switch levelStr {
	case "":
		if production {
			zerolog.SetGlobalLevel(zerolog.WarnLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
	case "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	default:
		level, err := zerolog.ParseLevel(levelStr)
		if err != nil {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			log.Warn().Msgf("Unknown LOGLEVEL '%s', defaulting to info.", levelStr)
			return
		}
		zerolog.SetGlobalLevel(level)
	}
}

// RedirectLogs sends logs to path for as long as a full-screen UI owns the
// terminal. With an empty path logging is silenced instead.
func RedirectLogs(path string) (io.Closer, error) {
	if path == "" {
		log.Logger = zerolog.Nop()
		return io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	ConfigureLogging(f)
	return f, nil
}

// GetRequiredEnv fetches a required environment variable.
func GetRequiredEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s environment variable is required", key)
	}
	return value, nil
}

// GetEnvWithDefault fetches an environment variable with a default fallback.
func GetEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func LoadSettings() (Settings, error) {
	debounce, err := time.ParseDuration(GetEnvWithDefault("OTL_DEBOUNCE", editor.DefaultDebounce.String()))
	if err != nil || debounce <= 0 {
		return Settings{}, fmt.Errorf("OTL_DEBOUNCE must be a positive duration: %q", os.Getenv("OTL_DEBOUNCE"))
	}

	delimiter := GetEnvWithDefault("CSV_DELIMITER", ";")
	comma, size := utf8.DecodeRuneInString(delimiter)
	if size != len(delimiter) {
		return Settings{}, fmt.Errorf("CSV_DELIMITER must be a single character: %q", delimiter)
	}

	s := Settings{
		APIURL:          strings.TrimSuffix(GetEnvWithDefault("OTL_API_URL", "http://localhost:8000"), "/"),
		WebURL:          strings.TrimSuffix(GetEnvWithDefault("OTL_WEB_URL", "http://localhost:3000"), "/"),
		Token:           os.Getenv("OTL_TOKEN"),
		Debounce:        debounce,
		LogFile:         os.Getenv("OTL_LOG_FILE"),
		CredentialsFile: GetEnvWithDefault("GOOGLE_CREDENTIALS_FILE", "credentials.json"),
		CSVDelimiter:    comma,
	}
	log.Debug().
		Str("api_url", s.APIURL).
		Str("web_url", s.WebURL).
		Dur("debounce", s.Debounce).
		Bool("token_set", s.Token != "").
		Msg("Loaded settings")
	return s, nil
}

// InitializeClients creates the backend API client.
func InitializeClients(settings Settings) *api.Client {
	log.Debug().Str("base_url", settings.APIURL).Msg("Initializing API client")
	return api.NewClient(settings.APIURL)
}

// InitializeSheetsClient creates the Google Sheets client used by export.
func InitializeSheetsClient(ctx context.Context, settings Settings) (*sheets.Client, error) {
	client, err := sheets.NewClient(ctx, settings.CredentialsFile)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("credentials", settings.CredentialsFile).Msg("Sheets client initialized")
	return client, nil
}

// InitializeNotificationClient creates and returns the notification client
func InitializeNotificationClient() *notifications.Client {
	enabled := GetEnvWithDefault("NTFY_ENABLED", "false") == "true"
	baseURL := GetEnvWithDefault("NTFY_URL", "https://ntfy.sh")
	topic := GetEnvWithDefault("NTFY_TOPIC", "online-tables")
	priority := os.Getenv("NTFY_PRIORITY")
	batch, err := strconv.ParseBool(GetEnvWithDefault("NTFY_BATCH", "true"))
	if err != nil {
		log.Warn().Str("value", os.Getenv("NTFY_BATCH")).Msg("Invalid NTFY_BATCH, defaulting to true")
		batch = true
	}

	log.Debug().
		Bool("enabled", enabled).
		Str("base_url", baseURL).
		Str("topic", topic).
		Bool("batch", batch).
		Msg("Initializing notification client")

	client := notifications.NewClient(notifications.Config{
		BaseURL:   baseURL,
		Topic:     topic,
		Enabled:   enabled,
		BatchMode: batch,
		Priority:  priority,
		Retry: retry.Config{
			MaxRetries: 3,
			BaseDelay:  time.Second,
			MaxDelay:   30 * time.Second,
			Timeout:    10 * time.Second,
		},
	})

	if enabled {
		log.Info().Str("topic", topic).Msg("Notifications enabled")
	} else {
		log.Debug().Msg("Notifications disabled")
	}

	return client
}
