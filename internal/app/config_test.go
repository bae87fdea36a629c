package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsDefaults(t *testing.T) {
	for _, key := range []string{"OTL_API_URL", "OTL_WEB_URL", "OTL_TOKEN", "OTL_DEBOUNCE", "OTL_LOG_FILE", "GOOGLE_CREDENTIALS_FILE", "CSV_DELIMITER"} {
		t.Setenv(key, "")
	}

	s, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, Settings{
		APIURL:          "http://localhost:8000",
		WebURL:          "http://localhost:3000",
		Debounce:        500 * time.Millisecond,
		CredentialsFile: "credentials.json",
		CSVDelimiter:    ';',
	}, s)
}

func TestLoadSettingsFromEnv(t *testing.T) {
	t.Setenv("OTL_API_URL", "https://api.tables.example/")
	t.Setenv("OTL_TOKEN", "tok")
	t.Setenv("OTL_DEBOUNCE", "250ms")
	t.Setenv("CSV_DELIMITER", ",")

	s, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, "https://api.tables.example", s.APIURL)
	assert.Equal(t, "tok", s.Token)
	assert.Equal(t, 250*time.Millisecond, s.Debounce)
	assert.Equal(t, ',', s.CSVDelimiter)
}

func TestLoadSettingsRejectsBadValues(t *testing.T) {
	t.Setenv("OTL_DEBOUNCE", "soon")
	_, err := LoadSettings()
	assert.Error(t, err)

	t.Setenv("OTL_DEBOUNCE", "")
	t.Setenv("CSV_DELIMITER", ";;")
	_, err = LoadSettings()
	assert.Error(t, err)
}

func TestGetRequiredEnv(t *testing.T) {
	t.Setenv("OTL_TEST_VALUE", "")
	_, err := GetRequiredEnv("OTL_TEST_VALUE")
	assert.EqualError(t, err, "OTL_TEST_VALUE environment variable is required")

	t.Setenv("OTL_TEST_VALUE", "x")
	v, err := GetRequiredEnv("OTL_TEST_VALUE")
	require.NoError(t, err)
	assert.Equal(t, "x", v)
}

func TestConfigureLoggingLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.GlobalLevel())
	defer func(l zerolog.Logger) { log.Logger = l }(log.Logger)

	t.Setenv("ENV", "")
	t.Setenv("LOGLEVEL", "debug")
	ConfigureLogging(os.Stderr)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	t.Setenv("LOGLEVEL", "warning")
	ConfigureLogging(os.Stderr)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	t.Setenv("LOGLEVEL", "")
	t.Setenv("ENV", "production")
	ConfigureLogging(os.Stderr)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}

func TestRedirectLogs(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.GlobalLevel())
	defer func(l zerolog.Logger) { log.Logger = l }(log.Logger)
	t.Setenv("ENV", "")
	t.Setenv("LOGLEVEL", "info")

	path := filepath.Join(t.TempDir(), "otl.log")
	closer, err := RedirectLogs(path)
	require.NoError(t, err)
	log.Info().Msg("written to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}
