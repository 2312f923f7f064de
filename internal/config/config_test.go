package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 3, cfg.Ingest.MaxDocuments)
	assert.Equal(t, 150, cfg.Ingest.MaxPages)
	assert.Equal(t, 8190, cfg.Ingest.EmbeddingTokenLimit)
	assert.Equal(t, 5, cfg.Ingest.EmbeddingConcurrency)
	assert.Equal(t, 100, cfg.Ingest.RetrievalLimit)
	assert.Equal(t, 30, cfg.Chat.MessageLimit)
	assert.Equal(t, "text-embedding-3-small", cfg.LLM.EmbeddingModel)
	assert.Equal(t, 1536, cfg.LLM.EmbeddingDimensions)
	assert.Equal(t, 120*time.Second, cfg.GenerationTimeout())
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr())
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[app]
port = 9090

[database]
driver = "mysql"

[ingest]
max_pages = 40
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("INGEST_MAX_PAGES", "60")
	t.Setenv("CHAT_MESSAGE_LIMIT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, DriverMySQL, cfg.Database.Driver)
	assert.Equal(t, 60, cfg.Ingest.MaxPages)
	assert.Equal(t, 30, cfg.Chat.MessageLimit)
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Database.Driver = "oracle"
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Ingest.EmbeddingConcurrency = 0
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.App.Env = "prod"
	assert.Error(t, cfg.Validate())
	cfg.LLM.APIKey = "sk-test"
	assert.NoError(t, cfg.Validate())
}

func TestDSN(t *testing.T) {
	cfg := defaultConfig()
	assert.Equal(t, "root:@tcp(127.0.0.1:3306)/gopherai_docqa?parseTime=true&loc=Local&charset=utf8mb4", cfg.MySQLDSN())
	assert.Equal(t, "host=127.0.0.1 port=5432 user=postgres password= dbname=gopherai_docqa sslmode=disable", cfg.PostgresDSN())
}

func TestAbortOnErrorFromEnv(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("INGEST_ABORT_ON_ERROR", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Ingest.AbortOnError)
}
