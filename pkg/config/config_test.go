package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "lessons", cfg.Build.LessonsDir)
	assert.Equal(t, 2.0, cfg.Build.RenderScale)
	assert.Equal(t, []string{"lossless", "lossy"}, cfg.Build.Variants)
	assert.Equal(t, filepath.Join("db", IndexFileName), cfg.Search.IndexPath)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.Kafka.Enabled())
	assert.False(t, cfg.Postgres.Enabled())
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: "0.0.0.0:8080"
build:
  outDir: /srv/db
  workers: 3
  failFast: true
search:
  corsOrigin: "https://cours.example"
redis:
  addr: "localhost:6379"
  cacheTTL: 30s
`), 0644))

	t.Setenv("LESSONS_DIR", "/srv/lessons")
	t.Setenv("BIND_ADDR", "127.0.0.1:9000")
	t.Setenv("LS_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, "/srv/lessons", cfg.Build.LessonsDir)
	assert.Equal(t, 3, cfg.Build.Workers)
	assert.True(t, cfg.Build.FailFast)
	assert.Equal(t, "/srv/db/"+IndexFileName, cfg.Search.IndexPath)
	assert.Equal(t, "https://cours.example", cfg.Search.CORSOrigin)
	assert.Equal(t, 30*time.Second, cfg.Redis.CacheTTL)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_SearchSynonymsFollowBuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("build:\n  synonymsFile: /srv/synonymes.txt\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/synonymes.txt", cfg.Search.SynonymsFile)

	require.NoError(t, os.WriteFile(path, []byte(`
build:
  synonymsFile: /srv/synonymes.txt
search:
  synonymsFile: /srv/autres.txt
`), 0644))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/autres.txt", cfg.Search.SynonymsFile)
}

func TestLoad_EmptyCORSOriginFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search:\n  corsOrigin: \"*\"\n"), 0644))
	t.Setenv("CORS_ORIGIN", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Search.CORSOrigin)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		yaml string
	}{
		{name: "bad int env", env: map[string]string{"LS_BUILD_WORKERS": "many"}},
		{name: "zero workers", env: map[string]string{"LS_BUILD_WORKERS": "0"}},
		{name: "negative scale", env: map[string]string{"LS_RENDER_SCALE": "-1"}},
		{name: "unknown variant", yaml: "build:\n  variants: [webp]\n"},
		{name: "limit above max", yaml: "search:\n  defaultLimit: 100\n  maxResults: 10\n"},
		{name: "broken yaml", yaml: "build: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.yaml != "" {
				path = filepath.Join(t.TempDir(), "config.yaml")
				require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0644))
			}
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}
