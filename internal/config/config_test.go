package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetEnvWithDefault(t *testing.T) {
	const key = "TEST_APP_PORT"

	// 环境变量未设置时，应该返回默认值
	_ = os.Unsetenv(key)
	if got := getEnv(key, "9000"); got != "9000" {
		t.Fatalf("getEnv(%q) = %q, want %q", key, got, "9000")
	}

	// 环境变量设置后，应优先返回环境变量
	t.Setenv(key, "8080")
	if got := getEnv(key, "9000"); got != "8080" {
		t.Fatalf("getEnv(%q) = %q, want %q", key, got, "8080")
	}
}

func TestGetEnvIntAndDuration(t *testing.T) {
	t.Setenv("TEST_WORKERS", "8")
	if n, err := getEnvInt("TEST_WORKERS", 4); err != nil || n != 8 {
		t.Fatalf("getEnvInt = %d, %v; want 8", n, err)
	}
	t.Setenv("TEST_WORKERS", "eight")
	if _, err := getEnvInt("TEST_WORKERS", 4); err == nil {
		t.Fatalf("expected error for non-numeric value")
	}

	t.Setenv("TEST_TIMEOUT", "3s")
	if d, err := getEnvDuration("TEST_TIMEOUT", time.Second); err != nil || d != 3*time.Second {
		t.Fatalf("getEnvDuration = %s, %v; want 3s", d, err)
	}
	t.Setenv("TEST_TIMEOUT", "soon")
	if _, err := getEnvDuration("TEST_TIMEOUT", time.Second); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
}

// isolate 清掉会影响 Load 的环境变量，并让 .env 指向不存在的文件
func isolate(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"APP_PORT", "POSTGRES_DSN", "REDIS_ADDR", "CRON_SPEC", "CRON_SECRET",
		"FEED_USER_AGENT", "LOG_LEVEL", "RUN_TIMEOUT", "FETCH_TIMEOUT",
		"INGEST_WORKERS", "MAX_FEED_BYTES", configPathEnv,
	} {
		t.Setenv(k, "")
	}
	t.Setenv(envPathEnv, filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.AppPort != "9000" || cfg.Workers != 4 || cfg.FetchTimeout != 15*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.CronSpec != "" {
		t.Fatalf("in-process cron should be disabled by default, got %q", cfg.CronSpec)
	}
}

func TestLoadFileThenEnvOverrides(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "insights.yaml")
	content := `
app_port: "7000"
cron_spec: "*/30 * * * *"
cron_secret: from-file
fetch_timeout: 5s
workers: 2
sources:
  - id: valor
    name: Valor Econômico
    feed_url: https://valor.test/rss
    default_category: Finanças
    default_impact_weight: 0.7
  - id: exame
    name: Exame
    feed_url: https://exame.test/rss
    active: false
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(configPathEnv, path)
	t.Setenv("APP_PORT", "1234")
	t.Setenv("INGEST_WORKERS", "6")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.AppPort != "1234" {
		t.Fatalf("AppPort = %q, want env override 1234", cfg.AppPort)
	}
	if cfg.Workers != 6 {
		t.Fatalf("Workers = %d, want 6", cfg.Workers)
	}
	if cfg.CronSecret != "from-file" || cfg.FetchTimeout != 5*time.Second {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if len(cfg.Sources) != 2 {
		t.Fatalf("sources = %d, want 2", len(cfg.Sources))
	}

	valor := cfg.Sources[0].Domain()
	if !valor.IsActive || valor.ImpactWeight() != 0.7 || valor.DefaultCategory != "Finanças" {
		t.Fatalf("unexpected source: %+v", valor)
	}
	exame := cfg.Sources[1].Domain()
	if exame.IsActive {
		t.Fatalf("exame should be inactive")
	}
	if exame.ImpactWeight() != 0.5 {
		t.Fatalf("missing weight should default to 0.5, got %v", exame.ImpactWeight())
	}
}

func TestLoadRejectsInvalidSources(t *testing.T) {
	cases := map[string]string{
		"missing feed url": "sources:\n  - id: a\n",
		"duplicate id":     "sources:\n  - id: a\n    feed_url: https://a.test\n  - id: a\n    feed_url: https://b.test\n",
		"weight too large": "sources:\n  - id: a\n    feed_url: https://a.test\n    default_impact_weight: 1.5\n",
		"bad yaml":         "sources: [",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			isolate(t)
			path := filepath.Join(t.TempDir(), "insights.yaml")
			if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
				t.Fatalf("write config: %v", err)
			}
			t.Setenv(configPathEnv, path)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadRejectsBadWorkers(t *testing.T) {
	isolate(t)
	t.Setenv("INGEST_WORKERS", "0")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for zero workers")
	}
}
