package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPPort != ":8080" {
		t.Errorf("HTTPPort = %q, want :8080", cfg.Server.HTTPPort)
	}
	if cfg.History.MaxDepth != 500 || cfg.History.MinInterval != 150*time.Millisecond {
		t.Errorf("History = %+v", cfg.History)
	}
	if cfg.Generation.Retry.Attempts != 3 || cfg.Generation.Retry.Delay != time.Second || cfg.Generation.Retry.Backoff != 2 {
		t.Errorf("Generation.Retry = %+v", cfg.Generation.Retry)
	}
	if cfg.Cache.MaxRevisions != 20 {
		t.Errorf("Cache.MaxRevisions = %d, want 20", cfg.Cache.MaxRevisions)
	}
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	content := `
server:
  http_port: ":9090"
kafka:
  brokers: ["kafka:9092"]
  topic: exports
export:
  job_timeout: 30s
  filename_template: "{name}-{date}-{index}.{format}"
database:
  master:
    host: file-host
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("GEMINI_API_KEY", "secret")
	t.Setenv("DB_HOST", "env-host")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPPort != ":9090" {
		t.Errorf("HTTPPort = %q", cfg.Server.HTTPPort)
	}
	if len(cfg.Kafka.Brokers) != 1 || cfg.Kafka.Topic != "exports" || cfg.Kafka.GroupID != "nano-editor" {
		t.Errorf("Kafka = %+v", cfg.Kafka)
	}
	if cfg.Export.JobTimeout != 30*time.Second || cfg.Export.FilenameTemplate != "{name}-{date}-{index}.{format}" {
		t.Errorf("Export = %+v", cfg.Export)
	}
	if cfg.Generation.APIKey != "secret" {
		t.Errorf("Generation.APIKey = %q, want value from GEMINI_API_KEY", cfg.Generation.APIKey)
	}
	if cfg.Database.Master.Host != "env-host" {
		t.Errorf("Database.Master.Host = %q, want env override", cfg.Database.Master.Host)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("GEMINI_API_KEY=from-dotenv\nDB_HOST=dotenv-host\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	// Registered so the cleanup removes whatever .env sets.
	t.Setenv("GEMINI_API_KEY", "")
	os.Unsetenv("GEMINI_API_KEY")
	t.Setenv("DB_HOST", "env-wins")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Generation.APIKey != "from-dotenv" {
		t.Errorf("Generation.APIKey = %q, want value from .env", cfg.Generation.APIKey)
	}
	if cfg.Database.Master.Host != "env-wins" {
		t.Errorf("Database.Master.Host = %q, want the environment over .env", cfg.Database.Master.Host)
	}
}

func TestDSN(t *testing.T) {
	n := DatabaseNode{Host: "db", Port: "5432", User: "u", Pass: "p", Name: "nano", SSLMode: "disable"}
	if got, want := n.DSN(), "postgres://u:p@db:5432/nano?sslmode=disable"; got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestStorage_Hosts(t *testing.T) {
	s := Storage{
		Endpoint:     "minio:9000",
		PublicURL:    "http://localhost:9000",
		TrustedHosts: []string{"images.internal"},
	}

	got := s.Hosts()
	want := []string{"minio:9000", "localhost:9000", "images.internal"}
	if len(got) != len(want) {
		t.Fatalf("Hosts() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Hosts()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if hosts := (Storage{}).Hosts(); len(hosts) != 0 {
		t.Errorf("empty Hosts() = %v", hosts)
	}
}
