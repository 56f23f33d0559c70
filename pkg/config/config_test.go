package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const minimalYAML = `
sources:
  - name: alpha
    url: https://alpha.example.com/gmp
kafka:
  brokers: ["localhost:9092"]
clickhouse:
  host: localhost
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if c.Server.Port != 8080 {
		t.Fatalf("port = %d, want 8080", c.Server.Port)
	}
	if c.Scheduler.Tiers.High.Interval != 30*time.Second {
		t.Fatalf("high interval = %v, want 30s", c.Scheduler.Tiers.High.Interval)
	}
	if c.Scheduler.Tiers.Medium.Interval != 2*time.Minute {
		t.Fatalf("medium interval = %v, want 2m", c.Scheduler.Tiers.Medium.Interval)
	}
	if c.Scheduler.Tiers.Low.Interval != 10*time.Minute {
		t.Fatalf("low interval = %v, want 10m", c.Scheduler.Tiers.Low.Interval)
	}
	if c.Scheduler.RetryCeiling != 3 {
		t.Fatalf("retry ceiling = %d, want 3", c.Scheduler.RetryCeiling)
	}
	if c.Analytics.RSIPeriod != 14 || c.Analytics.DedupWindow != 10*time.Minute {
		t.Fatalf("analytics defaults = %d/%v", c.Analytics.RSIPeriod, c.Analytics.DedupWindow)
	}
	if c.Kafka.ReadingsTopic != "gmp.readings" || c.Kafka.ControlTopic != "gmp.control" {
		t.Fatalf("topic defaults = %s/%s", c.Kafka.ReadingsTopic, c.Kafka.ControlTopic)
	}

	src := c.Sources[0]
	if src.Kind != "http" || src.Weight != 1.0 || src.ReliabilityPrior != 0.8 || src.Timeout != 3*time.Second {
		t.Fatalf("source defaults = %+v", src)
	}
}

func TestLoadRejectsDuplicateSourceNames(t *testing.T) {
	body := `
sources:
  - name: alpha
    url: https://alpha.example.com/gmp
  - name: alpha
    url: https://mirror.example.com/gmp
kafka:
  brokers: ["localhost:9092"]
clickhouse:
  host: localhost
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatalf("expected duplicate source name to fail validation")
	}
}

func TestLoadRejectsSMAOrdering(t *testing.T) {
	body := minimalYAML + `
analytics:
  short_sma_window: 10
  long_sma_window: 5
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatalf("expected short >= long SMA windows to fail validation")
	}
}

func TestLoadRejectsMissingSources(t *testing.T) {
	body := `
kafka:
  brokers: ["localhost:9092"]
clickhouse:
  host: localhost
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatalf("expected empty sources to fail validation")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("CLICKHOUSE_HOST", "ch.internal")
	t.Setenv("GMP_SOURCE_API_KEY", "secret")

	c, err := LoadWithEnv(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Kafka.Brokers) != 2 || c.Kafka.Brokers[0] != "k1:9092" {
		t.Fatalf("brokers = %v, want env override", c.Kafka.Brokers)
	}
	if c.ClickHouse.Host != "ch.internal" {
		t.Fatalf("clickhouse host = %s, want env override", c.ClickHouse.Host)
	}
	if c.Sources[0].APIKey != "secret" {
		t.Fatalf("api key = %q, want env fallback", c.Sources[0].APIKey)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
