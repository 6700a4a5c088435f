package cfg

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if c.Port != "8080" {
		t.Fatalf("default port: %s", c.Port)
	}
	if c.RetentionWindow != 10*time.Minute {
		t.Fatalf("default retention: %v", c.RetentionWindow)
	}
	if c.SweepInterval != 10*time.Minute {
		t.Fatalf("default sweep interval: %v", c.SweepInterval)
	}
	if c.RecentLimit != 10 {
		t.Fatalf("default recent limit: %d", c.RecentLimit)
	}
	if c.IDRetryLimit != 5 {
		t.Fatalf("default id retry limit: %d", c.IDRetryLimit)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("RETENTION_WINDOW", "1h")
	t.Setenv("SWEEP_INTERVAL", "5m")
	t.Setenv("RECENT_LIMIT", "25")
	c, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if c.RetentionWindow != time.Hour {
		t.Fatalf("retention override: %v", c.RetentionWindow)
	}
	if c.SweepInterval != 5*time.Minute {
		t.Fatalf("sweep interval override: %v", c.SweepInterval)
	}
	if c.RecentLimit != 25 {
		t.Fatalf("recent limit override: %d", c.RecentLimit)
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	t.Setenv("RETENTION_WINDOW", "not-a-duration")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestLoadInvalidInt(t *testing.T) {
	t.Setenv("RECENT_LIMIT", "many")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid integer")
	}
}

func validCfg() *Cfg {
	return &Cfg{
		Port:            "8080",
		Environment:     "development",
		DatabasePath:    "test.db",
		LRUCacheSize:    100,
		RetentionWindow: 10 * time.Minute,
		SweepInterval:   10 * time.Minute,
		RecentLimit:     10,
		IDRetryLimit:    5,
		MaxPasteSize:    64 * 1024,
		ViewWorkers:     2,
		ContextTimeout:  5 * time.Second,
		DBQueryTimeout:  5 * time.Second,
	}
}

func TestValidateOK(t *testing.T) {
	if err := Validate(validCfg()); err != nil {
		t.Fatal(err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Cfg)
		want   string
	}{
		{"bad port", func(c *Cfg) { c.Port = "http" }, "PORT"},
		{"no db path", func(c *Cfg) { c.DatabasePath = "" }, "DATABASE_PATH"},
		{"tiny retention", func(c *Cfg) { c.RetentionWindow = time.Millisecond }, "RETENTION_WINDOW"},
		{"tiny sweep", func(c *Cfg) { c.SweepInterval = 0 }, "SWEEP_INTERVAL"},
		{"zero recent limit", func(c *Cfg) { c.RecentLimit = 0 }, "RECENT_LIMIT"},
		{"zero retries", func(c *Cfg) { c.IDRetryLimit = 0 }, "ID_RETRY_LIMIT"},
		{"huge paste size", func(c *Cfg) { c.MaxPasteSize = 100 * 1024 * 1024 }, "MAX_PASTE_SIZE"},
		{"bad redis url", func(c *Cfg) { c.RedisURL = "http://nope" }, "REDIS_URL"},
		{"prod without metrics auth", func(c *Cfg) { c.Environment = "production" }, "METRICS_USER"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := validCfg()
			tc.mutate(c)
			err := Validate(c)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %s", err, tc.want)
			}
		})
	}
}

func TestSecretRedaction(t *testing.T) {
	s := NewSecret("hunter2")
	if s.String() != "***REDACTED***" {
		t.Fatalf("secret leaked: %s", s.String())
	}
	if s.Value() != "hunter2" {
		t.Fatal("secret value lost")
	}
	s.Wipe()
	if s.Value() != "\x00\x00\x00\x00\x00\x00\x00" {
		t.Fatal("secret not wiped")
	}
}
