package bootstrap_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/artpar/coreplane/bootstrap"
)

func writeTestConfig(t *testing.T, dbPath string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 0

database:
  dsn: "` + dbPath + `"

logging:
  level: "error"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestBootstrap_Integration(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	cfgPath := writeTestConfig(t, dbPath)

	a, err := bootstrap.New(bootstrap.Options{ConfigPath: cfgPath, Version: "test"})
	if err != nil {
		t.Fatalf("create app: %v", err)
	}
	defer a.Shutdown()

	if a.DB == nil {
		t.Error("DB should not be nil")
	}
	if a.HTTPServer == nil {
		t.Error("HTTPServer should not be nil")
	}
	if a.Snapshots == nil || a.Quotas == nil || a.Suspensions == nil || a.BreakGlass == nil {
		t.Error("services should not be nil")
	}
	if a.Jobs == nil {
		t.Error("Jobs should not be nil")
	}
	if a.Holder == nil {
		t.Error("Holder should not be nil when a config file exists")
	}
}

func TestBootstrap_DatabaseMigration(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "migrate-test.db")
	cfgPath := writeTestConfig(t, dbPath)

	a, err := bootstrap.New(bootstrap.Options{ConfigPath: cfgPath})
	if err != nil {
		t.Fatalf("create app: %v", err)
	}
	defer a.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tables := []string{
		"projects",
		"project_services",
		"quotas",
		"usage_records",
		"suspensions",
		"breakglass_sessions",
		"override_actions",
	}
	for _, table := range tables {
		var count int
		if err := a.DB.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			t.Errorf("query %s table: %v", table, err)
		}
	}
}

func TestBootstrap_GracefulShutdown(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "shutdown-test.db")
	cfgPath := writeTestConfig(t, dbPath)

	a, err := bootstrap.New(bootstrap.Options{ConfigPath: cfgPath})
	if err != nil {
		t.Fatalf("create app: %v", err)
	}

	if err := a.Shutdown(); err != nil {
		t.Errorf("shutdown error: %v", err)
	}

	// DB is closed, queries must fail
	if _, err := a.DB.DB.Query("SELECT 1"); err == nil {
		t.Error("expected error querying closed database")
	}
}

func TestBootstrap_EnvOnly(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "env-test.db")
	os.Setenv("COREPLANE_DATABASE_DSN", dbPath)
	os.Setenv("COREPLANE_LOG_LEVEL", "error")
	defer func() {
		os.Unsetenv("COREPLANE_DATABASE_DSN")
		os.Unsetenv("COREPLANE_LOG_LEVEL")
	}()

	a, err := bootstrap.New(bootstrap.Options{})
	if err != nil {
		t.Fatalf("create app: %v", err)
	}
	defer a.Shutdown()

	if a.Holder != nil {
		t.Error("Holder should be nil without a config file")
	}
	if a.Config.Database.DSN != dbPath {
		t.Errorf("Database.DSN = %s, want %s", a.Config.Database.DSN, dbPath)
	}
}
