package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"acctlog/internal/core"
	"acctlog/internal/store"
)

func setupSQLiteEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATA_BACKEND", "sqlite")
	t.Setenv("SQLITE_DB_PATH", filepath.Join(t.TempDir(), "acctlog.db"))
	t.Setenv("EDIT_WINDOW_ENFORCED", "false")
	t.Setenv("AMQP_URL", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("METRICS_ADDR", "")
	t.Setenv("LOG_LEVEL", "error")
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand()
	root.Writer = &out
	root.ErrWriter = &out
	err := root.Run(context.Background(), append([]string{"acctlog"}, args...))
	return out.String(), err
}

func mustRunCLI(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCLI(t, args...)
	if err != nil {
		t.Fatalf("acctlog %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestEntriesLifecycle(t *testing.T) {
	setupSQLiteEnv(t)

	out := mustRunCLI(t, "entries", "add",
		"--date", "2025-09-01", "--cash", "10", "--credit", "5", "--credit", "0", "--location", "A")
	if !strings.Contains(out, "A-2025-09") || !strings.Contains(out, "day total 15.00") {
		t.Fatalf("add output: %q", out)
	}
	fields := strings.Fields(out)
	if len(fields) < 2 || fields[0] != "added" {
		t.Fatalf("add output: %q", out)
	}
	id := fields[1]

	out = mustRunCLI(t, "entries", "update", "--cash", "20,5", id)
	if !strings.Contains(out, "day total 25.50") {
		t.Errorf("update output: %q", out)
	}

	out = mustRunCLI(t, "entries", "list", "--location", "A")
	if !strings.Contains(out, id) || !strings.Contains(out, "cash 20.50") || !strings.Contains(out, "credits [5.00 0.00]") {
		t.Errorf("list output: %q", out)
	}

	out = mustRunCLI(t, "buckets")
	if !strings.Contains(out, "September 2025") || !strings.Contains(out, "total 25.50") {
		t.Errorf("buckets output: %q", out)
	}

	mustRunCLI(t, "entries", "delete", id)
	if out := mustRunCLI(t, "entries", "list"); strings.Contains(out, id) {
		t.Errorf("deleted entry still listed: %q", out)
	}
}

func TestEntriesAddNotesDayAlreadyLogged(t *testing.T) {
	setupSQLiteEnv(t)

	mustRunCLI(t, "entries", "add", "--date", "2025-09-01", "--cash", "1")
	out := mustRunCLI(t, "entries", "add", "--date", "2025-09-01", "--cash", "2")
	if !strings.Contains(out, "already has an entry") {
		t.Errorf("second add output: %q", out)
	}
	out = mustRunCLI(t, "entries", "add", "--date", "2025-09-01", "--cash", "2", "--location", "B")
	if strings.Contains(out, "already has an entry") {
		t.Errorf("other location should not be noted: %q", out)
	}
}

func TestEntriesErrors(t *testing.T) {
	setupSQLiteEnv(t)

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"bad amount", []string{"entries", "add", "--cash", "abc"}, core.ErrInvalidAmount},
		{"negative credit", []string{"entries", "add", "--credit=-1"}, core.ErrNegativeAmount},
		{"bad date", []string{"entries", "add", "--date", "01/09/2025"}, core.ErrInvalidDate},
		{"unknown id", []string{"entries", "update", "--cash", "1", "missing"}, store.ErrNotFound},
		{"delete unknown", []string{"entries", "delete", "missing"}, store.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, tt.args...)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := runCLI(t, "entries", "delete"); err == nil {
		t.Error("delete without id should fail")
	}
}

func TestLocationsLifecycle(t *testing.T) {
	setupSQLiteEnv(t)

	out := mustRunCLI(t, "locations", "add", "--display", "North shop", "North")
	if !strings.HasPrefix(out, "added location North (") {
		t.Fatalf("add output: %q", out)
	}
	id := strings.TrimSuffix(strings.TrimSpace(strings.SplitN(out, "(", 2)[1]), ")")

	out = mustRunCLI(t, "locations", "list")
	if !strings.Contains(out, id) || !strings.Contains(out, "North shop") {
		t.Errorf("list output: %q", out)
	}

	mustRunCLI(t, "locations", "delete", id)
	if out := mustRunCLI(t, "locations", "list"); strings.Contains(out, id) {
		t.Errorf("deleted location still listed: %q", out)
	}

	if _, err := runCLI(t, "locations", "add", " "); !errors.Is(err, core.ErrEmptyLocation) {
		t.Errorf("blank name err = %v", err)
	}
}
