package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

type stubMigrator struct {
	upSteps   []int
	downSteps []int
	upErr     error
	downErr   error
	statusErr error
	closed    bool
}

func (s *stubMigrator) MigrateUp(_ context.Context, steps int) error {
	s.upSteps = append(s.upSteps, steps)
	return s.upErr
}

func (s *stubMigrator) MigrateDown(_ context.Context, steps int) error {
	s.downSteps = append(s.downSteps, steps)
	return s.downErr
}

func (s *stubMigrator) MigrationStatus(context.Context) (int64, int, error) {
	if s.statusErr != nil {
		return 0, 0, s.statusErr
	}
	return 7, 7, nil
}

func (s *stubMigrator) Close() error {
	s.closed = true
	return nil
}

func withStubMigrator(t *testing.T, stub *stubMigrator, openErr error) {
	t.Helper()
	old := openMigrator
	openMigrator = func(context.Context, string) (schemaMigrator, error) {
		if openErr != nil {
			return nil, openErr
		}
		return stub, nil
	}
	t.Cleanup(func() { openMigrator = old })
}

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestParseOptions(t *testing.T) {
	t.Setenv("STOREFRONT_POSTGRES_DSN", "postgres://env")

	opts, err := parseOptions(newFlagSet(), []string{"-direction= DOWN ", "-steps=2", "-timeout=5s"})
	if err != nil {
		t.Fatalf("parseOptions failed: %v", err)
	}
	if opts.direction != "down" || opts.steps != 2 || opts.dsn != "postgres://env" || opts.timeout != 5*time.Second {
		t.Fatalf("unexpected options: %+v", opts)
	}

	opts, err = parseOptions(newFlagSet(), []string{"-dsn=postgres://flag"})
	if err != nil {
		t.Fatalf("parseOptions failed: %v", err)
	}
	if opts.dsn != "postgres://flag" || opts.direction != "up" {
		t.Fatalf("flag dsn must win over env: %+v", opts)
	}
}

func TestParseOptions_Errors(t *testing.T) {
	t.Setenv("STOREFRONT_POSTGRES_DSN", "")

	tests := []struct {
		args []string
		want string
	}{
		{args: []string{"-direction=status"}, want: "STOREFRONT_POSTGRES_DSN"},
		{args: []string{"-dsn=x", "-direction=sideways"}, want: "unsupported direction"},
		{args: []string{"-dsn=x", "-steps=-1"}, want: "steps must be >= 0"},
		{args: []string{"-dsn=x", "-timeout=0s"}, want: "timeout must be > 0"},
		{args: []string{"-unknown"}, want: "flag provided but not defined"},
	}
	for _, tc := range tests {
		_, err := parseOptions(newFlagSet(), tc.args)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("args %v: expected %q error, got %v", tc.args, tc.want, err)
		}
	}
}

func TestRun_Directions(t *testing.T) {
	tests := []struct {
		name      string
		opts      options
		wantUp    []int
		wantDown  []int
		wantLabel string
	}{
		{name: "up all", opts: options{direction: "up"}, wantUp: []int{0}, wantLabel: "migrate up ok"},
		{name: "down defaults to one step", opts: options{direction: "down"}, wantDown: []int{1}, wantLabel: "migrate down ok"},
		{name: "down steps", opts: options{direction: "down", steps: 3}, wantDown: []int{3}, wantLabel: "migrate down ok"},
		{name: "status", opts: options{direction: "status"}, wantLabel: "migration status"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			stub := &stubMigrator{}
			withStubMigrator(t, stub, nil)

			tc.opts.dsn = "postgres://stub"
			tc.opts.timeout = time.Second
			var out bytes.Buffer
			if err := run(context.Background(), tc.opts, &out); err != nil {
				t.Fatalf("run failed: %v", err)
			}
			if len(stub.upSteps) != len(tc.wantUp) || (len(tc.wantUp) > 0 && stub.upSteps[0] != tc.wantUp[0]) {
				t.Fatalf("unexpected up calls: %v", stub.upSteps)
			}
			if len(stub.downSteps) != len(tc.wantDown) || (len(tc.wantDown) > 0 && stub.downSteps[0] != tc.wantDown[0]) {
				t.Fatalf("unexpected down calls: %v", stub.downSteps)
			}
			if want := tc.wantLabel + ": version=7 applied=7\n"; out.String() != want {
				t.Fatalf("unexpected output %q, want %q", out.String(), want)
			}
			if !stub.closed {
				t.Fatal("store must be closed")
			}
		})
	}
}

func TestRun_Errors(t *testing.T) {
	opts := options{direction: "up", dsn: "postgres://stub", timeout: time.Second}

	withStubMigrator(t, nil, errors.New("refused"))
	if err := run(context.Background(), opts, io.Discard); err == nil || !strings.Contains(err.Error(), "open postgres store") {
		t.Fatalf("expected open error, got %v", err)
	}

	withStubMigrator(t, &stubMigrator{upErr: errors.New("boom")}, nil)
	if err := run(context.Background(), opts, io.Discard); err == nil || !strings.Contains(err.Error(), "migrate up failed") {
		t.Fatalf("expected up error, got %v", err)
	}

	opts.direction = "down"
	withStubMigrator(t, &stubMigrator{downErr: errors.New("boom")}, nil)
	if err := run(context.Background(), opts, io.Discard); err == nil || !strings.Contains(err.Error(), "migrate down failed") {
		t.Fatalf("expected down error, got %v", err)
	}

	opts.direction = "status"
	withStubMigrator(t, &stubMigrator{statusErr: errors.New("boom")}, nil)
	if err := run(context.Background(), opts, io.Discard); err == nil || !strings.Contains(err.Error(), "migration status failed") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestRun_RealPostgres(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("STOREFRONT_POSTGRES_TEST_DSN"))
	if dsn == "" {
		t.Skip("STOREFRONT_POSTGRES_TEST_DSN is not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	store, err := postgres.Open(ctx, dsn)
	cancel()
	if err != nil {
		t.Skipf("postgres is not available: %v", err)
	}
	_ = store.Close()

	for _, direction := range []string{"status", "up", "down", "up"} {
		opts := options{direction: direction, steps: 0, dsn: dsn, timeout: 30 * time.Second}
		if err := run(context.Background(), opts, io.Discard); err != nil {
			t.Fatalf("%s failed: %v", direction, err)
		}
	}
}

func TestMainMissingDSNExits(t *testing.T) {
	if os.Getenv("MIGRATE_TEST_EXIT") == "1" {
		_ = os.Unsetenv("STOREFRONT_POSTGRES_DSN")
		os.Args = []string{"migrate", "-direction=status", "-dsn="}
		flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)
		main()
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestMainMissingDSNExits")
	cmd.Env = append(os.Environ(), "MIGRATE_TEST_EXIT=1")
	err := cmd.Run()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() == 0 {
		t.Fatalf("expected non-zero exit code, got %v", err)
	}
}

func TestFailExits(t *testing.T) {
	if os.Getenv("MIGRATE_TEST_FAIL_EXIT") == "1" {
		fail("forced failure %d", 42)
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestFailExits")
	cmd.Env = append(os.Environ(), "MIGRATE_TEST_FAIL_EXIT=1")
	err := cmd.Run()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() == 0 {
		t.Fatalf("expected non-zero exit code, got %v", err)
	}
}
