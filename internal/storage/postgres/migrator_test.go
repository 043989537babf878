package postgres

import (
	"slices"
	"strings"
	"testing"
	"testing/fstest"
)

func TestLoadMigrationsFromFS_Success(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"sql/migrations/0001_init.up.sql": {
			Data: []byte("CREATE TABLE test_a (id INT);"),
		},
		"sql/migrations/0001_init.down.sql": {
			Data: []byte("DROP TABLE IF EXISTS test_a;"),
		},
		"sql/migrations/0002_more.up.sql": {
			Data: []byte("CREATE TABLE test_b (id INT);"),
		},
		"sql/migrations/0002_more.down.sql": {
			Data: []byte("DROP TABLE IF EXISTS test_b;"),
		},
	}

	migrations, err := loadMigrationsFromFS(fsys)
	if err != nil {
		t.Fatalf("loadMigrationsFromFS failed: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}

	if migrations[0].Version != 1 || migrations[0].Name != "init" {
		t.Fatalf("unexpected first migration: %+v", migrations[0])
	}
	if migrations[1].Version != 2 || migrations[1].Name != "more" {
		t.Fatalf("unexpected second migration: %+v", migrations[1])
	}
}

func TestLoadMigrationsFromFS_MissingDown(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"sql/migrations/0001_init.up.sql": {
			Data: []byte("CREATE TABLE test_a (id INT);"),
		},
	}

	_, err := loadMigrationsFromFS(fsys)
	if err == nil {
		t.Fatal("expected error for missing down migration")
	}
	if !strings.Contains(err.Error(), "both up and down") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadMigrationsFromFS_InvalidFilename(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"sql/migrations/not_a_migration.sql": {
			Data: []byte("SELECT 1;"),
		},
	}

	_, err := loadMigrationsFromFS(fsys)
	if err == nil {
		t.Fatal("expected error for invalid migration file name")
	}
}

func TestLoadMigrationsFromFS_EmptyFile(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"sql/migrations/0001_init.up.sql": {
			Data: []byte("   \n"),
		},
		"sql/migrations/0001_init.down.sql": {
			Data: []byte("DROP TABLE IF EXISTS test;"),
		},
	}

	_, err := loadMigrationsFromFS(fsys)
	if err == nil {
		t.Fatal("expected error for empty migration file body")
	}
}

func TestLoadMigrationsFromFS_NameMismatch(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"sql/migrations/0001_init.up.sql":    {Data: []byte("CREATE TABLE a (id INT);")},
		"sql/migrations/0001_other.down.sql": {Data: []byte("DROP TABLE a;")},
	}

	if _, err := loadMigrationsFromFS(fsys); err == nil {
		t.Fatal("expected error for up/down name mismatch")
	}
}

func TestEmbeddedMigrations_LatestVersion(t *testing.T) {
	t.Parallel()

	all, err := loadMigrationsFromFS(migrationsFS)
	if err != nil {
		t.Fatalf("load embedded migrations: %v", err)
	}
	latest, err := latestMigrationVersion(migrationsFS)
	if err != nil {
		t.Fatalf("latestMigrationVersion failed: %v", err)
	}
	if latest != 4 || all[len(all)-1].Version != latest {
		t.Fatalf("unexpected latest version %d for %v", latest, all)
	}
	if all[0].String() != "0001_catalog" {
		t.Fatalf("unexpected first migration: %s", all[0])
	}
}

func TestPlanUp(t *testing.T) {
	t.Parallel()

	all := []migration{{Version: 1, Name: "a"}, {Version: 2, Name: "b"}, {Version: 3, Name: "c"}}

	tests := []struct {
		name    string
		applied []int64
		steps   int
		want    []int64
	}{
		{name: "fresh database applies all", want: []int64{1, 2, 3}},
		{name: "steps limit the plan", steps: 2, want: []int64{1, 2}},
		{name: "applied versions are skipped", applied: []int64{1, 3}, want: []int64{2}},
		{name: "up to date", applied: []int64{1, 2, 3}},
		{name: "unknown applied version is ignored", applied: []int64{1, 2, 3, 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := versionsOf(planUp(all, tt.applied, tt.steps))
			if !slices.Equal(got, tt.want) {
				t.Fatalf("planUp = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPlanDown(t *testing.T) {
	t.Parallel()

	all := []migration{{Version: 1, Name: "a"}, {Version: 2, Name: "b"}, {Version: 3, Name: "c"}}

	tests := []struct {
		name    string
		applied []int64
		steps   int
		want    []int64
		wantErr bool
	}{
		{name: "default is one step", applied: []int64{1, 2, 3}, want: []int64{3}},
		{name: "newest first", applied: []int64{1, 2, 3}, steps: 2, want: []int64{3, 2}},
		{name: "steps beyond applied", applied: []int64{1}, steps: 5, want: []int64{1}},
		{name: "nothing applied"},
		{name: "unknown version", applied: []int64{1, 7}, steps: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			plan, err := planDown(all, tt.applied, tt.steps)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got plan %v", versionsOf(plan))
				}
				return
			}
			if err != nil {
				t.Fatalf("planDown failed: %v", err)
			}
			if got := versionsOf(plan); !slices.Equal(got, tt.want) {
				t.Fatalf("planDown = %v, want %v", got, tt.want)
			}
		})
	}
}

func versionsOf(plan []migration) []int64 {
	out := make([]int64, 0, len(plan))
	for _, m := range plan {
		out = append(out, m.Version)
	}
	return out
}
