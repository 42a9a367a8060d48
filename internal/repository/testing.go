package repository

import (
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-git/go-billy/v6"
	"github.com/go-git/go-billy/v6/memfs"
)

// SetupTestFiles creates a FileRepository backed by an in-memory filesystem.
// The filesystem is returned so tests can inspect the written documents.
func SetupTestFiles(t testing.TB) (*FileRepository, billy.Filesystem) {
	t.Helper()
	fs := memfs.New()
	return NewFileRepository(fs), fs
}

// SetupTestSQLite creates a migrated in-memory SQLite repository
func SetupTestSQLite(t testing.TB) *SQLiteRepository {
	t.Helper()

	db, err := GetDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	repo := NewSQLiteRepository(db)
	t.Cleanup(func() { CleanupTestRepository(t, repo) })
	return repo
}

// SetupTestBadger creates an in-memory badger repository
func SetupTestBadger(t testing.TB) *BadgerRepository {
	t.Helper()

	repo, err := openBadger(badger.DefaultOptions("").WithInMemory(true))
	if err != nil {
		t.Fatalf("failed to open test badger store: %v", err)
	}
	t.Cleanup(func() { CleanupTestRepository(t, repo) })
	return repo
}

// CleanupTestRepository closes a test repository
func CleanupTestRepository(t testing.TB, repo interface{ Close() error }) {
	t.Helper()
	if err := repo.Close(); err != nil {
		t.Errorf("failed to close test repository: %v", err)
	}
}
