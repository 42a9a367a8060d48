package repository

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lewtec/sinalizador/internal/domain"
)

// Backends lists the values accepted by Open
var Backends = []string{"json", "sqlite", "badger"}

// Open returns the repository for backend, keeping its files under dir:
// json writes dir/users.json and dir/annotations.json, sqlite uses
// dir/annotations.db and badger uses dir/badger.
func Open(backend, dir string) (domain.DatasetRepository, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("while creating outputs directory '%s': %w", dir, err)
	}
	var repo domain.DatasetRepository
	var err error
	switch backend {
	case "", "json":
		repo, err = OpenFileRepository(dir)
	case "sqlite":
		repo, err = OpenSQLiteRepository(filepath.Join(dir, "annotations.db"))
	case "badger":
		repo, err = OpenBadgerRepository(filepath.Join(dir, "badger"))
	default:
		return nil, fmt.Errorf("unknown storage backend '%s' (expected one of %v)", backend, Backends)
	}
	if err != nil {
		return nil, err
	}
	return repo, nil
}
