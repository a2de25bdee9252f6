package migration

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	// Blank imports register the database drivers used by the client and the server.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Migrator is the subset of migrate.Migrate used here.
type Migrator interface {
	Up() error
	Close() (error, error)
}

// MigrationEngine builds a Migrator. Tests swap it to avoid touching a real database.
type MigrationEngine func(src source.Driver, databaseURL string) (Migrator, error)

// Migration applies embedded SQL migrations to one database.
type Migration struct {
	fsys        fs.FS
	dir         string
	databaseURL string
	engine      MigrationEngine
}

// NewMigration reads migrations from dir inside fsys. A nil engine means DefaultEngine.
func NewMigration(fsys fs.FS, dir, databaseURL string, engine MigrationEngine) *Migration {
	if engine == nil {
		engine = DefaultEngine
	}
	return &Migration{
		fsys:        fsys,
		dir:         dir,
		databaseURL: databaseURL,
		engine:      engine,
	}
}

// DefaultEngine opens its own connection through golang-migrate.
func DefaultEngine(src source.Driver, databaseURL string) (Migrator, error) {
	return migrate.NewWithSourceInstance("iofs", src, databaseURL)
}

func (mg *Migration) Up() (err error) {
	src, err := iofs.New(mg.fsys, mg.dir)
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}

	m, err := mg.engine(src, mg.databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		serr, dberr := m.Close()
		if serr != nil {
			if err != nil {
				err = fmt.Errorf("%w; migration source error: %v", err, serr)
			} else {
				err = serr
			}
		}
		if dberr != nil {
			if err != nil {
				err = fmt.Errorf("%w; migration database error: %v", err, dberr)
			} else {
				err = dberr
			}
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up: %w", err)
	}
	return nil
}
