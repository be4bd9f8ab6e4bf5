package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/uiua-boo/registry/internal/registry/domain"
)

// unitOfWork implements domain.UnitOfWork on a SQLite connection.
type unitOfWork struct {
	conn *sql.DB
}

var _ domain.UnitOfWork = (*unitOfWork)(nil)

func (u *unitOfWork) Begin() (domain.Tx, error) {
	tx, err := u.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &sqliteTx{tx: tx}, nil
}

// sqliteTx scopes the repositories to one database transaction. Readers
// outside the transaction never observe its writes before Commit.
type sqliteTx struct {
	tx *sql.Tx
}

var _ domain.Tx = (*sqliteTx)(nil)

func (t *sqliteTx) Packages() domain.PackageRepository {
	return newPackageRepository(t.tx)
}

func (t *sqliteTx) Versions() domain.VersionRepository {
	return newVersionRepository(t.tx)
}

func (t *sqliteTx) Files() domain.FileRepository {
	return newFileRepository(t.tx)
}

func (t *sqliteTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback after Commit is a no-op so callers can unconditionally roll
// back on their error paths.
func (t *sqliteTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}
