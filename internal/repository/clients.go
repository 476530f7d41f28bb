package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/jmehdipour/monozip/internal/model"
	"github.com/jmoiron/sqlx"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// ClientsRepository defines persistence for the clients table.
type ClientsRepository interface {
	List(ctx context.Context) ([]model.ClientRecord, error)
	Count(ctx context.Context) (int, error)
	GetByKeyForUpdate(ctx context.Context, tx *sqlx.Tx, key string) (*model.ClientRecord, error)
	Insert(ctx context.Context, tx *sqlx.Tx, c model.ClientRecord) (int64, error)
	InsertIgnore(ctx context.Context, tx *sqlx.Tx, c model.ClientRecord) (bool, error)
	Update(ctx context.Context, tx *sqlx.Tx, c model.ClientRecord) error
	Delete(ctx context.Context, tx *sqlx.Tx, key string) error
}

type ClientsRepositoryImpl struct {
	db *sqlx.DB
}

func NewClientsRepository(db *sqlx.DB) *ClientsRepositoryImpl {
	return &ClientsRepositoryImpl{db: db}
}

var _ ClientsRepository = (*ClientsRepositoryImpl)(nil)

// IsDuplicate reports whether err is a MySQL unique-key violation.
func IsDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

const clientColumns = `id, client_key, name, prefix, suffix_rule, version, created_at, updated_at`

func (r *ClientsRepositoryImpl) List(ctx context.Context) ([]model.ClientRecord, error) {
	var rows []model.ClientRecord
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT `+clientColumns+`
		  FROM clients
		 ORDER BY created_at, id
	`); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ClientsRepositoryImpl) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM clients`); err != nil {
		return 0, err
	}
	return n, nil
}

// GetByKeyForUpdate locks the row for the rest of tx. Returns nil, nil when absent.
func (r *ClientsRepositoryImpl) GetByKeyForUpdate(ctx context.Context, tx *sqlx.Tx, key string) (*model.ClientRecord, error) {
	var c model.ClientRecord
	err := tx.GetContext(ctx, &c, `
		SELECT `+clientColumns+`
		  FROM clients
		 WHERE client_key = ? LIMIT 1
		   FOR UPDATE
	`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Insert adds a client row and returns its id.
func (r *ClientsRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, c model.ClientRecord) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO clients
		    (client_key, name, prefix, suffix_rule, version, created_at, updated_at)
		VALUES
		    (?,          ?,    ?,      ?,           1,       ?,          ?)
	`, c.Key, c.Name, c.Prefix, c.SuffixRule, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// InsertIgnore inserts c unless a row with the same key or name exists.
func (r *ClientsRepositoryImpl) InsertIgnore(ctx context.Context, tx *sqlx.Tx, c model.ClientRecord) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT IGNORE INTO clients
		    (client_key, name, prefix, suffix_rule, version, created_at, updated_at)
		VALUES
		    (?,          ?,    ?,      ?,           1,       ?,          ?)
	`, c.Key, c.Name, c.Prefix, c.SuffixRule, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Update writes the mutable fields of c and bumps the version. The key is never changed.
func (r *ClientsRepositoryImpl) Update(ctx context.Context, tx *sqlx.Tx, c model.ClientRecord) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE clients
		   SET name = ?, prefix = ?, suffix_rule = ?, version = version + 1, updated_at = ?
		 WHERE client_key = ?
	`, c.Name, c.Prefix, c.SuffixRule, c.UpdatedAt, c.Key)
	return err
}

func (r *ClientsRepositoryImpl) Delete(ctx context.Context, tx *sqlx.Tx, key string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM clients WHERE client_key = ?`, key)
	return err
}
