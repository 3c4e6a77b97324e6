package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"signup/internal/registration/models"
	id "signup/pkg/domain"
	"signup/pkg/platform/sentinel"
	txcontext "signup/pkg/platform/tx"
)

const uniqueViolation = "23505"

// constraintFields maps unique indexes to the field they guard.
var constraintFields = map[string]string{
	"idx_users_username_lower": models.FieldUsername,
}

// columns are the user fields with a dedicated column. Any other field is
// read from the extra JSONB document.
var columns = map[string]bool{
	models.FieldUsername:  true,
	models.FieldEmail:     true,
	models.FieldFirstName: true,
	models.FieldLastName:  true,
}

const selectUser = `
	SELECT id, COALESCE(username, ''), email, password_hash, first_name,
	       last_name, is_active, date_joined, extra
	FROM users`

type querier interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists users in PostgreSQL. Calls made with a
// transaction in context (pkg/platform/tx) run inside it.
//
// Username uniqueness is a database index. Fields added with
// WithUniqueField are checked under a transaction-scoped advisory lock on
// the lowercased value, so concurrent creates for the same value
// serialize without a unique index that would also bind deployments
// identifying users by another field.
type PostgresStore struct {
	db      querier
	guarded []string
}

// NewPostgres accepts a *pgxpool.Pool or anything with the same query
// methods.
func NewPostgres(db querier, opts ...Option) *PostgresStore {
	o := applyOptions(opts)
	return &PostgresStore{db: db, guarded: o.unique}
}

func (s *PostgresStore) conn(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// fieldExpr returns the SQL expression holding field.
func fieldExpr(field string) string {
	if columns[field] {
		return pq.QuoteIdentifier(field)
	}
	return "(extra ->> " + pq.QuoteLiteral(field) + ")"
}

// Create inserts user and sets its ID. A collision on a unique field
// returns a *models.ConflictError naming it.
func (s *PostgresStore) Create(ctx context.Context, user *models.User) error {
	extra, err := marshalExtra(user.Extra)
	if err != nil {
		return err
	}
	if len(s.guarded) == 0 {
		return s.insert(ctx, s.conn(ctx), user, extra)
	}

	// Inside an outer transaction this is a savepoint and the advisory
	// locks are held until the outer transaction ends.
	tx, err := s.conn(ctx).Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create user: %w", err)
	}
	if err := s.guardedInsert(ctx, tx, user, extra); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) guardedInsert(ctx context.Context, tx pgx.Tx, user *models.User, extra []byte) error {
	for _, field := range s.guarded {
		value := user.Identifier(field)
		if value == "" {
			continue
		}
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1), hashtext(lower($2)))`, field, value); err != nil {
			return fmt.Errorf("lock %s: %w", field, err)
		}
		var taken bool
		if err := tx.QueryRow(ctx, existsQuery(field), value).Scan(&taken); err != nil {
			return fmt.Errorf("check %s: %w", field, err)
		}
		if taken {
			return &models.ConflictError{Field: field}
		}
	}
	return s.insert(ctx, tx, user, extra)
}

func (s *PostgresStore) insert(ctx context.Context, q querier, user *models.User, extra []byte) error {
	var userID int64
	err := q.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, first_name, last_name, is_active, date_joined, extra)
		VALUES (NULLIF($1, ''), $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.IsActive,
		user.DateJoined,
		extra,
	).Scan(&userID)
	if err != nil {
		if conflict := asConflict(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	user.ID = id.UserID(userID)
	return nil
}

func (s *PostgresStore) Exists(ctx context.Context, field, value string) (bool, error) {
	if value == "" {
		return false, nil
	}
	var exists bool
	if err := s.conn(ctx).QueryRow(ctx, existsQuery(field), value).Scan(&exists); err != nil {
		return false, fmt.Errorf("check %s: %w", field, err)
	}
	return exists, nil
}

// FindByIdentifier returns the oldest user whose field matches value,
// ignoring case.
func (s *PostgresStore) FindByIdentifier(ctx context.Context, field, value string) (*models.User, error) {
	if value == "" {
		return nil, sentinel.ErrNotFound
	}
	query := fmt.Sprintf(`%s WHERE lower(%s) = lower($1) ORDER BY id LIMIT 1`, selectUser, fieldExpr(field))
	return s.scanOne(s.conn(ctx).QueryRow(ctx, query, value))
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	return s.scanOne(s.conn(ctx).QueryRow(ctx, selectUser+` WHERE id = $1`, int64(userID)))
}

func (s *PostgresStore) SetUsername(ctx context.Context, userID id.UserID, username string) error {
	tag, err := s.conn(ctx).Exec(ctx, `UPDATE users SET username = $2 WHERE id = $1`, int64(userID), username)
	if err != nil {
		if conflict := asConflict(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("set username: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.conn(ctx).QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) scanOne(row pgx.Row) (*models.User, error) {
	var (
		userID     int64
		u          models.User
		dateJoined time.Time
		extra      []byte
	)
	err := row.Scan(&userID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName,
		&u.LastName, &u.IsActive, &dateJoined, &extra)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.ID = id.UserID(userID)
	u.DateJoined = dateJoined.UTC()
	if len(extra) > 0 {
		if err := json.Unmarshal(extra, &u.Extra); err != nil {
			return nil, fmt.Errorf("decode user extra: %w", err)
		}
		if len(u.Extra) == 0 {
			u.Extra = nil
		}
	}
	return &u, nil
}

func marshalExtra(extra map[string]any) ([]byte, error) {
	if len(extra) == 0 {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(extra)
	if err != nil {
		return nil, fmt.Errorf("encode user extra: %w", err)
	}
	return b, nil
}

func existsQuery(field string) string {
	return fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM users WHERE lower(%s) = lower($1))`, fieldExpr(field))
}

// asConflict converts a unique violation into a ConflictError. The field
// is empty when the violated index is not known.
func asConflict(err error) *models.ConflictError {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return nil
	}
	return &models.ConflictError{Field: constraintFields[pgErr.ConstraintName]}
}
