package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/suite"

	"signup/internal/registration/models"
	id "signup/pkg/domain"
	"signup/pkg/platform/sentinel"
	txcontext "signup/pkg/platform/tx"
)

var userColumns = []string{"id", "username", "email", "password_hash", "first_name", "last_name", "is_active", "date_joined", "extra"}

type PostgresStoreSuite struct {
	suite.Suite
	ctx   context.Context
	now   time.Time
	mock  pgxmock.PgxPoolIface
	store *PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	s.Require().NoError(err)
	s.mock = mock
	s.ctx = context.Background()
	s.now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s.store = NewPostgres(mock)
}

func (s *PostgresStoreSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.mock.Close()
}

func (s *PostgresStoreSuite) TestCreate() {
	s.Run("returns generated id", func() {
		s.mock.ExpectQuery(`INSERT INTO users`).
			WithArgs("jane", "jane@example.org", "hash", "Jane", "", true, s.now, []byte(`{"nickname":"jd"}`)).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

		u := &models.User{
			Username: "jane", Email: "jane@example.org", PasswordHash: "hash", FirstName: "Jane",
			IsActive: true, DateJoined: s.now, Extra: map[string]any{"nickname": "jd"},
		}
		s.Require().NoError(s.store.Create(s.ctx, u))
		s.Equal(id.UserID(7), u.ID)
	})

	s.Run("unique violation maps to ErrAlreadyUsed", func() {
		s.mock.ExpectQuery(`INSERT INTO users`).
			WithArgs("jane", "jane@example.org", "hash", "", "", true, s.now, []byte(`{}`)).
			WillReturnError(&pgconn.PgError{Code: uniqueViolation, ConstraintName: "idx_users_username_lower"})

		err := s.store.Create(s.ctx, &models.User{
			Username: "jane", Email: "jane@example.org", PasswordHash: "hash", IsActive: true, DateJoined: s.now,
		})
		s.ErrorIs(err, sentinel.ErrAlreadyUsed)
		var conflict *models.ConflictError
		s.Require().ErrorAs(err, &conflict)
		s.Equal(models.FieldUsername, conflict.Field)
	})
}

func (s *PostgresStoreSuite) TestCreateGuardsUniqueIdentifierField() {
	store := NewPostgres(s.mock, WithUniqueField(models.FieldEmail))
	newUser := func() *models.User {
		return &models.User{Email: "jane@example.org", PasswordHash: "hash", IsActive: true, DateJoined: s.now}
	}

	s.Run("free value is locked, checked and inserted in one transaction", func() {
		s.mock.ExpectBegin()
		s.mock.ExpectExec(`SELECT pg_advisory_xact_lock\(hashtext\(\$1\), hashtext\(lower\(\$2\)\)\)`).
			WithArgs("email", "jane@example.org").
			WillReturnResult(pgxmock.NewResult("SELECT", 1))
		s.mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM users WHERE lower\("email"\) = lower\(\$1\)\)`).
			WithArgs("jane@example.org").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
		s.mock.ExpectQuery(`INSERT INTO users`).
			WithArgs("", "jane@example.org", "hash", "", "", true, s.now, []byte(`{}`)).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))
		s.mock.ExpectCommit()

		u := newUser()
		s.Require().NoError(store.Create(s.ctx, u))
		s.Equal(id.UserID(1), u.ID)
	})

	s.Run("taken value is refused without inserting", func() {
		s.mock.ExpectBegin()
		s.mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
			WithArgs("email", "jane@example.org").
			WillReturnResult(pgxmock.NewResult("SELECT", 1))
		s.mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("jane@example.org").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
		s.mock.ExpectRollback()

		u := newUser()
		err := store.Create(s.ctx, u)
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
		var conflict *models.ConflictError
		s.Require().ErrorAs(err, &conflict)
		s.Equal(models.FieldEmail, conflict.Field)
		s.True(u.ID.IsNil())
	})
}

func (s *PostgresStoreSuite) TestExists() {
	s.mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM users WHERE lower\("email"\) = lower\(\$1\)\)`).
		WithArgs("Jane@Example.org").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := s.store.Exists(s.ctx, "email", "Jane@Example.org")
	s.Require().NoError(err)
	s.True(exists)

	s.mock.ExpectQuery(`lower\(\(extra ->> 'nickname'\)\)`).
		WithArgs("jd").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	exists, err = s.store.Exists(s.ctx, "nickname", "jd")
	s.Require().NoError(err)
	s.False(exists)

	exists, err = s.store.Exists(s.ctx, "username", "")
	s.Require().NoError(err)
	s.False(exists, "empty values never hit the database")
}

func (s *PostgresStoreSuite) TestExistsQuotesHostileFieldNames() {
	s.mock.ExpectQuery(`extra ->> 'x''\) OR 1=1 --'`).
		WithArgs("v").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := s.store.Exists(s.ctx, "x') OR 1=1 --", "v")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestFindByIdentifier() {
	s.Run("found", func() {
		s.mock.ExpectQuery(`WHERE lower\("username"\) = lower\(\$1\) ORDER BY id LIMIT 1`).
			WithArgs("JANE").
			WillReturnRows(pgxmock.NewRows(userColumns).
				AddRow(int64(7), "jane", "jane@example.org", "hash", "Jane", "Doe", true, s.now, []byte(`{}`)))

		u, err := s.store.FindByIdentifier(s.ctx, "username", "JANE")
		s.Require().NoError(err)
		s.Equal(&models.User{
			ID: 7, Username: "jane", Email: "jane@example.org", PasswordHash: "hash",
			FirstName: "Jane", LastName: "Doe", IsActive: true, DateJoined: s.now,
		}, u)
	})

	s.Run("missing", func() {
		s.mock.ExpectQuery(`FROM users`).WithArgs("nobody").WillReturnError(pgx.ErrNoRows)

		_, err := s.store.FindByIdentifier(s.ctx, "username", "nobody")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("driver failure", func() {
		s.mock.ExpectQuery(`FROM users`).WithArgs(int64(3)).WillReturnError(errors.New("conn closed"))

		_, err := s.store.FindByID(s.ctx, 3)
		s.Error(err)
		s.NotErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *PostgresStoreSuite) TestSetUsername() {
	s.mock.ExpectExec(`UPDATE users SET username = \$2 WHERE id = \$1`).
		WithArgs(int64(7), "jane_example_org").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	s.NoError(s.store.SetUsername(s.ctx, 7, "jane_example_org"))

	s.mock.ExpectExec(`UPDATE users`).
		WithArgs(int64(8), "jane_example_org").
		WillReturnError(&pgconn.PgError{Code: uniqueViolation})
	s.ErrorIs(s.store.SetUsername(s.ctx, 8, "jane_example_org"), sentinel.ErrAlreadyUsed)

	s.mock.ExpectExec(`UPDATE users`).
		WithArgs(int64(99), "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	s.ErrorIs(s.store.SetUsername(s.ctx, 99, "ghost"), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestJoinsTransactionFromContext() {
	s.mock.ExpectBegin()
	s.mock.ExpectExec(`UPDATE users`).
		WithArgs(int64(7), "jane").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	s.mock.ExpectCommit()

	tx, err := s.mock.Begin(s.ctx)
	s.Require().NoError(err)
	ctx := txcontext.WithTx(s.ctx, tx)

	s.Require().NoError(s.store.SetUsername(ctx, 7, "jane"))
	s.Require().NoError(tx.Commit(s.ctx))
}
