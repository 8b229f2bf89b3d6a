package services

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schema-drift-monitor/internal/dialect"
	"schema-drift-monitor/internal/models"
	"schema-drift-monitor/internal/store"
)

func TestSQLSessionColumnType(t *testing.T) {
	d := dialect.Postgres{}
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(d.ColumnTypeQuery()).WithArgs("orders", "qty").WillReturnRows(
		sqlmock.NewRows([]string{"data_type"}).AddRow("bigint"))
	mock.ExpectQuery(d.ColumnTypeQuery()).WithArgs("orders", "fax").WillReturnRows(
		sqlmock.NewRows([]string{"data_type"}))
	mock.ExpectRollback()

	sess, err := NewSQLSessionProvider(db, d).Begin(context.Background())
	require.NoError(t, err)

	typ, ok, err := sess.ColumnType(context.Background(), "orders", "qty")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "bigint", typ)

	_, ok, err = sess.ColumnType(context.Background(), "orders", "fax")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, sess.Rollback())
}

func TestReconcileThroughSQLSession(t *testing.T) {
	d := dialect.Postgres{}
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(d.ColumnTypeQuery()).WithArgs("orders", "legacy_flag").WillReturnRows(
		sqlmock.NewRows([]string{"data_type"}).AddRow("boolean"))
	mock.ExpectExec(`ALTER TABLE "orders" DROP COLUMN "legacy_flag"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(d.ColumnTypeQuery()).WithArgs("orders", "name").WillReturnRows(
		sqlmock.NewRows([]string{"data_type"}).AddRow("text"))
	mock.ExpectCommit()

	log := &fakeChangeLog{}
	r := NewReconciler(NewSQLSessionProvider(db, d), NewStatementBuilder(d), log, nil, nil)

	result, err := r.Reconcile(context.Background(), "orders", []models.Change{
		models.ColumnRemoved{ColumnName: "legacy_flag"},
		models.ColumnAdded{ColumnName: "name", DataType: "text", IsNullable: true},
	})

	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{Applied: 1, Skipped: 1}, result)
	assert.Equal(t, 1, log.phases(models.PhaseApplied))
}

func TestReconcileThroughSQLSessionRollsBackOnFailure(t *testing.T) {
	d := dialect.Postgres{}
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(d.ColumnTypeQuery()).WithArgs("orders", "amount").WillReturnRows(
		sqlmock.NewRows([]string{"data_type"}).AddRow("integer"))
	mock.ExpectExec(`ALTER TABLE "orders" ALTER COLUMN "amount" TYPE numeric`).
		WillReturnError(errors.New(`column "amount" cannot be cast automatically`))
	mock.ExpectRollback()

	r := NewReconciler(NewSQLSessionProvider(db, d), NewStatementBuilder(d), &fakeChangeLog{}, nil, nil)

	_, err := r.Reconcile(context.Background(), "orders", []models.Change{
		models.ColumnModified{ColumnName: "amount", OldType: "integer", NewType: "numeric"},
	})

	var applyErr *models.ApplyError
	require.True(t, errors.As(err, &applyErr))
	assert.Equal(t, `ALTER TABLE "orders" ALTER COLUMN "amount" TYPE numeric`, applyErr.Statement)
}

func newRegexpMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func TestAppliedEntryRollsBackWithFailedStatement(t *testing.T) {
	d := dialect.Postgres{}
	db, mock := newRegexpMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(d.ColumnTypeQuery())).WithArgs("orders", "amount").WillReturnRows(
		sqlmock.NewRows([]string{"data_type"}).AddRow("integer"))
	mock.ExpectQuery(`INSERT INTO schema_change_log .* RETURNING log_id`).WillReturnRows(
		sqlmock.NewRows([]string{"log_id"}).AddRow(int64(7)))
	mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE "orders" ALTER COLUMN "amount" TYPE numeric`)).
		WillReturnError(errors.New(`column "amount" cannot be cast automatically`))
	mock.ExpectRollback()

	pooled := &fakeChangeLog{}
	sessions := NewSQLSessionProvider(db, d).WithChangeLog(store.NewSQLStore(db, store.FlavorPostgres))
	r := NewReconciler(sessions, NewStatementBuilder(d), pooled, nil, nil)

	_, err := r.Reconcile(context.Background(), "orders", []models.Change{
		models.ColumnModified{ColumnName: "amount", OldType: "integer", NewType: "numeric"},
	})

	var applyErr *models.ApplyError
	require.True(t, errors.As(err, &applyErr))
	assert.Empty(t, pooled.entries)
}

func TestAppliedEntryCommitsWithStatement(t *testing.T) {
	d := dialect.Postgres{}
	db, mock := newRegexpMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(d.ColumnTypeQuery())).WithArgs("orders", "legacy_flag").WillReturnRows(
		sqlmock.NewRows([]string{"data_type"}).AddRow("boolean"))
	mock.ExpectQuery(`INSERT INTO schema_change_log .* RETURNING log_id`).WillReturnRows(
		sqlmock.NewRows([]string{"log_id"}).AddRow(int64(3)))
	mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE "orders" DROP COLUMN "legacy_flag"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	pooled := &fakeChangeLog{}
	sessions := NewSQLSessionProvider(db, d).WithChangeLog(store.NewSQLStore(db, store.FlavorPostgres))
	r := NewReconciler(sessions, NewStatementBuilder(d), pooled, nil, nil)

	result, err := r.Reconcile(context.Background(), "orders", []models.Change{
		models.ColumnRemoved{ColumnName: "legacy_flag"},
	})

	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{Applied: 1}, result)
	assert.Empty(t, pooled.entries)
}

func TestWithChangeLogNeedsSharedTransactionalDatabase(t *testing.T) {
	db, mock := newRegexpMockDB(t)
	other, _ := newRegexpMockDB(t)

	tests := []struct {
		name    string
		dialect dialect.Dialect
		log     store.TxChangeLog
		logging bool
	}{
		{name: "same postgres database", dialect: dialect.Postgres{}, log: store.NewSQLStore(db, store.FlavorPostgres), logging: true},
		{name: "mysql commits ddl implicitly", dialect: dialect.MySQL{}, log: store.NewSQLStore(db, store.FlavorMySQL)},
		{name: "store on another database", dialect: dialect.Postgres{}, log: store.NewSQLStore(other, store.FlavorPostgres)},
		{name: "no change log", dialect: dialect.Postgres{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock.ExpectBegin()
			mock.ExpectRollback()

			sess, err := NewSQLSessionProvider(db, tt.dialect).WithChangeLog(tt.log).Begin(context.Background())
			require.NoError(t, err)
			_, logging := sess.(LoggingSession)
			assert.Equal(t, tt.logging, logging)
			require.NoError(t, sess.Rollback())
		})
	}
}
