package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"schema-drift-monitor/internal/dialect"
	"schema-drift-monitor/internal/models"
	"schema-drift-monitor/internal/store"
)

// Session is one all-or-nothing unit of work against the live schema.
type Session interface {
	// ColumnType returns the live data_type of a column and whether it exists.
	ColumnType(ctx context.Context, tableName, column string) (string, bool, error)
	Exec(ctx context.Context, stmt Statement) error
	Commit() error
	Rollback() error
}

// LoggingSession is a Session that records change-log entries inside its own
// unit of work, so an entry is kept only if the session commits.
type LoggingSession interface {
	Session
	AppendChange(ctx context.Context, entry *models.ChangeLogEntry) (int64, error)
}

// SessionProvider opens sessions. Its lifecycle belongs to the caller.
type SessionProvider interface {
	Begin(ctx context.Context) (Session, error)
}

// SQLSessionProvider opens database/sql transactions. DDL is transactional
// on Postgres; MySQL commits each ALTER implicitly.
type SQLSessionProvider struct {
	db        *sql.DB
	dialect   dialect.Dialect
	changeLog store.TxChangeLog
}

func NewSQLSessionProvider(db *sql.DB, d dialect.Dialect) *SQLSessionProvider {
	return &SQLSessionProvider{db: db, dialect: d}
}

// WithChangeLog makes sessions write change-log entries through their own
// transaction. It only applies when the change log writes to the same
// database and the dialect runs DDL inside transactions; otherwise the
// provider is returned unchanged.
func (p *SQLSessionProvider) WithChangeLog(changeLog store.TxChangeLog) *SQLSessionProvider {
	if changeLog == nil || !changeLog.Shares(p.db) || !p.dialect.TransactionalDDL() {
		return p
	}
	return &SQLSessionProvider{db: p.db, dialect: p.dialect, changeLog: changeLog}
}

func (p *SQLSessionProvider) Begin(ctx context.Context) (Session, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	sess := &sqlSession{tx: tx, dialect: p.dialect}
	if p.changeLog != nil {
		return &loggingSQLSession{sqlSession: sess, changeLog: p.changeLog}, nil
	}
	return sess, nil
}

type sqlSession struct {
	tx      *sql.Tx
	dialect dialect.Dialect
}

func (s *sqlSession) ColumnType(ctx context.Context, tableName, column string) (string, bool, error) {
	var dataType string
	err := s.tx.QueryRowContext(ctx, s.dialect.ColumnTypeQuery(), tableName, column).Scan(&dataType)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get type of %s.%s: %w", tableName, column, err)
	}
	return dataType, true, nil
}

func (s *sqlSession) Exec(ctx context.Context, stmt Statement) error {
	_, err := s.tx.ExecContext(ctx, stmt.SQL)
	return err
}

func (s *sqlSession) Commit() error   { return s.tx.Commit() }
func (s *sqlSession) Rollback() error { return s.tx.Rollback() }

type loggingSQLSession struct {
	*sqlSession
	changeLog store.TxChangeLog
}

func (s *loggingSQLSession) AppendChange(ctx context.Context, entry *models.ChangeLogEntry) (int64, error) {
	return s.changeLog.AppendTx(ctx, s.tx, entry)
}
