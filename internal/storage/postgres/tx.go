package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// TxScope выполняет функцию в транзакции на выделенном соединении пула.
//
// Гарантии на любом пути выхода (успех, ошибка fn, ошибка commit, ошибка rollback, panic):
// соединение возвращается в пул; при ошибке транзакция откатывается; сбой отката
// или освобождения соединения логируется и не подменяет исходную ошибку.
type TxScope struct {
	db     *sql.DB
	logger *log.Entry
}

// NewTxScope создаёт scope поверх пула.
func NewTxScope(db *sql.DB, logger *log.Entry) *TxScope {
	if logger == nil {
		logger = log.WithField("component", "postgres-tx")
	}
	return &TxScope{db: db, logger: logger}
}

// Execute открывает транзакцию с опциями opts (nil — по умолчанию), выполняет fn,
// фиксирует при nil-ошибке и откатывает в остальных случаях.
func (s *TxScope) Execute(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx *sql.Tx) error) (err error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil && !errors.Is(closeErr, sql.ErrConnDone) {
			s.logger.WithError(closeErr).Warn("failed to release connection")
		}
	}()

	tx, err := conn.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.WithError(rbErr).Warn("rollback failed")
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}

	committed = true
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// executeWithResult вызывает Execute для fn, возвращающей значение.
func executeWithResult[T any](ctx context.Context, scope *TxScope, opts *sql.TxOptions, fn func(ctx context.Context, tx *sql.Tx) (T, error)) (T, error) {
	var result T
	err := scope.Execute(ctx, opts, func(ctx context.Context, tx *sql.Tx) error {
		var fnErr error
		result, fnErr = fn(ctx, tx)
		return fnErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
