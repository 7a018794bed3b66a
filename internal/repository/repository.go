// Пакет repository — реестр метаданных файлов в PostgreSQL.
// Единственная таблица file_meta, все запросы — чистый SQL через pgx,
// без ORM. record_meta хранится как JSONB и обновляется целиком.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ошибки реестра метаданных.
var (
	// ErrNotFound — запись о файле не найдена.
	ErrNotFound = errors.New("запись о файле не найдена")
	// ErrConflict — запись с таким идентификатором уже существует.
	ErrConflict = errors.New("запись о файле уже существует")
)

// DBTX — минимальный интерфейс выполнения SQL-запросов.
// Ему удовлетворяют и *pgxpool.Pool, и pgx.Tx, поэтому методы чтения
// одинаково работают из пула и внутри транзакции обновления метаданных.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxRunner выполняет операции реестра в транзакции.
// Используется обновлением record_meta: строка берётся под
// SELECT ... FOR UPDATE, чтобы конкурирующие PUT не теряли
// инкремент metadata_version.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner создаёт TxRunner поверх пула подключений.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunInTx выполняет fn внутри транзакции: ошибка fn откатывает
// транзакцию, успех — коммитит.
func (r *TxRunner) RunInTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("начало транзакции: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // откат после коммита — no-op

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// isUniqueViolation — нарушение уникальности PostgreSQL (23505).
// Для file_meta это повторная вставка записи с тем же id.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
