package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodorders/internal/domain"
)

const (
	defaultOpTimeout = 5 * time.Second

	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgUniqueViolation     = "23505"
)

// OrderStoreOption настраивает реляционное хранилище заказов.
type OrderStoreOption func(*orderStore)

// WithLogger задаёт logger хранилища.
func WithLogger(logger *log.Entry) OrderStoreOption {
	return func(s *orderStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithOpTimeout ограничивает время одной операции с базой.
func WithOpTimeout(timeout time.Duration) OrderStoreOption {
	return func(s *orderStore) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

type orderStore struct {
	db      *sql.DB
	scope   *TxScope
	logger  *log.Entry
	timeout time.Duration
}

// NewOrderStore создаёт PostgreSQL-реализацию OrderStore над таблицами orders и order_lines.
func NewOrderStore(store *Store, opts ...OrderStoreOption) domain.OrderStore {
	s := &orderStore{
		db:      store.DB(),
		logger:  log.WithField("component", "postgres-order-store"),
		timeout: defaultOpTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.scope = NewTxScope(s.db, s.logger)
	return s
}

// Create вставляет заголовок и позиции в одной транзакции. Позиции вставляются
// строго после заголовка, так как ссылаются на его идентификатор.
func (s *orderStore) Create(ctx context.Context, in domain.NewOrder) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	order, err := executeWithResult(ctx, s.scope, nil, func(ctx context.Context, tx *sql.Tx) (domain.Order, error) {
		order := domain.Order{
			UserID:       in.UserID,
			RestaurantID: in.RestaurantID,
			Status:       in.Status,
			Type:         in.Type,
			Lines:        make([]domain.OrderLine, 0, len(in.Lines)),
		}

		if err := tx.QueryRowContext(ctx, `
			INSERT INTO orders (user_id, restaurant_id, status, type)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at
		`, in.UserID, in.RestaurantID, string(in.Status), string(in.Type)).Scan(&order.ID, &order.CreatedAt); err != nil {
			return domain.Order{}, fmt.Errorf("insert order: %w", err)
		}
		order.CreatedAt = order.CreatedAt.UTC()

		for i, line := range in.Lines {
			stored := domain.OrderLine{
				OrderID:   order.ID,
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
			}
			// subtotal из RETURNING совпадает с тем, что вернёт FindByID.
			if err := tx.QueryRowContext(ctx, `
				INSERT INTO order_lines (order_id, product_id, quantity, subtotal)
				VALUES ($1, $2, $3, $4)
				RETURNING id, subtotal
			`, order.ID, line.ProductID, line.Quantity, line.Subtotal).Scan(&stored.ID, &stored.Subtotal); err != nil {
				return domain.Order{}, fmt.Errorf("insert order line %d: %w", i, err)
			}
			order.Lines = append(order.Lines, stored)
		}

		return order, nil
	})
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"user_id":       in.UserID,
			"restaurant_id": in.RestaurantID,
			"lines":         len(in.Lines),
			"pg_code":       pgErrorCode(err),
			"constraint":    isConstraintViolation(err),
		}).Warn("create order rolled back")
		return domain.Order{}, domain.NewPersistenceError("create order", err)
	}

	return order, nil
}

// ListAll читает только заголовки заказов, без позиций. Для обзорного списка
// этого достаточно; позиции возвращает FindByID.
func (s *orderStore) ListAll(ctx context.Context) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, restaurant_id, status, type, created_at
		FROM orders
	`)
	if err != nil {
		return nil, domain.NewPersistenceError("list orders", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrderHeader(rows)
		if err != nil {
			return nil, domain.NewPersistenceError("list orders", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewPersistenceError("list orders", fmt.Errorf("iterate order rows: %w", err))
	}

	return orders, nil
}

// FindByID читает заголовок, затем позиции; обе выборки идут в одном read-only
// снимке. Если заголовка нет, позиции не читаются.
func (s *orderStore) FindByID(ctx context.Context, id int64) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	order, err := executeWithResult(ctx, s.scope, opts, func(ctx context.Context, tx *sql.Tx) (domain.Order, error) {
		order, err := scanOrderHeader(tx.QueryRowContext(ctx, `
			SELECT id, user_id, restaurant_id, status, type, created_at
			FROM orders
			WHERE id = $1
		`, id))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.Order{}, domain.ErrOrderNotFound
			}
			return domain.Order{}, err
		}

		lines, err := loadLines(ctx, tx, id)
		if err != nil {
			return domain.Order{}, err
		}
		order.Lines = lines
		return order, nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, domain.NewPersistenceError("find order", err)
	}

	return order, nil
}

// DeleteByID удаляет заголовок; позиции удаляет ON DELETE CASCADE.
func (s *orderStore) DeleteByID(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return false, domain.NewPersistenceError("delete order", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, domain.NewPersistenceError("delete order", fmt.Errorf("rows affected: %w", err))
	}
	return affected > 0, nil
}

func (s *orderStore) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrderHeader(row rowScanner) (domain.Order, error) {
	var (
		order       domain.Order
		status, typ string
	)
	if err := row.Scan(&order.ID, &order.UserID, &order.RestaurantID, &status, &typ, &order.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, err
		}
		return domain.Order{}, fmt.Errorf("scan order header: %w", err)
	}
	order.Status = domain.OrderStatus(status)
	order.Type = domain.OrderType(typ)
	order.CreatedAt = order.CreatedAt.UTC()
	return order, nil
}

func loadLines(ctx context.Context, tx *sql.Tx, orderID int64) ([]domain.OrderLine, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, subtotal
		FROM order_lines
		WHERE order_id = $1
		ORDER BY id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order lines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.OrderLine, 0)
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.ID, &line.OrderID, &line.ProductID, &line.Quantity, &line.Subtotal); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order lines: %w", err)
	}
	return lines, nil
}

// pgErrorCode возвращает SQLSTATE ошибки PostgreSQL или пустую строку.
func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isConstraintViolation сообщает, что запись отклонена ограничением схемы
// (внешний ключ на товар, CHECK на количество и subtotal, уникальность).
func isConstraintViolation(err error) bool {
	switch pgErrorCode(err) {
	case pgForeignKeyViolation, pgCheckViolation, pgUniqueViolation:
		return true
	}
	return false
}

var _ domain.OrderStore = (*orderStore)(nil)
