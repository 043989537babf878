package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	opTimeout = 5 * time.Second

	orderNumberConstraint = "uq_orders_order_number"
)

const orderColumns = `
	id, order_number, status,
	customer_first_name, customer_last_name, customer_phone,
	shipping_address, shipping_city, shipping_postal_code, shipping_country, shipping_additional_info,
	total_minor, payment_method, is_paid, payment_date, notes,
	version, created_at, updated_at`

// orderRepository пишет заказ, его строки и историю статусов одной
// транзакцией. В ту же транзакцию попадают outbox-сообщения и события
// таймлайна из OrderRecord.
type orderRepository struct {
	store *Store
	db    *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию TransactionalOrderRepository.
func NewOrderRepository(store *Store) domain.TransactionalOrderRepository {
	return &orderRepository{store: store, db: store.DB()}
}

func (r *orderRepository) Create(ctx context.Context, order domain.Order) error {
	return r.CreateRecord(ctx, domain.OrderRecord{Order: order})
}

func (r *orderRepository) CreateRecord(ctx context.Context, rec domain.OrderRecord) error {
	return r.store.inTx(ctx, "create order", func(ctx context.Context, tx *sql.Tx) error {
		if err := insertOrder(ctx, tx, rec.Order); err != nil {
			return err
		}
		return writeRecordExtras(ctx, tx, rec)
	})
}

func (r *orderRepository) Save(ctx context.Context, order domain.Order) error {
	return r.SaveRecord(ctx, domain.OrderRecord{Order: order})
}

func (r *orderRepository) SaveRecord(ctx context.Context, rec domain.OrderRecord) error {
	return r.store.inTx(ctx, "save order", func(ctx context.Context, tx *sql.Tx) error {
		if err := updateOrder(ctx, tx, rec.Order); err != nil {
			return err
		}
		return writeRecordExtras(ctx, tx, rec)
	})
}

func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	order, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.NotFoundError(domain.ErrOrderNotFound, "order", id)
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	if err := r.loadDetails(ctx, &order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (r *orderRepository) List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Status != "" {
		conds = append(conds, "status = "+arg(string(filter.Status)))
	}
	if !filter.CreatedAfter.IsZero() {
		conds = append(conds, "created_at >= "+arg(filter.CreatedAfter))
	}
	if !filter.CreatedBefore.IsZero() {
		conds = append(conds, "created_at < "+arg(filter.CreatedBefore))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, order_number DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	for i := range orders {
		if err := r.loadDetails(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *orderRepository) LastSequence(ctx context.Context, prefix string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	// Номер дополнен нулями до фиксированной ширины, поэтому лексикографический максимум совпадает с числовым.
	var number string
	err := r.db.QueryRowContext(ctx, `
		SELECT order_number
		FROM orders
		WHERE order_number LIKE $1 || '%'
		ORDER BY order_number DESC
		LIMIT 1
	`, prefix).Scan(&number)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("select last order number: %w", err)
	}

	seq, ok := domain.ParseOrderSequence(number, prefix)
	if !ok {
		return 0, nil
	}
	return seq, nil
}

func (r *orderRepository) loadDetails(ctx context.Context, order *domain.Order) error {
	lines, err := r.loadLines(ctx, order.ID)
	if err != nil {
		return err
	}
	history, err := r.loadHistory(ctx, order.ID)
	if err != nil {
		return err
	}
	order.Lines = lines
	order.History = history
	return nil
}

func (r *orderRepository) loadLines(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, product_name, quantity, unit_price_minor, total_minor,
		       picture, variant_id, color, size, sku
		FROM order_lines
		WHERE order_id = $1
		ORDER BY position ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order lines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.OrderLine, 0)
	for rows.Next() {
		var (
			line        domain.OrderLine
			color, size string
		)
		if err := rows.Scan(
			&line.ProductID, &line.ProductName, &line.Quantity, &line.UnitPriceMinor, &line.TotalMinor,
			&line.Picture, &line.VariantID, &color, &size, &line.SKU,
		); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		if line.VariantID != "" {
			line.Variant = &domain.VariantAttributes{Color: color, Size: size}
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order lines: %w", err)
	}

	return lines, nil
}

func (r *orderRepository) loadHistory(ctx context.Context, orderID string) ([]domain.StatusEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, at, comment
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY position ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load status history: %w", err)
	}
	defer rows.Close()

	history := make([]domain.StatusEntry, 0)
	for rows.Next() {
		var (
			entry  domain.StatusEntry
			status string
		)
		if err := rows.Scan(&status, &entry.At, &entry.Comment); err != nil {
			return nil, fmt.Errorf("scan status entry: %w", err)
		}
		entry.Status = domain.OrderStatus(status)
		history = append(history, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status history: %w", err)
	}

	return history, nil
}

func insertOrder(ctx context.Context, tx *sql.Tx, order domain.Order) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
	`,
		order.ID, order.Number, string(order.Status),
		order.Customer.FirstName, order.Customer.LastName, order.Customer.Phone,
		order.Shipping.Address, order.Shipping.City, order.Shipping.PostalCode,
		order.Shipping.Country, order.Shipping.AdditionalInfo,
		order.TotalMinor, string(order.PaymentMethod), order.IsPaid, nullTime(order.PaymentDate), order.Notes,
		order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			if constraint == orderNumberConstraint {
				return domain.ErrSequenceConflict
			}
			return domain.ErrOrderVersionConflict
		}
		return fmt.Errorf("insert order %s: %w", order.Number, err)
	}

	for i, line := range order.Lines {
		var color, size string
		if line.Variant != nil {
			color, size = line.Variant.Color, line.Variant.Size
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_lines (
				order_id, position, product_id, product_name, quantity,
				unit_price_minor, total_minor, picture, variant_id, color, size, sku
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		`,
			order.ID, i, line.ProductID, line.ProductName, line.Quantity,
			line.UnitPriceMinor, line.TotalMinor, line.Picture, line.VariantID, color, size, line.SKU,
		); err != nil {
			return fmt.Errorf("insert line %d of order %s: %w", i, order.Number, err)
		}
	}

	return insertHistory(ctx, tx, order.ID, order.History, 0)
}

// updateOrder применяет смену статуса при совпадении версии и дописывает
// новые записи истории.
func updateOrder(ctx context.Context, tx *sql.Tx, order domain.Order) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    is_paid = $2,
		    payment_date = $3,
		    notes = $4,
		    version = version + 1,
		    updated_at = $5
		WHERE id = $6
		  AND version = $7
	`,
		string(order.Status), order.IsPaid, nullTime(order.PaymentDate), order.Notes,
		order.UpdatedAt, order.ID, order.Version,
	)
	if err != nil {
		return fmt.Errorf("update order %s: %w", order.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		var id string
		switch err := tx.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, order.ID).Scan(&id); {
		case errors.Is(err, sql.ErrNoRows):
			return domain.NotFoundError(domain.ErrOrderNotFound, "order", order.ID)
		case err != nil:
			return fmt.Errorf("check order exists: %w", err)
		default:
			return domain.ErrOrderVersionConflict
		}
	}

	var stored int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM order_status_history WHERE order_id = $1`, order.ID).Scan(&stored); err != nil {
		return fmt.Errorf("count status history: %w", err)
	}
	if stored >= len(order.History) {
		return nil
	}
	return insertHistory(ctx, tx, order.ID, order.History[stored:], stored)
}

// writeRecordExtras пишет outbox и таймлайн записи в транзакции заказа.
func writeRecordExtras(ctx context.Context, tx *sql.Tx, rec domain.OrderRecord) error {
	if _, err := insertOutbox(ctx, tx, rec.Outbox...); err != nil {
		return err
	}
	return insertTimeline(ctx, tx, rec.Timeline...)
}

func insertHistory(ctx context.Context, tx *sql.Tx, orderID string, entries []domain.StatusEntry, offset int) error {
	for i, entry := range entries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_status_history (order_id, position, status, at, comment)
			VALUES ($1,$2,$3,$4,$5)
		`, orderID, offset+i, string(entry.Status), entry.At, entry.Comment); err != nil {
			return fmt.Errorf("insert status entry: %w", err)
		}
	}
	return nil
}

// rowScanner объединяет *sql.Row и *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order         domain.Order
		status        string
		paymentMethod string
		paymentDate   sql.NullTime
	)
	if err := row.Scan(
		&order.ID, &order.Number, &status,
		&order.Customer.FirstName, &order.Customer.LastName, &order.Customer.Phone,
		&order.Shipping.Address, &order.Shipping.City, &order.Shipping.PostalCode,
		&order.Shipping.Country, &order.Shipping.AdditionalInfo,
		&order.TotalMinor, &paymentMethod, &order.IsPaid, &paymentDate, &order.Notes,
		&order.Version, &order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		return domain.Order{}, err
	}
	order.Status = domain.OrderStatus(status)
	order.PaymentMethod = domain.PaymentMethod(paymentMethod)
	if paymentDate.Valid {
		order.PaymentDate = paymentDate.Time
	}
	return order, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// uniqueViolation сообщает о нарушении уникальности и имя ограничения.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName, true
	}
	return "", false
}

func isUniqueViolation(err error) bool {
	_, ok := uniqueViolation(err)
	return ok
}

var _ domain.TransactionalOrderRepository = (*orderRepository)(nil)
