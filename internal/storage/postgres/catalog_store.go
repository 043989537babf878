package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const productColumns = `
	id, shape, name, description, company_id, category_ids, pictures, main_picture,
	base_price_minor, discount_price_minor, discount_expires_at, quantity,
	available_colors, available_sizes, version, created_at, updated_at`

// CatalogStore хранит карточки товаров и остатки в PostgreSQL. Списание
// выполняется условным UPDATE с проверкой остатка, повторы отсекаются
// таблицей stock_movements.
type CatalogStore struct {
	store *Store
	db    *sql.DB
	now   func() time.Time
}

// NewCatalogStore создаёт PostgreSQL-реализацию ProductRepository и StockLedger.
func NewCatalogStore(store *Store) *CatalogStore {
	return &CatalogStore{
		store: store,
		db:    store.DB(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *CatalogStore) Create(ctx context.Context, product domain.Product) error {
	return s.store.inTx(ctx, "create product", func(ctx context.Context, tx *sql.Tx) error {
		discountPrice, discountExpires := discountColumns(product.Discount)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO products (`+productColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		`,
			product.ID, string(product.Shape), product.Name, product.Description, product.CompanyID,
			jsonStrings(product.CategoryIDs), jsonStrings(product.Pictures), product.MainPicture,
			product.BasePriceMinor, discountPrice, discountExpires, product.Quantity,
			jsonStrings(product.AvailableAttributes.Colors), jsonStrings(product.AvailableAttributes.Sizes),
			product.Version, product.CreatedAt, product.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrProductVersionConflict
			}
			return fmt.Errorf("insert product: %w", err)
		}

		for i, v := range product.Variants {
			if err := insertVariant(ctx, tx, product.ID, i, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *CatalogStore) Get(ctx context.Context, id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	product, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.NotFoundError(domain.ErrProductNotFound, "product", id)
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}

	if product.Variants, err = s.loadVariants(ctx, product.ID); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

func (s *CatalogStore) List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
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
	if filter.CompanyID != "" {
		conds = append(conds, "company_id = "+arg(filter.CompanyID))
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	for i := range products {
		if products[i].Variants, err = s.loadVariants(ctx, products[i].ID); err != nil {
			return nil, err
		}
	}
	return products, nil
}

// Update сохраняет карточку, не трогая остатки существующих слотов.
func (s *CatalogStore) Update(ctx context.Context, product domain.Product) error {
	err := s.store.inTx(ctx, "update product", func(ctx context.Context, tx *sql.Tx) error {
		if err := updateProductCard(ctx, tx, product); err != nil {
			return err
		}
		return syncVariants(ctx, tx, product)
	})
	if isUniqueViolation(err) {
		return domain.InvalidField("variants.attributes", "must be unique")
	}
	return err
}

func updateProductCard(ctx context.Context, tx *sql.Tx, product domain.Product) error {
	discountPrice, discountExpires := discountColumns(product.Discount)
	res, err := tx.ExecContext(ctx, `
		UPDATE products
		SET name = $1,
		    description = $2,
		    company_id = $3,
		    category_ids = $4,
		    pictures = $5,
		    main_picture = $6,
		    base_price_minor = $7,
		    discount_price_minor = $8,
		    discount_expires_at = $9,
		    available_colors = $10,
		    available_sizes = $11,
		    version = version + 1,
		    updated_at = $12
		WHERE id = $13
		  AND version = $14
	`,
		product.Name, product.Description, product.CompanyID,
		jsonStrings(product.CategoryIDs), jsonStrings(product.Pictures), product.MainPicture,
		product.BasePriceMinor, discountPrice, discountExpires,
		jsonStrings(product.AvailableAttributes.Colors), jsonStrings(product.AvailableAttributes.Sizes),
		product.UpdatedAt, product.ID, product.Version,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var id string
	switch err := tx.QueryRowContext(ctx, `SELECT id FROM products WHERE id = $1`, product.ID).Scan(&id); {
	case errors.Is(err, sql.ErrNoRows):
		return domain.NotFoundError(domain.ErrProductNotFound, "product", product.ID)
	case err != nil:
		return fmt.Errorf("check product exists: %w", err)
	default:
		return domain.ErrProductVersionConflict
	}
}

// syncVariants удаляет пропавшие варианты, заводит новые и обновляет
// атрибуты остальных. Остаток существующих вариантов не меняется.
func syncVariants(ctx context.Context, tx *sql.Tx, product domain.Product) error {
	existing, err := variantIDs(ctx, tx, product.ID)
	if err != nil {
		return err
	}
	keep := make(map[string]struct{}, len(product.Variants))
	for _, v := range product.Variants {
		keep[v.ID] = struct{}{}
	}
	for id := range existing {
		if _, ok := keep[id]; ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM product_variants WHERE id = $1 AND product_id = $2`, id, product.ID); err != nil {
			return fmt.Errorf("delete variant: %w", err)
		}
	}

	for i, v := range product.Variants {
		if _, ok := existing[v.ID]; !ok {
			if err := insertVariant(ctx, tx, product.ID, i, v); err != nil {
				return err
			}
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE product_variants
			SET position = $1,
			    sku = $2,
			    color = $3,
			    size = $4,
			    price_minor = $5,
			    pictures = $6,
			    main_picture = $7
			WHERE id = $8
			  AND product_id = $9
		`,
			i, v.SKU, v.Attributes.Color, v.Attributes.Size, nullInt64(v.PriceMinor),
			jsonStrings(v.Pictures), v.MainPicture, v.ID, product.ID,
		); err != nil {
			return fmt.Errorf("update variant: %w", err)
		}
	}
	return nil
}

// Available возвращает текущий остаток слота.
func (s *CatalogStore) Available(ctx context.Context, key domain.StockKey) (int32, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return available(ctx, s.db, key)
}

// Decrement списывает qty условным UPDATE; повтор с тем же ref ничего не меняет.
func (s *CatalogStore) Decrement(ctx context.Context, ref string, key domain.StockKey, qty int32) error {
	if qty <= 0 {
		return domain.InvalidField("quantity", "must be greater than zero")
	}

	return s.store.inTx(ctx, "decrement stock", func(ctx context.Context, tx *sql.Tx) error {
		now := s.now()
		res, err := tx.ExecContext(ctx, `
			INSERT INTO stock_movements (ref, product_id, variant_id, qty, created_at)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (ref, product_id, variant_id) DO NOTHING
		`, ref, key.ProductID, key.VariantID, qty, now)
		if err != nil {
			return fmt.Errorf("insert stock movement: %w", err)
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if inserted == 0 {
			return nil
		}

		changed, err := adjustStock(ctx, tx, key, -qty, now)
		if err != nil || changed {
			return err
		}
		current, err := available(ctx, tx, key)
		if err != nil {
			return err
		}
		return domain.StockError(domain.ErrStockRaceLost, key, qty, current)
	})
}

// Compensate возвращает списанное по ref; повтор и вызов без списания ничего не меняют.
func (s *CatalogStore) Compensate(ctx context.Context, ref string, key domain.StockKey, _ int32) error {
	return s.store.inTx(ctx, "compensate stock", func(ctx context.Context, tx *sql.Tx) error {
		now := s.now()
		var qty int32
		err := tx.QueryRowContext(ctx, `
			UPDATE stock_movements
			SET compensated = TRUE,
			    compensated_at = $1
			WHERE ref = $2
			  AND product_id = $3
			  AND variant_id = $4
			  AND NOT compensated
			RETURNING qty
		`, now, ref, key.ProductID, key.VariantID).Scan(&qty)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("mark movement compensated: %w", err)
		}

		return requireAdjusted(ctx, tx, key, qty, now, "compensate")
	})
}

// Restock увеличивает остаток слота.
func (s *CatalogStore) Restock(ctx context.Context, key domain.StockKey, qty int32) error {
	if qty <= 0 {
		return domain.InvalidField("quantity", "must be greater than zero")
	}

	return s.store.inTx(ctx, "restock", func(ctx context.Context, tx *sql.Tx) error {
		return requireAdjusted(ctx, tx, key, qty, s.now(), "restock")
	})
}

// requireAdjusted увеличивает остаток; пропавший слот даёт доменную ошибку available.
func requireAdjusted(ctx context.Context, tx *sql.Tx, key domain.StockKey, qty int32, now time.Time, op string) error {
	changed, err := adjustStock(ctx, tx, key, qty, now)
	if err != nil || changed {
		return err
	}
	if _, err := available(ctx, tx, key); err != nil {
		return err
	}
	return fmt.Errorf("%s %s: stock slot disappeared", op, key)
}

// adjustStock меняет счётчик на delta, не допуская отрицательного остатка.
// Возвращает false, если слот не найден или остатка не хватило.
func adjustStock(ctx context.Context, tx *sql.Tx, key domain.StockKey, delta int32, now time.Time) (bool, error) {
	var (
		res sql.Result
		err error
	)
	if key.VariantID == "" {
		res, err = tx.ExecContext(ctx, `
			UPDATE products
			SET quantity = quantity + $1,
			    updated_at = $2
			WHERE id = $3
			  AND shape = 'simple'
			  AND quantity + $1 >= 0
		`, delta, now, key.ProductID)
	} else {
		res, err = tx.ExecContext(ctx, `
			UPDATE product_variants
			SET quantity = quantity + $1
			WHERE id = $2
			  AND product_id = $3
			  AND quantity + $1 >= 0
		`, delta, key.VariantID, key.ProductID)
	}
	if err != nil {
		return false, fmt.Errorf("adjust stock %s: %w", key, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if key.VariantID != "" {
		if _, err := tx.ExecContext(ctx, `UPDATE products SET updated_at = $1 WHERE id = $2`, now, key.ProductID); err != nil {
			return false, fmt.Errorf("touch product: %w", err)
		}
	}
	return true, nil
}

// available читает остаток слота и возвращает доменные ошибки для отсутствующего слота.
func available(ctx context.Context, q queryer, key domain.StockKey) (int32, error) {
	var (
		shape    string
		quantity int32
	)
	err := q.QueryRowContext(ctx, `SELECT shape, quantity FROM products WHERE id = $1`, key.ProductID).Scan(&shape, &quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.NotFoundError(domain.ErrProductNotFound, "product", key.ProductID)
	}
	if err != nil {
		return 0, fmt.Errorf("select product stock: %w", err)
	}

	if key.VariantID == "" {
		if domain.ProductShape(shape) != domain.ProductShapeSimple {
			return 0, &domain.Error{Kind: domain.ErrVariantSelectorRequired, Resource: "product", ResourceID: key.ProductID}
		}
		return quantity, nil
	}

	err = q.QueryRowContext(ctx, `
		SELECT quantity FROM product_variants WHERE id = $1 AND product_id = $2
	`, key.VariantID, key.ProductID).Scan(&quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.NotFoundError(domain.ErrVariantNotFound, "variant", key.String())
	}
	if err != nil {
		return 0, fmt.Errorf("select variant stock: %w", err)
	}
	return quantity, nil
}

func (s *CatalogStore) loadVariants(ctx context.Context, productID string) ([]domain.Variant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sku, color, size, quantity, price_minor, pictures, main_picture
		FROM product_variants
		WHERE product_id = $1
		ORDER BY position ASC
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("load variants: %w", err)
	}
	defer rows.Close()

	var variants []domain.Variant
	for rows.Next() {
		var (
			v        domain.Variant
			price    sql.NullInt64
			pictures []byte
		)
		if err := rows.Scan(&v.ID, &v.SKU, &v.Attributes.Color, &v.Attributes.Size, &v.Quantity, &price, &pictures, &v.MainPicture); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		if price.Valid {
			p := price.Int64
			v.PriceMinor = &p
		}
		if v.Pictures, err = decodeStrings(pictures); err != nil {
			return nil, fmt.Errorf("decode variant pictures: %w", err)
		}
		variants = append(variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variants: %w", err)
	}
	return variants, nil
}

func variantIDs(ctx context.Context, tx *sql.Tx, productID string) (map[string]struct{}, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM product_variants WHERE product_id = $1`, productID)
	if err != nil {
		return nil, fmt.Errorf("select variant ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan variant id: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variant ids: %w", err)
	}
	return ids, nil
}

func insertVariant(ctx context.Context, tx *sql.Tx, productID string, position int, v domain.Variant) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO product_variants (
			id, product_id, position, sku, color, size, quantity, price_minor, pictures, main_picture
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		v.ID, productID, position, v.SKU, v.Attributes.Color, v.Attributes.Size,
		v.Quantity, nullInt64(v.PriceMinor), jsonStrings(v.Pictures), v.MainPicture,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrProductVersionConflict
		}
		return fmt.Errorf("insert variant: %w", err)
	}
	return nil
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var (
		p               domain.Product
		shape           string
		categories      []byte
		pictures        []byte
		colors          []byte
		sizes           []byte
		discountPrice   sql.NullInt64
		discountExpires sql.NullTime
	)
	if err := row.Scan(
		&p.ID, &shape, &p.Name, &p.Description, &p.CompanyID, &categories, &pictures, &p.MainPicture,
		&p.BasePriceMinor, &discountPrice, &discountExpires, &p.Quantity,
		&colors, &sizes, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return domain.Product{}, err
	}
	p.Shape = domain.ProductShape(shape)
	if discountPrice.Valid {
		p.Discount = &domain.Discount{PriceMinor: discountPrice.Int64}
		if discountExpires.Valid {
			p.Discount.ExpiresAt = discountExpires.Time
		}
	}

	var err error
	if p.CategoryIDs, err = decodeStrings(categories); err != nil {
		return domain.Product{}, fmt.Errorf("decode category ids: %w", err)
	}
	if p.Pictures, err = decodeStrings(pictures); err != nil {
		return domain.Product{}, fmt.Errorf("decode pictures: %w", err)
	}
	if p.AvailableAttributes.Colors, err = decodeStrings(colors); err != nil {
		return domain.Product{}, fmt.Errorf("decode colors: %w", err)
	}
	if p.AvailableAttributes.Sizes, err = decodeStrings(sizes); err != nil {
		return domain.Product{}, fmt.Errorf("decode sizes: %w", err)
	}
	return p, nil
}

func discountColumns(d *domain.Discount) (sql.NullInt64, sql.NullTime) {
	if d == nil {
		return sql.NullInt64{}, sql.NullTime{}
	}
	return sql.NullInt64{Int64: d.PriceMinor, Valid: true}, nullTime(d.ExpiresAt)
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// jsonStrings кодирует список строк для JSONB-колонки; nil становится пустым массивом.
func jsonStrings(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

func decodeStrings(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

var (
	_ domain.ProductRepository = (*CatalogStore)(nil)
	_ domain.StockLedger       = (*CatalogStore)(nil)
)
