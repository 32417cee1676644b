package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

type stockRepository struct {
	db *sql.DB
}

// NewStockRepository создаёт PostgreSQL-реализацию StockRepository.
func NewStockRepository(store *Store) domain.StockRepository {
	return &stockRepository{db: store.DB()}
}

func (r *stockRepository) FindActive(branchID, productID int64) (domain.BranchProduct, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT id, branch_id, product_id, product_name, product_category,
		       price, stock_quantity, is_active, is_deleted, created_at, updated_at
		FROM branch_products
		WHERE branch_id = $1
		  AND product_id = $2
		  AND is_active
		  AND NOT is_deleted
	`, branchID, productID)

	record, err := scanBranchProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.BranchProduct{}, domain.NewErrorf(domain.KindNotFound,
				"product ID %d not found or inactive in branch ID %d", productID, branchID)
		}
		return domain.BranchProduct{}, err
	}
	return record, nil
}

// Decrement списывает остаток одним условным обновлением, поэтому проверка
// и списание атомарны и остаток не уходит в минус при конкурентных продажах.
func (r *stockRepository) Decrement(branchID, productID int64, quantity int32) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE branch_products
		SET stock_quantity = stock_quantity - $1,
		    updated_at = $2
		WHERE branch_id = $3
		  AND product_id = $4
		  AND is_active
		  AND NOT is_deleted
		  AND stock_quantity >= $1
	`, quantity, time.Now().UTC(), branchID, productID)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := r.FindActive(branchID, productID); err != nil {
			return err
		}
		return domain.NewErrorf(domain.KindOutOfStock,
			"insufficient stock for product ID %d in branch ID %d", productID, branchID)
	}

	return nil
}

func (r *stockRepository) UpdateCatalogFields(productID int64, name, category string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		UPDATE branch_products
		SET product_name = $1,
		    product_category = $2,
		    updated_at = $3
		WHERE product_id = $4
		  AND NOT is_deleted
	`, name, category, time.Now().UTC(), productID); err != nil {
		return fmt.Errorf("update catalog fields: %w", err)
	}

	return nil
}

func (r *stockRepository) Get(id int64) (domain.BranchProduct, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT id, branch_id, product_id, product_name, product_category,
		       price, stock_quantity, is_active, is_deleted, created_at, updated_at
		FROM branch_products
		WHERE id = $1
		  AND NOT is_deleted
	`, id)

	record, err := scanBranchProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.BranchProduct{}, domain.NewErrorf(domain.KindNotFound,
				"branch product with ID %d not found", id)
		}
		return domain.BranchProduct{}, err
	}
	return record, nil
}

func (r *stockRepository) Add(record domain.BranchProduct) (domain.BranchProduct, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO branch_products (
			branch_id, product_id, product_name, product_category,
			price, stock_quantity, is_active, is_deleted, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,FALSE,$8,$9)
		RETURNING id
	`,
		record.BranchID, record.ProductID, record.ProductName, record.ProductCategory,
		record.Price, record.StockQuantity, record.IsActive, record.CreatedAt, record.UpdatedAt,
	).Scan(&record.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.BranchProduct{}, domain.NewErrorf(domain.KindValidation,
				"product ID %d is already registered in branch ID %d", record.ProductID, record.BranchID)
		}
		return domain.BranchProduct{}, fmt.Errorf("insert branch product: %w", err)
	}

	return record, nil
}

func (r *stockRepository) Update(record domain.BranchProduct) (domain.BranchProduct, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	record.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
		UPDATE branch_products
		SET product_name = $1,
		    product_category = $2,
		    price = $3,
		    stock_quantity = $4,
		    is_active = $5,
		    updated_at = $6
		WHERE id = $7
		  AND NOT is_deleted
	`,
		record.ProductName, record.ProductCategory, record.Price,
		record.StockQuantity, record.IsActive, record.UpdatedAt, record.ID,
	)
	if err != nil {
		return domain.BranchProduct{}, fmt.Errorf("update branch product: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return domain.BranchProduct{}, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.BranchProduct{}, domain.NewErrorf(domain.KindNotFound,
			"branch product with ID %d not found", record.ID)
	}

	return record, nil
}

func (r *stockRepository) Delete(record domain.BranchProduct) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE branch_products
		SET is_deleted = TRUE,
		    updated_at = $1
		WHERE id = $2
		  AND NOT is_deleted
	`, time.Now().UTC(), record.ID)
	if err != nil {
		return fmt.Errorf("delete branch product: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.recordExists(ctx, record.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.NewErrorf(domain.KindNotFound, "branch product with ID %d not found", record.ID)
		}
		return domain.NewError(domain.KindAlreadyDeleted, "the branch product is already deleted")
	}

	return nil
}

func (r *stockRepository) Page(page, pageSize int, filter domain.BranchProductFilter) (domain.BranchProductPage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	where, args := buildBranchProductFilter(filter)

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM branch_products `+where, args...,
	).Scan(&total); err != nil {
		return domain.BranchProductPage{}, fmt.Errorf("count branch products: %w", err)
	}

	offset := (page - 1) * pageSize
	args = append(args, pageSize, offset)
	query := fmt.Sprintf(`
		SELECT id, branch_id, product_id, product_name, product_category,
		       price, stock_quantity, is_active, is_deleted, created_at, updated_at
		FROM branch_products
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return domain.BranchProductPage{}, fmt.Errorf("list branch products: %w", err)
	}
	defer rows.Close()

	records := make([]domain.BranchProduct, 0)
	for rows.Next() {
		record, err := scanBranchProduct(rows)
		if err != nil {
			return domain.BranchProductPage{}, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return domain.BranchProductPage{}, fmt.Errorf("iterate branch product rows: %w", err)
	}

	return domain.BranchProductPage{TotalRecords: total, Records: records}, nil
}

func scanBranchProduct(row rowScanner) (domain.BranchProduct, error) {
	var record domain.BranchProduct
	if err := row.Scan(
		&record.ID, &record.BranchID, &record.ProductID, &record.ProductName,
		&record.ProductCategory, &record.Price, &record.StockQuantity,
		&record.IsActive, &record.IsDeleted, &record.CreatedAt, &record.UpdatedAt,
	); err != nil {
		return domain.BranchProduct{}, fmt.Errorf("scan branch product row: %w", err)
	}
	return record, nil
}

func (r *stockRepository) recordExists(ctx context.Context, id int64) (bool, error) {
	var found int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM branch_products WHERE id = $1`, id).Scan(&found)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check branch product exists: %w", err)
}

func buildBranchProductFilter(filter domain.BranchProductFilter) (string, []any) {
	conds := []string{"NOT is_deleted"}
	args := make([]any, 0, 4)

	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.ID != nil {
		add("id = $%d", *filter.ID)
	}
	if filter.BranchID != nil {
		add("branch_id = $%d", *filter.BranchID)
	}
	if filter.ProductID != nil {
		add("product_id = $%d", *filter.ProductID)
	}
	if filter.IsActive != nil {
		add("is_active = $%d", *filter.IsActive)
	}

	return "WHERE " + strings.Join(conds, " AND "), args
}

var _ domain.StockRepository = (*stockRepository)(nil)
