package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

type saleRepository struct {
	db *sql.DB
}

// NewSaleRepository создаёт PostgreSQL-реализацию SaleRepository.
func NewSaleRepository(store *Store) domain.SaleRepository {
	return &saleRepository{db: store.DB()}
}

func (r *saleRepository) Get(id int64) (domain.Sale, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.getSale(ctx, id)
}

func (r *saleRepository) GetWithItems(id int64) (domain.Sale, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	sale, err := r.getSale(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}

	items, err := r.loadItems(ctx, sale.ID)
	if err != nil {
		return domain.Sale{}, err
	}
	sale.Items = items

	return sale, nil
}

func (r *saleRepository) Add(sale domain.Sale) (domain.Sale, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Sale{}, fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	sale.CreatedAt = now
	sale.UpdatedAt = now

	err = tx.QueryRowContext(ctx, `
		INSERT INTO sales (
			status, date, customer_id, branch_id, total_amount,
			cancelled_at, is_deleted, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,FALSE,$7,$8)
		RETURNING id
	`,
		string(sale.Status), sale.Date, sale.CustomerID, sale.BranchID,
		sale.TotalAmount, sale.CancelledAt, sale.CreatedAt, sale.UpdatedAt,
	).Scan(&sale.ID)
	if err != nil {
		return domain.Sale{}, fmt.Errorf("insert sale: %w", err)
	}

	for i := range sale.Items {
		item := &sale.Items[i]
		item.SaleID = sale.ID
		err = tx.QueryRowContext(ctx, `
			INSERT INTO sale_items (
				sale_id, sequence, product_id, product_name, quantity,
				unit_price, discount, price, is_cancelled, cancelled_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			RETURNING id
		`,
			item.SaleID, item.Sequence, item.ProductID, item.ProductName, item.Quantity,
			item.UnitPrice, item.Discount, item.Price, item.IsCancelled, item.CancelledAt,
		).Scan(&item.ID)
		if err != nil {
			return domain.Sale{}, fmt.Errorf("insert sale item: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return domain.Sale{}, fmt.Errorf("commit add sale: %w", err)
	}

	return sale, nil
}

func (r *saleRepository) Update(sale domain.Sale) (domain.Sale, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Sale{}, fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	sale.UpdatedAt = time.Now().UTC()

	res, err := tx.ExecContext(ctx, `
		UPDATE sales
		SET status = $1,
		    date = $2,
		    customer_id = $3,
		    branch_id = $4,
		    total_amount = $5,
		    cancelled_at = $6,
		    updated_at = $7
		WHERE id = $8
		  AND NOT is_deleted
	`,
		string(sale.Status), sale.Date, sale.CustomerID, sale.BranchID,
		sale.TotalAmount, sale.CancelledAt, sale.UpdatedAt, sale.ID,
	)
	if err != nil {
		return domain.Sale{}, fmt.Errorf("update sale: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Sale{}, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.Sale{}, domain.NewErrorf(domain.KindNotFound, "sale with ID %d not found", sale.ID)
	}

	for i := range sale.Items {
		item := sale.Items[i]
		if _, err = tx.ExecContext(ctx, `
			UPDATE sale_items
			SET is_cancelled = $1,
			    cancelled_at = $2
			WHERE sale_id = $3
			  AND sequence = $4
		`,
			item.IsCancelled, item.CancelledAt, sale.ID, item.Sequence,
		); err != nil {
			return domain.Sale{}, fmt.Errorf("update sale item: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return domain.Sale{}, fmt.Errorf("commit update sale: %w", err)
	}

	return sale, nil
}

func (r *saleRepository) Delete(sale domain.Sale) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE sales
		SET is_deleted = TRUE,
		    updated_at = $1
		WHERE id = $2
		  AND NOT is_deleted
	`, time.Now().UTC(), sale.ID)
	if err != nil {
		return fmt.Errorf("delete sale: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.saleExists(ctx, sale.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.NewErrorf(domain.KindNotFound, "sale with ID %d not found", sale.ID)
		}
		return domain.NewError(domain.KindAlreadyDeleted, "the sale is already deleted")
	}

	return nil
}

func (r *saleRepository) Page(page, pageSize int, filter domain.SaleFilter) (domain.SalePage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	where, args := buildSaleFilter(filter)

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sales `+where, args...,
	).Scan(&total); err != nil {
		return domain.SalePage{}, fmt.Errorf("count sales: %w", err)
	}

	offset := (page - 1) * pageSize
	args = append(args, pageSize, offset)
	query := fmt.Sprintf(`
		SELECT id, status, date, customer_id, branch_id, total_amount,
		       cancelled_at, is_deleted, created_at, updated_at
		FROM sales
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return domain.SalePage{}, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return domain.SalePage{}, err
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return domain.SalePage{}, fmt.Errorf("iterate sale rows: %w", err)
	}

	for i := range sales {
		items, err := r.loadItems(ctx, sales[i].ID)
		if err != nil {
			return domain.SalePage{}, err
		}
		sales[i].Items = items
	}

	return domain.SalePage{TotalRecords: total, Sales: sales}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSale(row rowScanner) (domain.Sale, error) {
	var sale domain.Sale
	var status string
	if err := row.Scan(
		&sale.ID, &status, &sale.Date, &sale.CustomerID, &sale.BranchID,
		&sale.TotalAmount, &sale.CancelledAt, &sale.IsDeleted,
		&sale.CreatedAt, &sale.UpdatedAt,
	); err != nil {
		return domain.Sale{}, fmt.Errorf("scan sale row: %w", err)
	}
	sale.Status = domain.SaleStatus(status)
	return sale, nil
}

func (r *saleRepository) getSale(ctx context.Context, id int64) (domain.Sale, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, status, date, customer_id, branch_id, total_amount,
		       cancelled_at, is_deleted, created_at, updated_at
		FROM sales
		WHERE id = $1
		  AND NOT is_deleted
	`, id)

	sale, err := scanSale(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Sale{}, domain.NewErrorf(domain.KindNotFound, "sale with ID %d not found", id)
		}
		return domain.Sale{}, err
	}
	return sale, nil
}

func (r *saleRepository) loadItems(ctx context.Context, saleID int64) ([]domain.SaleItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sale_id, sequence, product_id, product_name, quantity,
		       unit_price, discount, price, is_cancelled, cancelled_at
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY sequence ASC
	`, saleID)
	if err != nil {
		return nil, fmt.Errorf("load sale items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.SaleItem, 0)
	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(
			&item.ID, &item.SaleID, &item.Sequence, &item.ProductID, &item.ProductName,
			&item.Quantity, &item.UnitPrice, &item.Discount, &item.Price,
			&item.IsCancelled, &item.CancelledAt,
		); err != nil {
			return nil, fmt.Errorf("scan sale item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sale items: %w", err)
	}

	return items, nil
}

func (r *saleRepository) saleExists(ctx context.Context, id int64) (bool, error) {
	var found int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM sales WHERE id = $1`, id).Scan(&found)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check sale exists: %w", err)
}

// buildSaleFilter собирает WHERE-часть постраничной выборки.
// Мягко удалённые записи исключаются всегда.
func buildSaleFilter(filter domain.SaleFilter) (string, []any) {
	conds := []string{"NOT is_deleted"}
	args := make([]any, 0, 6)

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
	if filter.CustomerID != nil {
		add("customer_id = $%d", *filter.CustomerID)
	}
	if filter.Status != nil {
		add("status = $%d", string(*filter.Status))
	}
	if filter.StartDate != nil {
		add("created_at >= $%d", *filter.StartDate)
	}
	if filter.EndDate != nil {
		add("created_at <= $%d", *filter.EndDate)
	}

	return "WHERE " + strings.Join(conds, " AND "), args
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.SaleRepository = (*saleRepository)(nil)
