package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

// stockRepositoryInMemory — in-memory реализация складского контракта.
// Проверка и списание остатка выполняются под одним мьютексом, поэтому
// конкурентные продажи не уводят остаток в минус.
type stockRepositoryInMemory struct {
	mu      sync.RWMutex
	records map[int64]domain.BranchProduct
	nextID  int64
}

// NewStockRepository возвращает in-memory складской репозиторий.
func NewStockRepository() domain.StockRepository {
	return &stockRepositoryInMemory{
		records: make(map[int64]domain.BranchProduct),
	}
}

func (r *stockRepositoryInMemory) FindActive(branchID, productID int64) (domain.BranchProduct, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if record, ok := r.findActiveLocked(branchID, productID); ok {
		return record, nil
	}
	return domain.BranchProduct{}, domain.NewErrorf(domain.KindNotFound,
		"product ID %d not found or inactive in branch ID %d", productID, branchID)
}

func (r *stockRepositoryInMemory) Decrement(branchID, productID int64, quantity int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.findActiveLocked(branchID, productID)
	if !ok {
		return domain.NewErrorf(domain.KindNotFound,
			"product ID %d not found or inactive in branch ID %d", productID, branchID)
	}
	if record.StockQuantity < quantity {
		return domain.NewErrorf(domain.KindOutOfStock,
			"insufficient stock for product ID %d in branch ID %d", productID, branchID)
	}

	record.StockQuantity -= quantity
	record.UpdatedAt = time.Now().UTC()
	r.records[record.ID] = record
	return nil
}

func (r *stockRepositoryInMemory) UpdateCatalogFields(productID int64, name, category string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, record := range r.records {
		if record.ProductID != productID || record.IsDeleted {
			continue
		}
		record.ProductName = name
		record.ProductCategory = category
		record.UpdatedAt = time.Now().UTC()
		r.records[id] = record
	}
	return nil
}

func (r *stockRepositoryInMemory) Get(id int64) (domain.BranchProduct, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[id]
	if !ok || record.IsDeleted {
		return domain.BranchProduct{}, domain.NewErrorf(domain.KindNotFound,
			"branch product with ID %d not found", id)
	}
	return record, nil
}

func (r *stockRepositoryInMemory) Add(record domain.BranchProduct) (domain.BranchProduct, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	r.nextID++
	record.ID = r.nextID
	record.CreatedAt = now
	record.UpdatedAt = now
	r.records[record.ID] = record
	return record, nil
}

func (r *stockRepositoryInMemory) Update(record domain.BranchProduct) (domain.BranchProduct, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.records[record.ID]
	if !ok || current.IsDeleted {
		return domain.BranchProduct{}, domain.NewErrorf(domain.KindNotFound,
			"branch product with ID %d not found", record.ID)
	}

	record.CreatedAt = current.CreatedAt
	record.UpdatedAt = time.Now().UTC()
	r.records[record.ID] = record
	return record, nil
}

func (r *stockRepositoryInMemory) Delete(record domain.BranchProduct) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.records[record.ID]
	if !ok {
		return domain.NewErrorf(domain.KindNotFound, "branch product with ID %d not found", record.ID)
	}
	if current.IsDeleted {
		return domain.NewError(domain.KindAlreadyDeleted, "the branch product is already deleted")
	}

	current.IsDeleted = true
	current.UpdatedAt = time.Now().UTC()
	r.records[current.ID] = current
	return nil
}

func (r *stockRepositoryInMemory) Page(page, pageSize int, filter domain.BranchProductFilter) (domain.BranchProductPage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]domain.BranchProduct, 0, len(r.records))
	for _, record := range r.records {
		if record.IsDeleted || !matchesStockFilter(record, filter) {
			continue
		}
		matched = append(matched, record)
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := len(matched)
	offset := (page - 1) * pageSize
	if offset >= total {
		return domain.BranchProductPage{TotalRecords: total, Records: []domain.BranchProduct{}}, nil
	}
	end := offset + pageSize
	if end > total {
		end = total
	}

	return domain.BranchProductPage{TotalRecords: total, Records: matched[offset:end]}, nil
}

func (r *stockRepositoryInMemory) findActiveLocked(branchID, productID int64) (domain.BranchProduct, bool) {
	for _, record := range r.records {
		if record.BranchID == branchID && record.ProductID == productID &&
			record.IsActive && !record.IsDeleted {
			return record, true
		}
	}
	return domain.BranchProduct{}, false
}

func matchesStockFilter(record domain.BranchProduct, filter domain.BranchProductFilter) bool {
	if filter.ID != nil && record.ID != *filter.ID {
		return false
	}
	if filter.BranchID != nil && record.BranchID != *filter.BranchID {
		return false
	}
	if filter.ProductID != nil && record.ProductID != *filter.ProductID {
		return false
	}
	if filter.IsActive != nil && record.IsActive != *filter.IsActive {
		return false
	}
	return true
}

var _ domain.StockRepository = (*stockRepositoryInMemory)(nil)
