package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

// saleRepositoryInMemory — in-memory реализация SaleRepository для
// локальной разработки и тестов. Мягко удалённые продажи остаются в map,
// но исключаются из всех выборок.
type saleRepositoryInMemory struct {
	mu         sync.RWMutex
	sales      map[int64]domain.Sale
	nextSaleID int64
	nextItemID int64
}

// NewSaleRepository возвращает in-memory репозиторий продаж.
func NewSaleRepository() domain.SaleRepository {
	return &saleRepositoryInMemory{
		sales: make(map[int64]domain.Sale),
	}
}

func (r *saleRepositoryInMemory) Get(id int64) (domain.Sale, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sale, ok := r.sales[id]
	if !ok || sale.IsDeleted {
		return domain.Sale{}, domain.NewErrorf(domain.KindNotFound, "sale with ID %d not found", id)
	}
	return copySale(sale), nil
}

func (r *saleRepositoryInMemory) GetWithItems(id int64) (domain.Sale, error) {
	return r.Get(id)
}

func (r *saleRepositoryInMemory) Add(sale domain.Sale) (domain.Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	r.nextSaleID++
	sale.ID = r.nextSaleID
	sale.CreatedAt = now
	sale.UpdatedAt = now

	items := make([]domain.SaleItem, len(sale.Items))
	copy(items, sale.Items)
	for i := range items {
		r.nextItemID++
		items[i].ID = r.nextItemID
		items[i].SaleID = sale.ID
	}
	sale.Items = items

	r.sales[sale.ID] = copySale(sale)
	return copySale(sale), nil
}

func (r *saleRepositoryInMemory) Update(sale domain.Sale) (domain.Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.sales[sale.ID]
	if !ok || current.IsDeleted {
		return domain.Sale{}, domain.NewErrorf(domain.KindNotFound, "sale with ID %d not found", sale.ID)
	}

	sale.CreatedAt = current.CreatedAt
	sale.UpdatedAt = time.Now().UTC()
	// Обновление без позиций не стирает уже сохранённые позиции.
	if len(sale.Items) == 0 {
		sale.Items = current.Items
	}

	r.sales[sale.ID] = copySale(sale)
	return copySale(sale), nil
}

func (r *saleRepositoryInMemory) Delete(sale domain.Sale) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.sales[sale.ID]
	if !ok {
		return domain.NewErrorf(domain.KindNotFound, "sale with ID %d not found", sale.ID)
	}
	if current.IsDeleted {
		return domain.NewError(domain.KindAlreadyDeleted, "the sale is already deleted")
	}

	current.IsDeleted = true
	current.UpdatedAt = time.Now().UTC()
	r.sales[sale.ID] = current
	return nil
}

func (r *saleRepositoryInMemory) Page(page, pageSize int, filter domain.SaleFilter) (domain.SalePage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]domain.Sale, 0, len(r.sales))
	for _, sale := range r.sales {
		if sale.IsDeleted || !matchesFilter(sale, filter) {
			continue
		}
		matched = append(matched, copySale(sale))
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	offset := (page - 1) * pageSize
	if offset >= total {
		return domain.SalePage{TotalRecords: total, Sales: []domain.Sale{}}, nil
	}
	end := offset + pageSize
	if end > total {
		end = total
	}

	return domain.SalePage{TotalRecords: total, Sales: matched[offset:end]}, nil
}

func matchesFilter(sale domain.Sale, filter domain.SaleFilter) bool {
	if filter.ID != nil && sale.ID != *filter.ID {
		return false
	}
	if filter.BranchID != nil && sale.BranchID != *filter.BranchID {
		return false
	}
	if filter.CustomerID != nil && sale.CustomerID != *filter.CustomerID {
		return false
	}
	if filter.Status != nil && sale.Status != *filter.Status {
		return false
	}
	if filter.StartDate != nil && sale.CreatedAt.Before(*filter.StartDate) {
		return false
	}
	if filter.EndDate != nil && sale.CreatedAt.After(*filter.EndDate) {
		return false
	}
	return true
}

// copySale делает глубокую копию, чтобы избежать мутаций извне.
func copySale(sale domain.Sale) domain.Sale {
	out := sale
	out.Items = make([]domain.SaleItem, len(sale.Items))
	copy(out.Items, sale.Items)
	return out
}

var _ domain.SaleRepository = (*saleRepositoryInMemory)(nil)
