// Package api — HTTP-граница сервиса продаж поверх gin. Слой переводит
// DTO запросов в вызовы движка и kind доменных ошибок в HTTP-статусы.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sales/internal/domain"
	"github.com/vladislavdragonenkov/sales/internal/service/catalog"
	"github.com/vladislavdragonenkov/sales/internal/service/sales"
)

const (
	defaultPage     = 1
	defaultPageSize = 10
)

// Handler связывает HTTP-маршруты с движком продаж и сервисом каталога.
type Handler struct {
	sales   *sales.Service
	catalog *catalog.Service
	logger  *log.Entry
}

// NewHandler создаёт HTTP-обработчик сервиса.
func NewHandler(salesService *sales.Service, catalogService *catalog.Service, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	return &Handler{sales: salesService, catalog: catalogService, logger: logger}
}

type saleItemRequest struct {
	ProductID int64            `json:"product_id"`
	Quantity  int32            `json:"quantity"`
	Discount  *decimal.Decimal `json:"discount,omitempty"`
}

type createSaleRequest struct {
	CustomerID int64             `json:"customer_id"`
	BranchID   int64             `json:"branch_id"`
	Items      []saleItemRequest `json:"items"`
}

type updateSaleRequest struct {
	Status      string          `json:"status"`
	Date        time.Time       `json:"date"`
	CustomerID  int64           `json:"customer_id"`
	BranchID    int64           `json:"branch_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type saleItemResponse struct {
	ID          int64           `json:"id"`
	Sequence    int32           `json:"sequence"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int32           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	Price       decimal.Decimal `json:"price"`
	IsCancelled bool            `json:"is_cancelled"`
	CancelledAt *time.Time      `json:"cancelled_at,omitempty"`
}

type saleResponse struct {
	ID          int64              `json:"id"`
	Status      string             `json:"status"`
	Date        time.Time          `json:"date"`
	CustomerID  int64              `json:"customer_id"`
	BranchID    int64              `json:"branch_id"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	CancelledAt *time.Time         `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	Items       []saleItemResponse `json:"items"`
}

type pageResponse struct {
	Data        any `json:"data"`
	TotalItems  int `json:"total_items"`
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
}

func toSaleItemResponse(item domain.SaleItem) saleItemResponse {
	return saleItemResponse{
		ID:          item.ID,
		Sequence:    item.Sequence,
		ProductID:   item.ProductID,
		ProductName: item.ProductName,
		Quantity:    item.Quantity,
		UnitPrice:   item.UnitPrice,
		Discount:    item.Discount,
		Price:       item.Price,
		IsCancelled: item.IsCancelled,
		CancelledAt: item.CancelledAt,
	}
}

func toSaleResponse(sale domain.Sale) saleResponse {
	items := make([]saleItemResponse, 0, len(sale.Items))
	for _, item := range sale.Items {
		items = append(items, toSaleItemResponse(item))
	}
	return saleResponse{
		ID:          sale.ID,
		Status:      string(sale.Status),
		Date:        sale.Date,
		CustomerID:  sale.CustomerID,
		BranchID:    sale.BranchID,
		TotalAmount: sale.TotalAmount,
		CancelledAt: sale.CancelledAt,
		CreatedAt:   sale.CreatedAt,
		UpdatedAt:   sale.UpdatedAt,
		Items:       items,
	}
}

func totalPages(totalItems, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return (totalItems + pageSize - 1) / pageSize
}

func (h *Handler) handleCreateSale(c *gin.Context) {
	var req createSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
			Type:  string(domain.KindValidation),
			Error: "invalid request body",
		})
		return
	}

	items := make([]sales.CreateItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, sales.CreateItemInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Discount:  item.Discount,
		})
	}

	sale, err := h.sales.Create(c.Request.Context(), sales.CreateInput{
		CustomerID: req.CustomerID,
		BranchID:   req.BranchID,
		Items:      items,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toSaleResponse(sale))
}

func (h *Handler) handleGetSale(c *gin.Context) {
	saleID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	sale, err := h.sales.GetByID(saleID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSaleResponse(sale))
}

func (h *Handler) handleListSales(c *gin.Context) {
	page, ok := h.queryInt(c, "page", defaultPage)
	if !ok {
		return
	}
	pageSize, ok := h.queryInt(c, "page_size", defaultPageSize)
	if !ok {
		return
	}

	filter, ok := h.saleFilter(c)
	if !ok {
		return
	}

	result, err := h.sales.List(filter, page, pageSize)
	if err != nil {
		h.writeError(c, err)
		return
	}

	data := make([]saleResponse, 0, len(result.Sales))
	for _, sale := range result.Sales {
		data = append(data, toSaleResponse(sale))
	}

	c.JSON(http.StatusOK, pageResponse{
		Data:        data,
		TotalItems:  result.TotalRecords,
		CurrentPage: page,
		TotalPages:  totalPages(result.TotalRecords, pageSize),
	})
}

func (h *Handler) handleUpdateSale(c *gin.Context) {
	saleID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var req updateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
			Type:  string(domain.KindValidation),
			Error: "invalid request body",
		})
		return
	}

	sale, err := h.sales.Update(c.Request.Context(), saleID, sales.UpdateInput{
		Status:      domain.SaleStatus(req.Status),
		Date:        req.Date,
		CustomerID:  req.CustomerID,
		BranchID:    req.BranchID,
		TotalAmount: req.TotalAmount,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSaleResponse(sale))
}

func (h *Handler) handleCancelSale(c *gin.Context) {
	saleID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	sale, err := h.sales.Cancel(c.Request.Context(), saleID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSaleResponse(sale))
}

func (h *Handler) handleCancelSaleItem(c *gin.Context) {
	saleID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	sequence, ok := h.pathSequence(c)
	if !ok {
		return
	}

	sale, err := h.sales.CancelItem(c.Request.Context(), saleID, sequence)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSaleResponse(sale))
}

func (h *Handler) handleGetSaleItem(c *gin.Context) {
	saleID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	sequence, ok := h.pathSequence(c)
	if !ok {
		return
	}

	item, err := h.sales.GetItem(saleID, sequence)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSaleItemResponse(item))
}

func (h *Handler) handleDeleteSale(c *gin.Context) {
	saleID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	if err := h.sales.Delete(saleID); err != nil {
		h.writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
			Type:  string(domain.KindValidation),
			Error: "invalid " + name + " path parameter",
		})
		return 0, false
	}
	return id, true
}

func (h *Handler) pathSequence(c *gin.Context) (int32, bool) {
	seq, err := strconv.ParseInt(c.Param("sequence"), 10, 32)
	if err != nil || seq <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
			Type:  string(domain.KindValidation),
			Error: "invalid sequence path parameter",
		})
		return 0, false
	}
	return int32(seq), true
}

func (h *Handler) queryInt(c *gin.Context, name string, fallback int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
			Type:  string(domain.KindInvalidPagination),
			Error: "invalid " + name + " query parameter",
		})
		return 0, false
	}
	return value, true
}

func (h *Handler) saleFilter(c *gin.Context) (domain.SaleFilter, bool) {
	var filter domain.SaleFilter

	if raw := c.Query("customer_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.badQuery(c, "customer_id")
			return domain.SaleFilter{}, false
		}
		filter.CustomerID = &id
	}
	if raw := c.Query("branch_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.badQuery(c, "branch_id")
			return domain.SaleFilter{}, false
		}
		filter.BranchID = &id
	}
	if raw := c.Query("status"); raw != "" {
		status := domain.SaleStatus(raw)
		if status != domain.SaleStatusCreated && status != domain.SaleStatusCanceled {
			h.badQuery(c, "status")
			return domain.SaleFilter{}, false
		}
		filter.Status = &status
	}
	if raw := c.Query("start_date"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.badQuery(c, "start_date")
			return domain.SaleFilter{}, false
		}
		filter.StartDate = &ts
	}
	if raw := c.Query("end_date"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.badQuery(c, "end_date")
			return domain.SaleFilter{}, false
		}
		filter.EndDate = &ts
	}

	return filter, true
}

func (h *Handler) badQuery(c *gin.Context, name string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
		Type:  string(domain.KindValidation),
		Error: "invalid " + name + " query parameter",
	})
}
