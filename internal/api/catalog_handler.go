package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/sales/internal/domain"
	"github.com/vladislavdragonenkov/sales/internal/service/catalog"
)

type createBranchProductRequest struct {
	BranchID        int64           `json:"branch_id"`
	ProductID       int64           `json:"product_id"`
	ProductName     string          `json:"product_name"`
	ProductCategory string          `json:"product_category"`
	Price           decimal.Decimal `json:"price"`
	StockQuantity   int32           `json:"stock_quantity"`
	IsActive        bool            `json:"is_active"`
}

type updateBranchProductRequest struct {
	Price         decimal.Decimal `json:"price"`
	StockQuantity int32           `json:"stock_quantity"`
	IsActive      bool            `json:"is_active"`
}

type updateCatalogRequest struct {
	ProductName     string `json:"product_name"`
	ProductCategory string `json:"product_category"`
}

type branchProductResponse struct {
	ID              int64           `json:"id"`
	BranchID        int64           `json:"branch_id"`
	ProductID       int64           `json:"product_id"`
	ProductName     string          `json:"product_name"`
	ProductCategory string          `json:"product_category"`
	Price           decimal.Decimal `json:"price"`
	StockQuantity   int32           `json:"stock_quantity"`
	IsActive        bool            `json:"is_active"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func toBranchProductResponse(record domain.BranchProduct) branchProductResponse {
	return branchProductResponse{
		ID:              record.ID,
		BranchID:        record.BranchID,
		ProductID:       record.ProductID,
		ProductName:     record.ProductName,
		ProductCategory: record.ProductCategory,
		Price:           record.Price,
		StockQuantity:   record.StockQuantity,
		IsActive:        record.IsActive,
		CreatedAt:       record.CreatedAt,
		UpdatedAt:       record.UpdatedAt,
	}
}

func (h *Handler) handleCreateBranchProduct(c *gin.Context) {
	var req createBranchProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
			Type:  string(domain.KindValidation),
			Error: "invalid request body",
		})
		return
	}

	record, err := h.catalog.Create(catalog.CreateInput{
		BranchID:        req.BranchID,
		ProductID:       req.ProductID,
		ProductName:     req.ProductName,
		ProductCategory: req.ProductCategory,
		Price:           req.Price,
		StockQuantity:   req.StockQuantity,
		IsActive:        req.IsActive,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toBranchProductResponse(record))
}

func (h *Handler) handleGetBranchProduct(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	record, err := h.catalog.Get(id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toBranchProductResponse(record))
}

func (h *Handler) handleListBranchProducts(c *gin.Context) {
	page, ok := h.queryInt(c, "page", defaultPage)
	if !ok {
		return
	}
	pageSize, ok := h.queryInt(c, "page_size", defaultPageSize)
	if !ok {
		return
	}

	var filter domain.BranchProductFilter
	if raw := c.Query("branch_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.badQuery(c, "branch_id")
			return
		}
		filter.BranchID = &id
	}
	if raw := c.Query("product_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.badQuery(c, "product_id")
			return
		}
		filter.ProductID = &id
	}
	if raw := c.Query("is_active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			h.badQuery(c, "is_active")
			return
		}
		filter.IsActive = &active
	}

	result, err := h.catalog.List(filter, page, pageSize)
	if err != nil {
		h.writeError(c, err)
		return
	}

	data := make([]branchProductResponse, 0, len(result.Records))
	for _, record := range result.Records {
		data = append(data, toBranchProductResponse(record))
	}

	c.JSON(http.StatusOK, pageResponse{
		Data:        data,
		TotalItems:  result.TotalRecords,
		CurrentPage: page,
		TotalPages:  totalPages(result.TotalRecords, pageSize),
	})
}

func (h *Handler) handleUpdateBranchProduct(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var req updateBranchProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
			Type:  string(domain.KindValidation),
			Error: "invalid request body",
		})
		return
	}

	record, err := h.catalog.Update(id, catalog.UpdateInput{
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
		IsActive:      req.IsActive,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toBranchProductResponse(record))
}

func (h *Handler) handleDeleteBranchProduct(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	if err := h.catalog.Delete(id); err != nil {
		h.writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) handleUpdateCatalog(c *gin.Context) {
	productID, ok := h.pathID(c, "product_id")
	if !ok {
		return
	}

	var req updateCatalogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
			Type:  string(domain.KindValidation),
			Error: "invalid request body",
		})
		return
	}

	if err := h.catalog.UpdateCatalog(productID, req.ProductName, req.ProductCategory); err != nil {
		h.writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
