package api

import (
	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/sales/internal/health"
)

// NewRouter собирает gin-движок со всеми маршрутами сервиса.
// Health-эндпоинты живут рядом с API, метрики — на отдельном порту.
func NewRouter(handler *Handler, healthHandler *health.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	{
		salesGroup := api.Group("/sales")
		{
			salesGroup.POST("", handler.handleCreateSale)
			salesGroup.GET("", handler.handleListSales)
			salesGroup.GET("/:id", handler.handleGetSale)
			salesGroup.PUT("/:id", handler.handleUpdateSale)
			salesGroup.DELETE("/:id", handler.handleDeleteSale)
			salesGroup.PATCH("/:id/cancel", handler.handleCancelSale)
			salesGroup.GET("/:id/items/:sequence", handler.handleGetSaleItem)
			salesGroup.PATCH("/:id/items/:sequence/cancel", handler.handleCancelSaleItem)
		}

		products := api.Group("/branch-products")
		{
			products.POST("", handler.handleCreateBranchProduct)
			products.GET("", handler.handleListBranchProducts)
			products.GET("/:id", handler.handleGetBranchProduct)
			products.PUT("/:id", handler.handleUpdateBranchProduct)
			products.DELETE("/:id", handler.handleDeleteBranchProduct)
		}

		api.PUT("/products/:product_id/catalog", handler.handleUpdateCatalog)
	}

	if healthHandler != nil {
		router.GET("/healthz", gin.WrapH(healthHandler))
		router.GET("/livez", gin.WrapF(health.LivenessHandler))
		router.GET("/readyz", gin.WrapF(healthHandler.ReadinessHandler))
	}

	return router
}
