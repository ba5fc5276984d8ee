package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the storefront API bridge. Everything under /api is
// behind the X-API-Key check; /health stays open for probes.
func NewRouter(h *StoreHandler, apiKey string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api", APIKeyAuth(apiKey))
	{
		api.GET("/products", h.ListProducts)
		api.POST("/products", h.CreateProduct)
		api.POST("/products/quick", h.QuickCreateProduct)
		api.GET("/products/:id", h.GetProduct)
		api.PATCH("/products/:id", h.UpdateProduct)
		api.DELETE("/products/:id", h.DeleteProduct)
		api.POST("/products/:id/variants", h.UpsertVariant)
		api.DELETE("/products/:id/variants/:code", h.DeleteVariant)
		api.PUT("/products/:id/variants/:code/tutorial", h.SetVariantTutorial)

		api.GET("/stock", h.StockOverview)
		api.GET("/stock/:id/:code", h.GetStock)
		api.POST("/stock/:id/:code", h.AddStock)
		api.DELETE("/stock/:id/:code", h.ClearStock)

		api.GET("/users", h.ListUsers)
		api.GET("/users/:chat_id", h.GetUser)
		api.GET("/users/:chat_id/receipts", h.ListUserReceipts)
		api.GET("/receipts/:trx", h.GetReceipt)
		api.GET("/stats", h.Stats)

		api.POST("/orders", h.StartOrder)
		api.POST("/orders/force", h.ForceConfirm)
		api.GET("/orders/:id", h.GetOrder)
		api.PUT("/orders/:id/quantity", h.AdjustQuantity)
		api.POST("/orders/:id/confirm", h.ConfirmOrder)
		api.POST("/orders/:id/cancel", h.CancelOrder)
	}

	return r
}
