package http

import (
	"net/http"
	"strings"

	"github.com/Reachvip123/telegram-store-bot/internal/khqr"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProxyHandler exposes the direct Bakong gateway over plain HTTP. The
// process runs on a Cambodia IP and the storefront reaches it through
// BAKONG_PROXY_URL, so the settlement checks originate from an address
// Bakong accepts.
type ProxyHandler struct {
	gateway khqr.Gateway
	log     *zap.Logger
}

func NewProxyHandler(gateway khqr.Gateway, log *zap.Logger) *ProxyHandler {
	return &ProxyHandler{gateway: gateway, log: log}
}

type proxyCreateRequest struct {
	Amount       float64 `json:"amount" binding:"required"`
	BankAccount  string  `json:"bank_account"`
	MerchantName string  `json:"merchant_name"`
	BillNumber   string  `json:"bill_number"`
}

func (h *ProxyHandler) CreateQR(c *gin.Context) {
	var req proxyCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		return
	}

	qr, err := h.gateway.CreateQR(c.Request.Context(), khqr.CreateRequest{
		Amount:       decimal.NewFromFloat(req.Amount),
		BankAccount:  req.BankAccount,
		MerchantName: req.MerchantName,
		BillNumber:   req.BillNumber,
	})
	if err != nil {
		h.log.Error("qr generation failed", zap.Float64("amount", req.Amount), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"qr_code": qr.Payload,
		"md5":     qr.MD5,
		"status":  "success",
	})
}

func (h *ProxyHandler) CheckPayment(c *gin.Context) {
	md5 := strings.TrimSpace(c.Param("md5"))
	if md5 == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "md5 is required"})
		return
	}

	status, err := h.gateway.CheckPayment(c.Request.Context(), md5)
	if err != nil {
		h.log.Warn("payment check failed", zap.String("md5", md5), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	if status == khqr.StatusPaid {
		c.JSON(http.StatusOK, gin.H{"responseCode": 0})
		return
	}
	c.JSON(http.StatusOK, gin.H{"responseCode": 1, "status": "UNPAID"})
}

// NewProxyRouter builds the standalone proxy server routes.
func NewProxyRouter(h *ProxyHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/create_qr", h.CreateQR)
	r.GET("/check/:md5", h.CheckPayment)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}
