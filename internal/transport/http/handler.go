package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/Reachvip123/telegram-store-bot/internal/models"
	"github.com/Reachvip123/telegram-store-bot/internal/repository"
	"github.com/Reachvip123/telegram-store-bot/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StoreHandler is the REST bridge the chat front end and the admin
// tooling talk to. It owns no state; everything goes through the
// repositories and the fulfillment engine.
type StoreHandler struct {
	repo   *repository.Repository
	orders service.FulfillmentService
	log    *zap.Logger
}

func NewStoreHandler(repo *repository.Repository, orders service.FulfillmentService, log *zap.Logger) *StoreHandler {
	return &StoreHandler{
		repo:   repo,
		orders: orders,
		log:    log,
	}
}

type variantView struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Price       string  `json:"price"`
	TutorialURL *string `json:"tutorial_url,omitempty"`
}

type productView struct {
	ID          int           `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Sold        int64         `json:"sold"`
	Variants    []variantView `json:"variants"`
}

func toProductView(p *models.Product) productView {
	view := productView{
		ID:          p.ExternalID,
		Name:        p.Name,
		Description: p.Description,
		Sold:        p.Sold,
		Variants:    make([]variantView, 0, len(p.Variants)),
	}
	for _, v := range p.Variants {
		view.Variants = append(view.Variants, variantView{
			Code:        v.Code,
			Name:        v.Name,
			Price:       v.Price.StringFixed(2),
			TutorialURL: v.TutorialURL,
		})
	}
	return view
}

func (h *StoreHandler) ListProducts(c *gin.Context) {
	products, err := h.repo.Products.List(c.Request.Context())
	if err != nil {
		h.log.Error("failed to list products", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	views := make([]productView, 0, len(products))
	for i := range products {
		views = append(views, toProductView(&products[i]))
	}
	c.JSON(http.StatusOK, gin.H{"products": views})
}

// resolveProduct loads a product by its buyer-facing numeric id and writes
// the error response itself when the lookup fails.
func (h *StoreHandler) resolveProduct(c *gin.Context) (*models.Product, bool) {
	externalID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product id must be a number"})
		return nil, false
	}
	p, err := h.repo.Products.GetByExternalID(c.Request.Context(), externalID)
	if err != nil {
		h.log.Error("product lookup failed", zap.Int("id", externalID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return nil, false
	}
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return nil, false
	}
	return p, true
}

func (h *StoreHandler) GetProduct(c *gin.Context) {
	p, ok := h.resolveProduct(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toProductView(p))
}

type createVariantRequest struct {
	Code        string  `json:"code" binding:"required"`
	Name        string  `json:"name" binding:"required"`
	Price       string  `json:"price" binding:"required"`
	TutorialURL *string `json:"tutorial_url"`
}

type createProductRequest struct {
	Name        string                 `json:"name" binding:"required"`
	Description string                 `json:"description"`
	Variants    []createVariantRequest `json:"variants" binding:"required,min=1"`
}

func (h *StoreHandler) CreateProduct(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("invalid create product request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	externalID, err := h.repo.Products.NextExternalID(ctx)
	if err != nil {
		h.log.Error("failed to allocate product id", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	p := &models.Product{
		ExternalID:  externalID,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
	}
	for _, v := range req.Variants {
		price, err := decimal.NewFromString(strings.TrimSpace(v.Price))
		if err != nil || price.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid price for variant " + v.Code})
			return
		}
		p.Variants = append(p.Variants, models.Variant{
			Code:        strings.ToUpper(strings.TrimSpace(v.Code)),
			Name:        strings.TrimSpace(v.Name),
			Price:       price,
			TutorialURL: v.TutorialURL,
		})
	}

	if err := h.repo.Products.Create(ctx, p); err != nil {
		h.log.Error("failed to create product", zap.String("name", p.Name), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	h.log.Info("product created", zap.Int("id", p.ExternalID), zap.String("name", p.Name))
	c.JSON(http.StatusCreated, toProductView(p))
}

type quickProductRequest struct {
	Line string `json:"line" binding:"required"`
}

// QuickCreateProduct accepts the admin one-liner
// "Name | Variant Name | Price | Description". The variant code is the
// upper-cased variant name with spaces stripped, truncated to three
// characters.
func (h *StoreHandler) QuickCreateProduct(c *gin.Context) {
	var req quickProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	parts := strings.Split(req.Line, "|")
	if len(parts) < 3 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format: Name | Variant | Price | Description"})
		return
	}
	name := strings.TrimSpace(parts[0])
	variantName := strings.TrimSpace(parts[1])
	priceRaw := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(parts[2]), "$"))
	description := ""
	if len(parts) > 3 {
		description = strings.TrimSpace(parts[3])
	}
	if name == "" || variantName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and variant are required"})
		return
	}
	price, err := decimal.NewFromString(priceRaw)
	if err != nil || price.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid price"})
		return
	}

	code := strings.ToUpper(strings.ReplaceAll(variantName, " ", ""))
	if len(code) > 3 {
		code = code[:3]
	}

	ctx := c.Request.Context()
	externalID, err := h.repo.Products.NextExternalID(ctx)
	if err != nil {
		h.log.Error("failed to allocate product id", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	p := &models.Product{
		ExternalID:  externalID,
		Name:        name,
		Description: description,
		Variants: []models.Variant{{
			Code:  code,
			Name:  variantName,
			Price: price,
		}},
	}
	if err := h.repo.Products.Create(ctx, p); err != nil {
		h.log.Error("failed to create product", zap.String("name", name), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	h.log.Info("product created from quick line", zap.Int("id", p.ExternalID), zap.String("name", name))
	c.JSON(http.StatusCreated, toProductView(p))
}

type updateProductRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (h *StoreHandler) UpdateProduct(c *gin.Context) {
	p, ok := h.resolveProduct(c)
	if !ok {
		return
	}

	var req updateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	fields := map[string]any{}
	if req.Name != nil {
		fields["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		fields["description"] = strings.TrimSpace(*req.Description)
	}
	if len(fields) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	if err := h.repo.Products.UpdateFields(c.Request.Context(), p.ID, fields); err != nil {
		h.log.Error("failed to update product", zap.Int("id", p.ExternalID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

func (h *StoreHandler) DeleteProduct(c *gin.Context) {
	p, ok := h.resolveProduct(c)
	if !ok {
		return
	}

	deleted, err := h.repo.Products.Delete(c.Request.Context(), p.ID)
	if err != nil {
		h.log.Error("failed to delete product", zap.Int("id", p.ExternalID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}
	h.log.Info("product deleted", zap.Int("id", p.ExternalID))
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *StoreHandler) UpsertVariant(c *gin.Context) {
	p, ok := h.resolveProduct(c)
	if !ok {
		return
	}

	var req createVariantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	price, err := decimal.NewFromString(strings.TrimSpace(req.Price))
	if err != nil || price.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid price"})
		return
	}

	v := &models.Variant{
		ProductID:   p.ID,
		Code:        strings.ToUpper(strings.TrimSpace(req.Code)),
		Name:        strings.TrimSpace(req.Name),
		Price:       price,
		TutorialURL: req.TutorialURL,
	}
	if err := h.repo.Products.UpsertVariant(c.Request.Context(), v); err != nil {
		h.log.Error("failed to upsert variant", zap.Int("product", p.ExternalID), zap.String("code", v.Code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, variantView{Code: v.Code, Name: v.Name, Price: v.Price.StringFixed(2), TutorialURL: v.TutorialURL})
}

func (h *StoreHandler) DeleteVariant(c *gin.Context) {
	p, ok := h.resolveProduct(c)
	if !ok {
		return
	}

	code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
	deleted, err := h.repo.Products.DeleteVariant(c.Request.Context(), p.ID, code)
	if err != nil {
		h.log.Error("failed to delete variant", zap.Int("product", p.ExternalID), zap.String("code", code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "variant not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

type setTutorialRequest struct {
	URL *string `json:"url"`
}

func (h *StoreHandler) SetVariantTutorial(c *gin.Context) {
	p, ok := h.resolveProduct(c)
	if !ok {
		return
	}

	var req setTutorialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
	updated, err := h.repo.Products.SetVariantTutorial(c.Request.Context(), p.ID, code, req.URL)
	if err != nil {
		h.log.Error("failed to set tutorial", zap.Int("product", p.ExternalID), zap.String("code", code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if !updated {
		c.JSON(http.StatusNotFound, gin.H{"error": "variant not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

// resolveVariant resolves :id/:code path params into a product and one of
// its variants.
func (h *StoreHandler) resolveVariant(c *gin.Context) (*models.Product, *models.Variant, bool) {
	p, ok := h.resolveProduct(c)
	if !ok {
		return nil, nil, false
	}
	code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
	v, err := h.repo.Products.GetVariant(c.Request.Context(), p.ID, code)
	if err != nil {
		h.log.Error("variant lookup failed", zap.Int("product", p.ExternalID), zap.String("code", code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return nil, nil, false
	}
	if v == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "variant not found"})
		return nil, nil, false
	}
	return p, v, true
}

func (h *StoreHandler) StockOverview(c *gin.Context) {
	ctx := c.Request.Context()
	products, err := h.repo.Products.List(ctx)
	if err != nil {
		h.log.Error("failed to list products", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	type stockRow struct {
		ProductID int    `json:"product_id"`
		Product   string `json:"product"`
		Variant   string `json:"variant"`
		Available int64  `json:"available"`
	}
	rows := make([]stockRow, 0)
	for i := range products {
		p := &products[i]
		for _, v := range p.Variants {
			available, err := h.repo.Stock.CountAvailable(ctx, p.ID, v.ID)
			if err != nil {
				h.log.Error("failed to count stock", zap.Int("product", p.ExternalID), zap.String("code", v.Code), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}
			rows = append(rows, stockRow{
				ProductID: p.ExternalID,
				Product:   p.Name,
				Variant:   v.Code,
				Available: available,
			})
		}
	}
	c.JSON(http.StatusOK, gin.H{"stock": rows})
}

func (h *StoreHandler) GetStock(c *gin.Context) {
	p, v, ok := h.resolveVariant(c)
	if !ok {
		return
	}
	available, err := h.repo.Stock.CountAvailable(c.Request.Context(), p.ID, v.ID)
	if err != nil {
		h.log.Error("failed to count stock", zap.Int("product", p.ExternalID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"product_id": p.ExternalID,
		"variant":    v.Code,
		"available":  available,
	})
}

type addStockRequest struct {
	// Lines are raw "login, password, extra" payloads, one credential each.
	Lines []string `json:"lines" binding:"required,min=1"`
}

func (h *StoreHandler) AddStock(c *gin.Context) {
	p, v, ok := h.resolveVariant(c)
	if !ok {
		return
	}

	var req addStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	lines := make([]string, 0, len(req.Lines))
	for _, l := range req.Lines {
		if trimmed := strings.TrimSpace(l); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	if len(lines) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no usable lines"})
		return
	}

	if err := h.repo.Stock.Append(c.Request.Context(), p.ID, v.ID, lines); err != nil {
		h.log.Error("failed to add stock", zap.Int("product", p.ExternalID), zap.String("code", v.Code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	h.log.Info("stock added",
		zap.Int("product", p.ExternalID),
		zap.String("code", v.Code),
		zap.Int("lines", len(lines)),
	)
	c.JSON(http.StatusOK, gin.H{"added": len(lines)})
}

func (h *StoreHandler) ClearStock(c *gin.Context) {
	p, v, ok := h.resolveVariant(c)
	if !ok {
		return
	}
	removed, err := h.repo.Stock.Clear(c.Request.Context(), p.ID, v.ID)
	if err != nil {
		h.log.Error("failed to clear stock", zap.Int("product", p.ExternalID), zap.String("code", v.Code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	h.log.Info("stock cleared", zap.Int("product", p.ExternalID), zap.String("code", v.Code), zap.Int64("removed", removed))
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (h *StoreHandler) ListUsers(c *gin.Context) {
	ids, err := h.repo.Users.ListChatIDs(c.Request.Context())
	if err != nil {
		h.log.Error("failed to list users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat_ids": ids, "count": len(ids)})
}

func (h *StoreHandler) GetUser(c *gin.Context) {
	chatID, err := strconv.ParseInt(c.Param("chat_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chat id must be a number"})
		return
	}
	u, err := h.repo.Users.Get(c.Request.Context(), chatID)
	if err != nil {
		h.log.Error("user lookup failed", zap.Int64("chat", chatID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"chat_id":   u.ChatID,
		"username":  u.Username,
		"spent":     u.Spent.StringFixed(2),
		"joined_at": u.JoinedAt,
	})
}

func (h *StoreHandler) ListUserReceipts(c *gin.Context) {
	chatID, err := strconv.ParseInt(c.Param("chat_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chat id must be a number"})
		return
	}
	receipts, err := h.repo.Receipts.ListByChat(c.Request.Context(), chatID, 20)
	if err != nil {
		h.log.Error("failed to list receipts", zap.Int64("chat", chatID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	type receiptView struct {
		TrxID    string `json:"trx_id"`
		Product  string `json:"product"`
		Variant  string `json:"variant"`
		Quantity int    `json:"quantity"`
		Total    string `json:"total"`
	}
	views := make([]receiptView, 0, len(receipts))
	for _, r := range receipts {
		views = append(views, receiptView{
			TrxID:    r.TrxID,
			Product:  r.ProductName,
			Variant:  r.VariantName,
			Quantity: r.Quantity,
			Total:    r.Total.StringFixed(2),
		})
	}
	c.JSON(http.StatusOK, gin.H{"receipts": views})
}

func (h *StoreHandler) GetReceipt(c *gin.Context) {
	rec, err := h.repo.Receipts.GetByTrxID(c.Request.Context(), c.Param("trx"))
	if err != nil {
		h.log.Error("receipt lookup failed", zap.String("trx", c.Param("trx")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "receipt not found"})
		return
	}

	payloads := make([]string, 0, len(rec.Items))
	for _, item := range rec.Items {
		payloads = append(payloads, item.Payload)
	}
	c.JSON(http.StatusOK, gin.H{
		"trx_id":     rec.TrxID,
		"chat_id":    rec.ChatID,
		"product":    rec.ProductName,
		"variant":    rec.VariantName,
		"quantity":   rec.Quantity,
		"unit_price": rec.UnitPrice.StringFixed(2),
		"total":      rec.Total.StringFixed(2),
		"items":      payloads,
		"created_at": rec.CreatedAt,
	})
}

func (h *StoreHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	users, err := h.repo.Users.Count(ctx)
	if err != nil {
		h.log.Error("stats query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	sold, err := h.repo.Products.TotalSold(ctx)
	if err != nil {
		h.log.Error("stats query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	revenue, err := h.repo.Users.TotalSpent(ctx)
	if err != nil {
		h.log.Error("stats query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	receipts, err := h.repo.Receipts.Count(ctx)
	if err != nil {
		h.log.Error("stats query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users":      users,
		"total_sold": sold,
		"revenue":    revenue.StringFixed(2),
		"receipts":   receipts,
	})
}

type orderView struct {
	ID         string `json:"id"`
	ChatID     int64  `json:"chat_id"`
	ProductID  int    `json:"product_id"`
	Product    string `json:"product"`
	Variant    string `json:"variant"`
	UnitPrice  string `json:"unit_price"`
	Quantity   int    `json:"quantity"`
	Total      string `json:"total"`
	Status     string `json:"status"`
	PaymentMD5 string `json:"payment_md5,omitempty"`
	QRPayload  string `json:"qr_payload,omitempty"`
}

func toOrderView(o service.Order) orderView {
	return orderView{
		ID:         o.ID.String(),
		ChatID:     o.ChatID,
		ProductID:  o.ExternalID,
		Product:    o.ProductName,
		Variant:    o.VariantCode,
		UnitPrice:  o.UnitPrice.StringFixed(2),
		Quantity:   o.Quantity,
		Total:      o.Total().StringFixed(2),
		Status:     string(o.Status),
		PaymentMD5: o.PaymentMD5,
		QRPayload:  o.QRPayload,
	}
}

// orderError maps engine sentinels onto HTTP statuses.
func (h *StoreHandler) orderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrVariantNotFound),
		errors.Is(err, service.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrQuantityInvalid),
		errors.Is(err, service.ErrOrderNotDraft),
		errors.Is(err, service.ErrOrderFinished):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrSoldOut):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrPaymentUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		h.log.Error("order operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

type startOrderRequest struct {
	ChatID      int64  `json:"chat_id" binding:"required"`
	Username    string `json:"username"`
	ProductID   int    `json:"product_id" binding:"required"`
	VariantCode string `json:"variant_code" binding:"required"`
	Quantity    int    `json:"quantity"`
}

func (h *StoreHandler) StartOrder(c *gin.Context) {
	var req startOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Username == "" {
		req.Username = "Unknown"
	}

	o, err := h.orders.StartOrder(c.Request.Context(), service.StartOrderInput{
		ChatID:      req.ChatID,
		Username:    req.Username,
		ProductID:   req.ProductID,
		VariantCode: req.VariantCode,
		Quantity:    req.Quantity,
	})
	if err != nil {
		h.orderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toOrderView(o))
}

type adjustQuantityRequest struct {
	Delta int `json:"delta" binding:"required"`
}

func (h *StoreHandler) AdjustQuantity(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}
	var req adjustQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	o, err := h.orders.AdjustQuantity(c.Request.Context(), orderID, req.Delta)
	if err != nil {
		h.orderError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderView(o))
}

func (h *StoreHandler) ConfirmOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	o, err := h.orders.Confirm(c.Request.Context(), orderID)
	if err != nil {
		h.orderError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderView(o))
}

func (h *StoreHandler) CancelOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}
	if err := h.orders.Cancel(c.Request.Context(), orderID); err != nil {
		h.orderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

func (h *StoreHandler) GetOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}
	o, ok := h.orders.GetOrder(orderID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	c.JSON(http.StatusOK, toOrderView(o))
}

type forceConfirmRequest struct {
	ChatID      int64  `json:"chat_id" binding:"required"`
	Username    string `json:"username"`
	ProductID   int    `json:"product_id" binding:"required"`
	VariantCode string `json:"variant_code" binding:"required"`
	Quantity    int    `json:"quantity" binding:"required,min=1"`
}

// ForceConfirm delivers without a payment, for manual resolution of
// settlements the poll window missed. Sits behind the same API key as
// the rest of the admin surface.
func (h *StoreHandler) ForceConfirm(c *gin.Context) {
	var req forceConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Username == "" {
		req.Username = "Unknown"
	}

	trxID, err := h.orders.ForceConfirm(c.Request.Context(), service.StartOrderInput{
		ChatID:      req.ChatID,
		Username:    req.Username,
		ProductID:   req.ProductID,
		VariantCode: req.VariantCode,
		Quantity:    req.Quantity,
	})
	if err != nil {
		h.orderError(c, err)
		return
	}

	h.log.Info("forced confirmation",
		zap.Int64("chat", req.ChatID),
		zap.Int("product", req.ProductID),
		zap.String("trx", trxID),
	)
	c.JSON(http.StatusOK, gin.H{"trx_id": trxID})
}
