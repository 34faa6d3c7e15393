package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"ratecard-service/internal/models"
	"ratecard-service/internal/service"
	"ratecard-service/internal/store"
	"ratecard-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	rateCards *service.RateCardService
	ledger    *service.Ledger
}

// NewHandler creates a new HTTP handler
func NewHandler(rateCards *service.RateCardService, ledger *service.Ledger) *Handler {
	return &Handler{
		rateCards: rateCards,
		ledger:    ledger,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rc := router.Group("/rate-card")
	{
		rc.GET("/search", h.searchRateCards)
		rc.GET("/performer", h.getPerformerRateCard)
		rc.GET("/resolve", h.resolveItem)
		rc.POST("", h.createRateCard)
		rc.GET("/:id", h.getRateCard)
		rc.PUT("/:id", h.updateRateCard)
		rc.DELETE("/:id", h.deleteRateCard)

		rc.GET("/:id/items", h.listItems)
		rc.POST("/:id/items", h.addItem)
		rc.PUT("/:id/items/:itemId", h.updateItem)
		rc.DELETE("/:id/items/:itemId", h.removeItem)

		rc.POST("/validate-geo-demo", h.validateGeoDemo)
		rc.POST("/apply-item", h.applyItem)

		rc.GET("/transactions", h.listTransactions)
		rc.GET("/transactions/:txId", h.getTransaction)
		rc.POST("/transactions/:txId/refund", h.refundTransaction)

		rc.POST("/convert-legacy", h.convertLegacy)
		rc.GET("/legacy-compatible/:performerId", h.legacyCompatible)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) searchRateCards(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	cards, err := h.rateCards.SearchRateCards(c.Request.Context(), store.RateCardFilter{
		OwnerID:   c.Query("ownerId"),
		OwnerType: c.Query("ownerType"),
		Status:    c.Query("status"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": cards, "total": len(cards)})
}

func (h *Handler) getRateCard(c *gin.Context) {
	card, err := h.rateCards.GetRateCard(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (h *Handler) getPerformerRateCard(c *gin.Context) {
	performerID := c.Query("performerId")
	if performerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "performerId is required"})
		return
	}

	card, err := h.rateCards.ResolveCardForPerformer(c.Request.Context(), performerID,
		buyerContextFromQuery(c), time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (h *Handler) resolveItem(c *gin.Context) {
	ownerID := c.Query("ownerId")
	itemType := models.ItemType(c.Query("type"))
	if ownerID == "" || itemType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ownerId and type are required"})
		return
	}
	ownerType := c.Query("ownerType")
	if ownerType == "" {
		ownerType = models.OwnerTypePerformer
	}

	card, item, err := h.rateCards.ResolveItem(c.Request.Context(), ownerID, ownerType,
		itemType, buyerContextFromQuery(c), time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rateCard": card, "item": item})
}

func (h *Handler) createRateCard(c *gin.Context) {
	var card models.RateCard
	if err := c.ShouldBindJSON(&card); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.rateCards.CreateRateCard(c.Request.Context(), &card); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, card)
}

func (h *Handler) updateRateCard(c *gin.Context) {
	var card models.RateCard
	if err := c.ShouldBindJSON(&card); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	card.ID = c.Param("id")

	if err := h.rateCards.UpdateRateCard(c.Request.Context(), &card); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (h *Handler) deleteRateCard(c *gin.Context) {
	if err := h.rateCards.DeleteRateCard(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *Handler) listItems(c *gin.Context) {
	items, err := h.rateCards.ListItems(c.Request.Context(), c.Param("id"),
		models.ItemType(c.Query("type")), c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (h *Handler) addItem(c *gin.Context) {
	var item models.Item
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	item.RateCardID = c.Param("id")

	if err := h.rateCards.AddItem(c.Request.Context(), &item); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *Handler) updateItem(c *gin.Context) {
	var item models.Item
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	item.RateCardID = c.Param("id")
	item.ID = c.Param("itemId")

	if err := h.rateCards.UpdateItem(c.Request.Context(), &item); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) removeItem(c *gin.Context) {
	if err := h.rateCards.RemoveItem(c.Request.Context(), c.Param("id"), c.Param("itemId")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

type validateGeoDemoRequest struct {
	GeoDemo     models.GeoDemo      `json:"geoDemo"`
	UserContext models.BuyerContext `json:"userContext"`
}

func (h *Handler) validateGeoDemo(c *gin.Context) {
	var req validateGeoDemoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	match, specificity, err := h.rateCards.ValidateGeoDemo(req.GeoDemo, req.UserContext)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"isMatch": match, "specificity": specificity})
}

func (h *Handler) applyItem(c *gin.Context) {
	var req service.ApplyItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	tx, err := h.ledger.ApplyItem(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

func (h *Handler) listTransactions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	txs, err := h.ledger.SearchTransactions(c.Request.Context(), store.TransactionFilter{
		BuyerID:    c.Query("buyerId"),
		SellerID:   c.Query("sellerId"),
		RateCardID: c.Query("rateCardId"),
		Status:     c.Query("status"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": txs, "total": len(txs)})
}

func (h *Handler) getTransaction(c *gin.Context) {
	tx, err := h.ledger.GetTransaction(c.Request.Context(), c.Param("txId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

func (h *Handler) refundTransaction(c *gin.Context) {
	tx, err := h.ledger.Refund(c.Request.Context(), c.Param("txId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

type convertLegacyRequest struct {
	LegacyType string       `json:"legacyType" binding:"required"`
	EntityID   string       `json:"entityId" binding:"required"`
	Price      float64      `json:"price"`
	Currency   string       `json:"currency"`
	Metadata   models.Attrs `json:"metadata"`
}

func (h *Handler) convertLegacy(c *gin.Context) {
	var req convertLegacyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	item, err := h.rateCards.ConvertLegacyPricing(req.LegacyType, req.EntityID, req.Price, req.Currency, req.Metadata)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (h *Handler) legacyCompatible(c *gin.Context) {
	card, err := h.rateCards.GetLegacyCompatibleRateCard(c.Request.Context(), c.Param("performerId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func buyerContextFromQuery(c *gin.Context) models.BuyerContext {
	buyer := models.BuyerContext{
		Country: c.Query("country"),
		Region:  c.Query("region"),
		Segment: c.Query("segment"),
	}
	if ageStr := c.Query("age"); ageStr != "" {
		if age, err := strconv.Atoi(ageStr); err == nil {
			buyer.Age = &age
		}
	}
	return buyer
}

// respondError maps the service error taxonomy onto HTTP status codes
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrConflict), errors.Is(err, models.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "details": err.Error()})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
