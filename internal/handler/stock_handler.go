package handler

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"ims-backend/internal/middleware"
	"ims-backend/internal/model"
	"ims-backend/internal/service"
	"ims-backend/pkg/pagination"
	"ims-backend/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type StockHandler struct {
	ledger service.StockLedger
}

func NewStockHandler(ledger service.StockLedger) *StockHandler {
	return &StockHandler{ledger: ledger}
}

func (h *StockHandler) RegisterRoutes(router *gin.RouterGroup) {
	stock := router.Group("/api/stock")
	{
		stock.GET("", middleware.RequirePermission("stock.read"), h.ListItems)
		stock.POST("", middleware.RequirePermission("stock.write"), h.CreateItem)
		stock.GET("/:id/transactions", middleware.RequirePermission("stock.read"), h.ItemTransactions)
		stock.POST("/:id/receive", middleware.RequirePermission("stock.write"), h.Receive)
		stock.GET("/reservations/stale", middleware.RequirePermission("stock.write"), h.StaleReservations)
		stock.POST("/reservations/:id/release", middleware.RequirePermission("stock.write"), h.ReleaseReservation)
	}
}

type createStockItemRequest struct {
	ItemCode string `json:"item_code" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Unit     string `json:"unit"`
	Location string `json:"location"`
	Quantity int    `json:"quantity" binding:"gte=0"`
}

type receiveStockRequest struct {
	Quantity int    `json:"quantity" binding:"required,gt=0"`
	Note     string `json:"note"`
}

// ListItems returns the stock catalog with on-hand and available quantities
// @Summary      List stock items
// @Tags         stock
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Router       /api/stock [get]
func (h *StockHandler) ListItems(c *gin.Context) {
	params := pagination.Parse(c)

	items, total, err := h.ledger.ListItems(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"items": items,
		"total": total,
		"page":  params.Page,
		"limit": params.Limit,
	}))
}

// CreateItem adds a stock item to the catalog
// @Summary      Create stock item
// @Tags         stock
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      createStockItemRequest  true  "Stock item"
// @Success      201      {object}  response.Response{data=model.StockItem}
// @Failure      400      {object}  response.Response
// @Router       /api/stock [post]
func (h *StockHandler) CreateItem(c *gin.Context) {
	var req createStockItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	item := &model.StockItem{
		ItemCode:          req.ItemCode,
		Name:              req.Name,
		Unit:              req.Unit,
		Location:          req.Location,
		OnHandQuantity:    req.Quantity,
		AvailableQuantity: req.Quantity,
	}
	if err := h.ledger.CreateItem(c.Request.Context(), item); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, item))
}

// ItemTransactions returns the movement ledger of one stock item
// @Summary      Stock item transactions
// @Tags         stock
// @Produce      json
// @Security     BearerAuth
// @Param        id     path      string  true   "Stock item ID"
// @Param        limit  query     int     false  "Max rows (default 50)"
// @Success      200    {object}  response.Response
// @Router       /api/stock/{id}/transactions [get]
func (h *StockHandler) ItemTransactions(c *gin.Context) {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid stock item id"))
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	txs, err := h.ledger.ItemTransactions(c.Request.Context(), itemID, limit)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, txs))
}

// Receive records a stock intake
// @Summary      Receive stock
// @Description  Raises on-hand and available quantity and writes an IN ledger entry
// @Tags         stock
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string               true  "Stock item ID"
// @Param        payload  body      receiveStockRequest  true  "Intake"
// @Success      200      {object}  response.Response{data=model.StockItem}
// @Failure      400      {object}  response.Response
// @Router       /api/stock/{id}/receive [post]
func (h *StockHandler) Receive(c *gin.Context) {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid stock item id"))
		return
	}

	var req receiveStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	actorID, err := uuid.Parse(currentUserID(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid user id in token"))
		return
	}

	item, err := h.ledger.Receive(c.Request.Context(), itemID, req.Quantity, actorID, req.Note)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, item))
}

// staleAgeDefaultHours reads STALE_RESERVATION_HOURS, falling back to 72.
func staleAgeDefaultHours() int {
	if v := os.Getenv("STALE_RESERVATION_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 72
}

// StaleReservations lists active reservations older than max_age_hours
// @Summary      List stale reservations
// @Description  Active holds older than the given age, for manual review; nothing is auto-released
// @Tags         stock
// @Produce      json
// @Security     BearerAuth
// @Param        max_age_hours  query     int  false  "Minimum age in hours (default STALE_RESERVATION_HOURS, or 72)"
// @Success      200            {object}  response.Response
// @Router       /api/stock/reservations/stale [get]
func (h *StockHandler) StaleReservations(c *gin.Context) {
	hours, _ := strconv.Atoi(c.Query("max_age_hours"))
	if hours <= 0 {
		hours = staleAgeDefaultHours()
	}

	reservations, err := h.ledger.StaleReservations(c.Request.Context(), time.Duration(hours)*time.Hour)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, reservations))
}

// ReleaseReservation manually releases one active reservation
// @Summary      Release reservation
// @Description  Returns a held quantity to available stock
// @Tags         stock
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Reservation ID"
// @Success      200  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/stock/reservations/{id}/release [post]
func (h *StockHandler) ReleaseReservation(c *gin.Context) {
	resID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid reservation id"))
		return
	}

	actorID, err := uuid.Parse(currentUserID(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid user id in token"))
		return
	}

	if err := h.ledger.Release(c.Request.Context(), resID, actorID); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Reservation released"))
}
