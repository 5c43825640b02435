package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/service"
	"checkout-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	cartService        *service.CartService
	couponService      *service.CouponService
	reservationService *service.ReservationService
	orderService       *service.OrderService
}

// NewHandler creates a new HTTP handler
func NewHandler(
	cartService *service.CartService,
	couponService *service.CouponService,
	reservationService *service.ReservationService,
	orderService *service.OrderService,
) *Handler {
	return &Handler{
		cartService:        cartService,
		couponService:      couponService,
		reservationService: reservationService,
		orderService:       orderService,
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

	v1 := router.Group("/api/v1")
	{
		v1.POST("/cart/items", h.addToCart)
		v1.GET("/cart", h.getCart)
		v1.DELETE("/cart/items/:optionId", h.removeCartItem)

		v1.POST("/orders/reserve", h.reserveOrder)
		v1.GET("/orders/reserve", h.activeReservations)
		v1.DELETE("/orders/reserve", h.releaseReservations)
		v1.POST("/orders", h.createOrder)
		v1.GET("/orders", h.listUserOrders)
		v1.GET("/orders/:id", h.getOrder)

		v1.GET("/coupons", h.listCoupons)
		v1.POST("/coupons/:id/issue", h.issueCoupon)
		v1.GET("/users/:id/coupons", h.listUserCoupons)
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

type addToCartRequest struct {
	UserID          int64 `json:"user_id" binding:"required"`
	ProductOptionID int64 `json:"product_option_id" binding:"required"`
	Quantity        int   `json:"quantity" binding:"required,min=1"`
}

// addToCart handles add-to-cart requests
func (h *Handler) addToCart(c *gin.Context) {
	var req addToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.cartService.AddItem(c.Request.Context(), req.UserID, req.ProductOptionID, req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// getCart handles cart listing
func (h *Handler) getCart(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}

	items, err := h.cartService.GetCart(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// removeCartItem handles explicit cart line removal
func (h *Handler) removeCartItem(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}
	optionID, err := strconv.ParseInt(c.Param("optionId"), 10, 64)
	if err != nil {
		badRequest(c, err)
		return
	}

	if err := h.cartService.RemoveItem(c.Request.Context(), userID, optionID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type reserveOrderRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// reserveOrder places holds on the user's cart contents
func (h *Handler) reserveOrder(c *gin.Context) {
	var req reserveOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	lines, err := h.reservationService.ReserveCart(c.Request.Context(), req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"reservations": lines})
}

// activeReservations lists the user's unexpired holds
func (h *Handler) activeReservations(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}

	reservations, err := h.reservationService.Active(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reservations": reservations})
}

// releaseReservations cancels the user's active holds
func (h *Handler) releaseReservations(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}

	released, err := h.reservationService.Release(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"released": released})
}

// createOrder handles order creation
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	resp, err := h.orderService.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// listUserOrders handles order history for a user
func (h *Handler) listUserOrders(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}

	orders, err := h.orderService.GetOrdersByUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, err)
		return
	}

	order, items, err := h.orderService.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order, "items": items})
}

// listCoupons handles coupon listing
func (h *Handler) listCoupons(c *gin.Context) {
	coupons, err := h.couponService.ListCoupons(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"coupons": coupons})
}

type issueCouponRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// issueCoupon handles first-come-first-served coupon issuance
func (h *Handler) issueCoupon(c *gin.Context) {
	couponID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, err)
		return
	}

	var req issueCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	uc, err := h.couponService.IssueCoupon(c.Request.Context(), couponID, req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user_coupon": uc})
}

// listUserCoupons handles user coupon history
func (h *Handler) listUserCoupons(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, err)
		return
	}

	ucs, err := h.couponService.ListUserCoupons(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_coupons": ucs})
}

func queryUserID(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		badRequest(c, err)
		return 0, false
	}
	return userID, true
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request",
		"details": err.Error(),
	})
}

// writeError maps a domain error to its stable HTTP signal: exhausted
// resources conflict, violated preconditions are unprocessable, missing
// resources are not found and stale ones are gone.
func writeError(c *gin.Context, err error) {
	code := models.ErrCode(err)
	if code == "" {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal error",
			"details": err.Error(),
		})
		return
	}
	c.JSON(statusFor(err), gin.H{
		"code":  code,
		"error": err.Error(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrCouponOutOfStock),
		errors.Is(err, models.ErrInsufficientAvailableStock),
		errors.Is(err, models.ErrInsufficientStock),
		errors.Is(err, models.ErrInsufficientBalance),
		errors.Is(err, models.ErrCartCapExceeded):
		return http.StatusConflict

	case errors.Is(err, models.ErrCouponExpired),
		errors.Is(err, models.ErrReservationExpired):
		return http.StatusGone

	case errors.Is(err, models.ErrCouponNotOwned):
		return http.StatusForbidden

	case errors.Is(err, models.ErrUserNotFound),
		errors.Is(err, models.ErrProductOptionNotFound),
		errors.Is(err, models.ErrCouponNotFound),
		errors.Is(err, models.ErrUserCouponNotFound),
		errors.Is(err, models.ErrReservationNotFound),
		errors.Is(err, models.ErrOrderNotFound),
		errors.Is(err, models.ErrStockNotFound),
		errors.Is(err, models.ErrBalanceNotFound),
		errors.Is(err, models.ErrCartItemNotFound):
		return http.StatusNotFound

	default:
		return http.StatusUnprocessableEntity
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
