package api

import (
	"net/http"
	"strconv"
	"time"

	"commerce-core/internal/apperr"
	"commerce-core/internal/models"
	"commerce-core/internal/service"
	"commerce-core/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	jobQueue     *service.JobQueue
	orderBuilder *service.OrderBuilder
	submitter    *service.FulfillmentSubmitter
	reconciler   *service.PaymentReconciler
}

// NewHandler creates a new HTTP handler
func NewHandler(jobQueue *service.JobQueue, orderBuilder *service.OrderBuilder, submitter *service.FulfillmentSubmitter, reconciler *service.PaymentReconciler) *Handler {
	return &Handler{
		jobQueue:     jobQueue,
		orderBuilder: orderBuilder,
		submitter:    submitter,
		reconciler:   reconciler,
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

	router.POST("/jobs/:type", h.createJob)
	router.GET("/jobs/:id", h.getJob)
	router.DELETE("/jobs/:id", h.cancelJob)

	router.POST("/webhook/payment/:orderId", h.paymentWebhook)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/checkout", h.checkout)
		v1.GET("/orders/:id", h.getOrder)
		v1.GET("/products/:variantId", h.getProduct)
		v1.GET("/fulfillment/:externalId", h.getFulfillmentStatus)
	}
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// createJob enqueues a pipeline job. Always a fast acknowledgement:
// execution happens in the worker pool, never inline.
func (h *Handler) createJob(c *gin.Context) {
	var params models.JobParams
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&params); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job params", "details": err.Error()})
			return
		}
	}

	job, err := h.jobQueue.CreateJob(c.Request.Context(), c.Param("type"), params)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id": job.ID,
		"status": "queued",
		"type":   job.Type,
	})
}

func (h *Handler) getJob(c *gin.Context) {
	jobID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID"})
		return
	}

	job, err := h.jobQueue.GetJob(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

func (h *Handler) cancelJob(c *gin.Context) {
	jobID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID"})
		return
	}

	job, err := h.jobQueue.CancelJob(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// checkout creates the order and, for pay-on-delivery methods, submits
// fulfillment synchronously. The response separates order creation from
// fulfillment outcome: a downstream logistics failure never hides a
// successfully placed order.
func (h *Handler) checkout(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	order, items, err := h.orderBuilder.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{
		"order": order,
		"items": items,
	}

	if models.PayOnDelivery(order.PaymentMethod) {
		result, err := h.submitter.SubmitOrder(c.Request.Context(), order.ID)
		if err != nil {
			resp["fulfillment"] = gin.H{"success": false, "error": err.Error()}
		} else {
			resp["fulfillment"] = result
		}
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) getOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	order, items, err := h.orderBuilder.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order": order,
		"items": items,
	})
}

func (h *Handler) getProduct(c *gin.Context) {
	variantID, err := strconv.ParseInt(c.Param("variantId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid variant ID"})
		return
	}

	view, err := h.orderBuilder.GetVariantView(c.Request.Context(), variantID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *Handler) getFulfillmentStatus(c *gin.Context) {
	status, err := h.submitter.GetExternalStatus(c.Request.Context(), c.Param("externalId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

type paymentWebhookBody struct {
	TransactionID string `json:"transaction_id" binding:"required"`
	Status        string `json:"status" binding:"required"`
}

// paymentWebhook records the gateway's payment state. Returns 200 once
// the payment status itself is durably recorded, even if the downstream
// fulfillment submission failed; that failure is reported in the body.
func (h *Handler) paymentWebhook(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("orderId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var body paymentWebhookBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook body", "details": err.Error()})
		return
	}

	result, err := h.reconciler.HandlePaymentWebhook(c.Request.Context(), orderID, body.TransactionID, body.Status)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		// Anything else means the payment status was not recorded; a
		// non-2xx makes the gateway redeliver.
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func respondError(c *gin.Context, err error) {
	switch {
	case apperr.IsKind(err, apperr.KindValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case apperr.IsKind(err, apperr.KindNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case apperr.IsKind(err, apperr.KindInvalidState):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case apperr.IsKind(err, apperr.KindUpstream):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
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
