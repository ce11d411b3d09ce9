// Package httpapi — HTTP-обёртка над фасадом заказов.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodorders/internal/domain"
)

// OrderService — операции фасада, которые использует HTTP-слой.
type OrderService interface {
	Create(ctx context.Context, in domain.NewOrder) (domain.Order, error)
	ListAll(ctx context.Context) ([]domain.Order, error)
	FindByID(ctx context.Context, id int64) (domain.Order, error)
	DeleteByID(ctx context.Context, id int64) (bool, error)
}

type handler struct {
	orders OrderService
	logger *log.Entry
}

// NewRouter регистрирует маршруты /orders.
func NewRouter(orders OrderService, logger *log.Entry) *gin.Engine {
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	h := &handler{orders: orders, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), Logger(logger))

	r.POST("/orders", h.create)
	r.GET("/orders", h.list)
	r.GET("/orders/:id", h.get)
	r.DELETE("/orders/:id", h.delete)
	return r
}

func (h *handler) create(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid json: " + err.Error()})
		return
	}

	order, err := h.orders.Create(c.Request.Context(), req.toDomain())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *handler) list(c *gin.Context) {
	orders, err := h.orders.ListAll(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *handler) get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	order, err := h.orders.FindByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *handler) delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	deleted, err := h.orders.DeleteByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, deleteResponse{Deleted: false})
		return
	}
	c.JSON(http.StatusOK, deleteResponse{Deleted: true})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "order id must be a positive integer"})
		return 0, false
	}
	return id, true
}

// fail отображает категорию ошибки в HTTP-статус. Детали сбоя хранилища
// наружу не отдаются.
func (h *handler) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: domain.ErrOrderNotFound.Error()})
	default:
		c.JSON(http.StatusInternalServerError, errorResponse{Error: domain.ErrPersistence.Error()})
	}
}
