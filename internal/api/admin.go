package api

import (
	"net/http"
	"strconv"
	"time"

	"storefront/internal/service"
	"storefront/internal/validation"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type statusRequest struct {
	Status       string     `json:"status" validate:"required"`
	ShippingDate *time.Time `json:"shipping_date"`
}

type shipRequest struct {
	ShippingDate *time.Time `json:"shipping_date"`
}

type discountRequest struct {
	DiscountPercent float64 `json:"discount_percent" validate:"gte=0,lte=100"`
}

type priceRequest struct {
	RetailPrice float64 `json:"retail_price" validate:"gte=0"`
}

type stockRequest struct {
	Quantity int    `json:"quantity" validate:"required"`
	Reason   string `json:"reason" validate:"omitempty,oneof=manual_adjustment restock damage return correction"`
	Notes    string `json:"notes" validate:"max=1000"`
}

type hardDeleteRequest struct {
	Confirmation string `json:"confirmation" validate:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}

	session, err := h.sessions.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.sessions.SignOut(c.Request.Context()); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orders.ListOrders(c.Query("status"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"count":  len(orders),
	})
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	var req statusRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}

	order, err := h.orders.UpdateOrderStatus(c.Request.Context(), c.Param("id"), req.Status, req.ShippingDate)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// shipOrder accepts an empty body
func (h *Handler) shipOrder(c *gin.Context) {
	var req shipRequest
	if c.Request.ContentLength > 0 {
		if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
			return
		}
	}

	order, err := h.orders.MarkAsShipped(c.Request.Context(), c.Param("id"), req.ShippingDate)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) deleteOrder(c *gin.Context) {
	if err := h.orders.DeleteOrder(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) adminListProducts(c *gin.Context) {
	products := h.catalog.List(service.ProductFilter{
		Category:        c.Query("category"),
		Query:           c.Query("q"),
		IncludeInactive: c.DefaultQuery("include_inactive", "true") == "true",
	})
	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"count":    len(products),
	})
}

func (h *Handler) createProduct(c *gin.Context) {
	var req service.NewProduct
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}

	product, err := h.catalog.Add(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *Handler) updateProduct(c *gin.Context) {
	var req service.ProductUpdate
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}

	product, err := h.catalog.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) setDiscount(c *gin.Context) {
	var req discountRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}

	product, err := h.catalog.SetDiscount(c.Request.Context(), c.Param("id"), req.DiscountPercent)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) setRetailPrice(c *gin.Context) {
	var req priceRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}

	product, err := h.catalog.SetRetailPrice(c.Request.Context(), c.Param("id"), req.RetailPrice)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// adjustStock records a manual stock correction in the inventory log
func (h *Handler) adjustStock(c *gin.Context) {
	var req stockRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}

	txn, err := h.inventory.UpdateStockManually(c.Request.Context(), c.Param("id"), req.Quantity, req.Reason, req.Notes)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, txn)
}

func (h *Handler) removeProduct(c *gin.Context) {
	product, err := h.catalog.Remove(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) hardDeleteProduct(c *gin.Context) {
	var req hardDeleteRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}

	if err := h.catalog.HardDelete(c.Request.Context(), c.Param("id"), req.Confirmation); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) refreshCatalog(c *gin.Context) {
	changed, err := h.catalog.RefreshFromRemote(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refreshed": changed})
}

func (h *Handler) inventoryReport(c *gin.Context) {
	c.JSON(http.StatusOK, h.inventory.Report(c.Request.Context()))
}

func (h *Handler) inventoryTransactions(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}

	txns, err := h.inventory.Transactions(c.Request.Context(), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transactions": txns,
		"count":        len(txns),
	})
}
