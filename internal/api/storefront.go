package api

import (
	"net/http"
	"strings"

	"storefront/internal/models"
	"storefront/internal/service"
	"storefront/internal/validation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type addCartItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) listCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": models.Categories})
}

// listProducts returns the active catalog, optionally filtered
func (h *Handler) listProducts(c *gin.Context) {
	products := h.catalog.List(service.ProductFilter{
		Category: c.Query("category"),
		Query:    c.Query("q"),
	})
	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"count":    len(products),
	})
}

// getProduct hides soft-deleted products from shoppers
func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.catalog.Get(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !product.IsActive {
		h.writeError(c, service.ErrProductNotFound)
		return
	}
	c.JSON(http.StatusOK, product)
}

// cartID reads the cart header, minting a new id when it is missing or malformed
func cartID(c *gin.Context) string {
	id := c.GetHeader(cartHeader)
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	c.Header(cartHeader, id)
	return id
}

func (h *Handler) getCart(c *gin.Context) {
	summary, err := h.carts.Summary(c.Request.Context(), cartID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) clearCart(c *gin.Context) {
	if err := h.carts.Clear(c.Request.Context(), cartID(c)); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) addCartItem(c *gin.Context) {
	var req addCartItemRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}

	id := cartID(c)
	if _, err := h.carts.AddItem(c.Request.Context(), id, req.ProductID, req.Quantity); err != nil {
		h.writeError(c, err)
		return
	}
	h.respondCart(c, id)
}

func (h *Handler) updateCartItem(c *gin.Context) {
	var req updateCartItemRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}

	id := cartID(c)
	if _, err := h.carts.UpdateQuantity(c.Request.Context(), id, c.Param("productId"), req.Quantity); err != nil {
		h.writeError(c, err)
		return
	}
	h.respondCart(c, id)
}

func (h *Handler) removeCartItem(c *gin.Context) {
	id := cartID(c)
	if _, err := h.carts.RemoveItem(c.Request.Context(), id, c.Param("productId")); err != nil {
		h.writeError(c, err)
		return
	}
	h.respondCart(c, id)
}

func (h *Handler) respondCart(c *gin.Context, id string) {
	summary, err := h.carts.Summary(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// checkout turns the caller's cart into a pending order
func (h *Handler) checkout(c *gin.Context) {
	var req service.CustomerData
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}

	order, err := h.orders.Checkout(c.Request.Context(), cartID(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// getOrder is the shopper's order lookup. The email given at checkout must match;
// a mismatch answers 404 so order ids cannot be probed.
func (h *Handler) getOrder(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))

	order, err := h.orders.GetOrder(c.Param("id"))
	if err == nil && (email == "" || !strings.EqualFold(email, order.CustomerEmail)) {
		err = service.ErrOrderNotFound
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
