package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"expiry-tracker/internal/products"
	"expiry-tracker/internal/products/store"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type ProductService interface {
	AddFromInput(ctx context.Context, name, productionDate, shelfLifeDays string) (products.Product, error)
	UpdateFromInput(ctx context.Context, id int64, name, productionDate, shelfLifeDays string) (products.Product, error)
	DeleteByID(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (products.Product, error)
	List(ctx context.Context) ([]products.View, error)
	Subscribe(ctx context.Context) (*store.Subscription, error)
	Today() products.Date
}

type Handler struct {
	service ProductService
}

func NewHandler(svc ProductService) *Handler {
	return &Handler{service: svc}
}

// productRequest mirrors the add/edit form, so every field arrives as text.
type productRequest struct {
	Name           string `json:"name" binding:"required" example:"Milk"`
	ProductionDate string `json:"production_date" example:"2024-01-01"`
	ShelfLifeDays  string `json:"shelf_life_days" example:"7"`
}

type errorResponse struct {
	Error string `json:"error" example:"product not found"`
	Field string `json:"field,omitempty" example:"shelf_life_days"`
}

type listProductsResponse struct {
	Items []products.View `json:"items"`
	Today string          `json:"today" example:"2024-01-05"`
}

// CreateProduct godoc
// @Summary      Track a new product
// @Description  Derives the expiry date and mirrors a reminder into the calendar when it is available.
// @Tags         products
// @Accept       json
// @Produce      json
// @Param        body  body      productRequest  true  "Product data"
// @Success      201   {object}  products.View
// @Failure      400   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /products [post]
func (h *Handler) CreateProduct(c *gin.Context) {
	var req productRequest
	if !bindProduct(c, &req) {
		return
	}

	product, err := h.service.AddFromInput(c.Request.Context(), req.Name, req.ProductionDate, req.ShelfLifeDays)
	if err != nil {
		h.writeError(c, err, "failed to create product")
		return
	}

	c.JSON(http.StatusCreated, products.Describe(product, h.service.Today()))
}

// GetProduct godoc
// @Summary      Get a product by ID
// @Tags         products
// @Produce      json
// @Param        id   path      int  true  "Product ID"
// @Success      200  {object}  products.View
// @Failure      400  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Router       /products/{id} [get]
func (h *Handler) GetProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	product, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err, "failed to get product")
		return
	}

	c.JSON(http.StatusOK, products.Describe(product, h.service.Today()))
}

// UpdateProduct godoc
// @Summary      Edit a product
// @Description  Re-derives the expiry date and replaces the calendar reminder.
// @Tags         products
// @Accept       json
// @Produce      json
// @Param        id    path      int             true  "Product ID"
// @Param        body  body      productRequest  true  "Product data"
// @Success      200   {object}  products.View
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /products/{id} [put]
func (h *Handler) UpdateProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req productRequest
	if !bindProduct(c, &req) {
		return
	}

	product, err := h.service.UpdateFromInput(c.Request.Context(), id, req.Name, req.ProductionDate, req.ShelfLifeDays)
	if err != nil {
		h.writeError(c, err, "failed to update product")
		return
	}

	c.JSON(http.StatusOK, products.Describe(product, h.service.Today()))
}

// DeleteProduct godoc
// @Summary      Delete a product by ID
// @Tags         products
// @Produce      json
// @Param        id   path      int  true  "Product ID"
// @Success      204
// @Failure      400  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Router       /products/{id} [delete]
func (h *Handler) DeleteProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteByID(c.Request.Context(), id); err != nil {
		h.writeError(c, err, "failed to delete product")
		return
	}

	c.Status(http.StatusNoContent)
}

// ListProducts godoc
// @Summary      List products by expiry date
// @Tags         products
// @Produce      json
// @Success      200    {object}  listProductsResponse
// @Failure      500    {object}  errorResponse
// @Router       /products [get]
func (h *Handler) ListProducts(c *gin.Context) {
	items, err := h.service.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to get products"})
		return
	}

	c.JSON(http.StatusOK, listProductsResponse{
		Items: items,
		Today: h.service.Today().String(),
	})
}

func (h *Handler) writeError(c *gin.Context, err error, fallback string) {
	if ve, ok := products.IsValidation(err); ok {
		c.JSON(http.StatusBadRequest, errorResponse{Error: ve.Message, Field: ve.Field})
		return
	}
	if errors.Is(err, products.ErrNotFound) {
		c.JSON(http.StatusNotFound, errorResponse{Error: products.ErrNotFound.Error()})
		return
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, errorResponse{Error: fallback})
}

// bindProduct decodes the request body. A missing name is reported against
// the field like any other validation failure.
func bindProduct(c *gin.Context, req *productRequest) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Field() == "Name" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "product name is required", Field: products.FieldName})
		return false
	}
	c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	return false
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid product id"})
		return 0, false
	}
	return id, true
}
