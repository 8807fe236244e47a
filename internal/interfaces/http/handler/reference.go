package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/kwanza/fiscal/internal/domain/fiscal"
	"github.com/kwanza/fiscal/internal/domain/shared/valueobject"
)

// ReferenceHandler serves the static lookup tables clients need to build documents
type ReferenceHandler struct {
	BaseHandler
}

// NewReferenceHandler creates a new ReferenceHandler
func NewReferenceHandler() *ReferenceHandler {
	return &ReferenceHandler{}
}

// ListCurrencies godoc
// @ID           listCurrencies
// @Summary      List supported currencies
// @Tags         reference
// @Produce      json
// @Success      200 {object} APIResponse[[]valueobject.CurrencyInfo]
// @Security     BearerAuth
// @Router       /fiscal/reference/currencies [get]
func (h *ReferenceHandler) ListCurrencies(c *gin.Context) {
	h.Success(c, valueobject.Currencies())
}

// ListTaxRates godoc
// @ID           listTaxRates
// @Summary      List the IVA rate table
// @Tags         reference
// @Produce      json
// @Success      200 {object} APIResponse[[]fiscal.TaxRate]
// @Security     BearerAuth
// @Router       /fiscal/reference/tax-rates [get]
func (h *ReferenceHandler) ListTaxRates(c *gin.Context) {
	h.Success(c, fiscal.TaxRates())
}
