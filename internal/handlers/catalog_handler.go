package handlers

import (
	"net/http"

	"github.com/posi-ecosystem/fati-backend/internal/config"
	"github.com/posi-ecosystem/fati-backend/internal/services"
)

type CatalogHandler struct {
	stripe config.StripeConfig
}

func NewCatalogHandler(cfg config.StripeConfig) *CatalogHandler {
	return &CatalogHandler{stripe: cfg}
}

// GetPurchaseOptions lists the FATI packages
// @Summary FATI purchase options
// @Tags Catalog
// @Produce json
// @Success 200 {object} object{options=[]services.PurchaseOption,usdToFatiRate=int}
// @Router /fati/options [get]
func (h *CatalogHandler) GetPurchaseOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"options":       services.Catalog(),
		"usdToFatiRate": services.USDToFatiRate,
	})
}

// GetPlans lists the subscription plans
// @Summary Subscription plans
// @Tags Catalog
// @Produce json
// @Success 200 {object} object{plans=[]services.PricingPlan}
// @Router /plans [get]
func (h *CatalogHandler) GetPlans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"plans": services.PricingPlans(h.stripe)})
}
