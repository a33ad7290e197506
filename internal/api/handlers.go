// Package api exposes the Market Data Service and Portfolio Rebalancer
// over HTTP. REST routing, auth, and OpenAPI generation are explicitly
// out of scope for the core; this package is the thin,
// externally-facing adapter over both subsystems.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dcapal/dcapal-backend/internal/domain"
	"github.com/dcapal/dcapal-backend/internal/mds"
	"github.com/dcapal/dcapal-backend/internal/rebalancer"
	"github.com/go-chi/chi/v5"
)

// Handlers wires the MDS and rebalancer into HTTP endpoints.
type Handlers struct {
	mdsSvc *mds.Service
	logger *slog.Logger
}

// NewHandlers builds a Handlers.
func NewHandlers(mdsSvc *mds.Service, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{mdsSvc: mdsSvc, logger: logger}
}

// RegisterRoutes mounts every endpoint under r.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/rates/{base}/{quote}", h.GetConversionRate)
		r.Get("/markets/{id}", h.GetMarket)
		r.Get("/assets/{kind}", h.GetAssetsByType)
		r.Post("/rebalance", h.Rebalance)
		r.Post("/rebalance/suggest", h.SuggestInjection)
	})
}

// Health godoc
// GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetConversionRate godoc
// GET /api/v1/rates/{base}/{quote}
func (h *Handlers) GetConversionRate(w http.ResponseWriter, r *http.Request) {
	base := chi.URLParam(r, "base")
	quote := chi.URLParam(r, "quote")

	price, err := h.mdsSvc.GetConversionRate(r.Context(), base, quote)
	if err != nil {
		h.handleMDSError(w, err)
		return
	}
	if price == nil {
		respondError(w, http.StatusNotFound, "ERR_NO_RATE", "no conversion rate available for this pair")
		return
	}
	respondSuccess(w, http.StatusOK, newPriceDTO(*price))
}

// GetMarket godoc
// GET /api/v1/markets/{id}
func (h *Handlers) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	market, err := h.mdsSvc.GetMarket(r.Context(), id)
	if err != nil {
		h.handleMDSError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, newMarketDTO(market))
}

// GetAssetsByType godoc
// GET /api/v1/assets/{kind}
func (h *Handlers) GetAssetsByType(w http.ResponseWriter, r *http.Request) {
	kind := domain.AssetKind(chi.URLParam(r, "kind"))
	if kind != domain.AssetFiat && kind != domain.AssetCrypto {
		respondError(w, http.StatusBadRequest, "ERR_BAD_INPUT", "kind must be \"fiat\" or \"crypto\"")
		return
	}

	assets, err := h.mdsSvc.GetAssetsByType(r.Context(), kind)
	if err != nil {
		h.handleMDSError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, assets)
}

// Rebalance godoc
// POST /api/v1/rebalance
func (h *Handlers) Rebalance(w http.ResponseWriter, r *http.Request) {
	var req rebalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "ERR_BAD_INPUT", "malformed request body")
		return
	}

	solution, err := rebalancer.Solve(req.toDomain())
	if err != nil {
		if domain.Is(err, domain.KindBadInput) {
			respondError(w, http.StatusBadRequest, "ERR_BAD_INPUT", err.Error())
			return
		}
		h.logger.Error("rebalance failed", "err", err)
		respondError(w, http.StatusInternalServerError, "ERR_INTERNAL", "could not compute rebalance")
		return
	}
	respondSuccess(w, http.StatusOK, newSolutionResponse(solution))
}

// SuggestInjection godoc
// POST /api/v1/rebalance/suggest
func (h *Handlers) SuggestInjection(w http.ResponseWriter, r *http.Request) {
	var req rebalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "ERR_BAD_INPUT", "malformed request body")
		return
	}

	opts := req.toDomain()
	if err := opts.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, "ERR_BAD_INPUT", err.Error())
		return
	}

	symbol, injection, ok := rebalancer.SuggestInjection(opts)
	if !ok {
		respondSuccess(w, http.StatusOK, map[string]interface{}{"has_suggestion": false})
		return
	}
	amount, _ := injection.Float64()
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"has_suggestion": true,
		"symbol":         symbol,
		"injection":      amount,
	})
}

// handleMDSError maps a domain.Error's Kind onto an HTTP status.
func (h *Handlers) handleMDSError(w http.ResponseWriter, err error) {
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		respondError(w, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
	case domain.KindPriceUnavailable:
		respondError(w, http.StatusNotFound, "ERR_PRICE_UNAVAILABLE", err.Error())
	case domain.KindBadInput:
		respondError(w, http.StatusBadRequest, "ERR_BAD_INPUT", err.Error())
	case domain.KindTransient:
		h.logger.Warn("mds transient error surfaced to caller", "err", err)
		respondError(w, http.StatusServiceUnavailable, "ERR_TRANSIENT", err.Error())
	default:
		var de *domain.Error
		if errors.As(err, &de) {
			h.logger.Error("mds fatal error", "op", de.Op, "err", err)
		}
		respondError(w, http.StatusInternalServerError, "ERR_INTERNAL", "internal error")
	}
}
