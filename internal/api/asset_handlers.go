package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/followread/backend/internal/auth"
	"github.com/followread/backend/internal/db"
	apperrors "github.com/followread/backend/internal/errors"
)

type AssetHandlers struct {
	assets       *db.AssetRepository
	usdToCNYRate float64
}

func NewAssetHandlers(assets *db.AssetRepository, usdToCNYRate float64) *AssetHandlers {
	return &AssetHandlers{
		assets:       assets,
		usdToCNYRate: usdToCNYRate,
	}
}

type assetRequest struct {
	Name     string  `json:"name"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type assetResponse struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

func toAssetResponse(a *db.Asset) assetResponse {
	return assetResponse{
		ID:        a.ID,
		Name:      a.Name,
		Amount:    a.Amount,
		Currency:  a.Currency,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
		UpdatedAt: a.UpdatedAt.Format(time.RFC3339),
	}
}

func (h *AssetHandlers) validate(req *assetRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))

	if req.Name == "" {
		return apperrors.ValidationError("name is required")
	}
	if req.Currency != "CNY" && req.Currency != "USD" {
		return apperrors.ValidationError("currency must be CNY or USD")
	}
	if req.Amount < 0 {
		return apperrors.ValidationError("amount must not be negative")
	}
	return nil
}

// CreateAsset handles POST /api/v1/assets
func (h *AssetHandlers) CreateAsset(w http.ResponseWriter, r *http.Request) {
	userCtx := auth.GetUserFromContext(r.Context())
	if userCtx == nil {
		writeError(w, r, apperrors.Unauthorized("authentication required"))
		return
	}

	var req assetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.validate(&req); err != nil {
		writeError(w, r, err)
		return
	}

	asset := &db.Asset{
		UserID:   userCtx.UserID,
		Name:     req.Name,
		Amount:   req.Amount,
		Currency: req.Currency,
	}
	if err := h.assets.Create(r.Context(), asset); err != nil {
		writeError(w, r, apperrors.DatabaseError("failed to create asset").WithCause(err))
		return
	}

	writeJSON(w, r, http.StatusCreated, toAssetResponse(asset))
}

// ListAssets handles GET /api/v1/assets
func (h *AssetHandlers) ListAssets(w http.ResponseWriter, r *http.Request) {
	userCtx := auth.GetUserFromContext(r.Context())
	if userCtx == nil {
		writeError(w, r, apperrors.Unauthorized("authentication required"))
		return
	}

	assets, err := h.assets.ListByUser(r.Context(), userCtx.UserID)
	if err != nil {
		writeError(w, r, apperrors.DatabaseError("failed to list assets").WithCause(err))
		return
	}

	responses := make([]assetResponse, 0, len(assets))
	for i := range assets {
		responses = append(responses, toAssetResponse(&assets[i]))
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{"assets": responses})
}

// Summary handles GET /api/v1/assets/summary. Totals are reported in
// both currencies using the configured conversion rate.
func (h *AssetHandlers) Summary(w http.ResponseWriter, r *http.Request) {
	userCtx := auth.GetUserFromContext(r.Context())
	if userCtx == nil {
		writeError(w, r, apperrors.Unauthorized("authentication required"))
		return
	}

	assets, err := h.assets.ListByUser(r.Context(), userCtx.UserID)
	if err != nil {
		writeError(w, r, apperrors.DatabaseError("failed to list assets").WithCause(err))
		return
	}

	var totalCNY float64
	for _, a := range assets {
		switch a.Currency {
		case "CNY":
			totalCNY += a.Amount
		case "USD":
			totalCNY += a.Amount * h.usdToCNYRate
		}
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"count":           len(assets),
		"total_cny":       totalCNY,
		"total_usd":       totalCNY / h.usdToCNYRate,
		"usd_to_cny_rate": h.usdToCNYRate,
	})
}

// UpdateAsset handles PUT /api/v1/assets/{id}
func (h *AssetHandlers) UpdateAsset(w http.ResponseWriter, r *http.Request) {
	userCtx := auth.GetUserFromContext(r.Context())
	if userCtx == nil {
		writeError(w, r, apperrors.Unauthorized("authentication required"))
		return
	}

	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req assetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.validate(&req); err != nil {
		writeError(w, r, err)
		return
	}

	asset := &db.Asset{
		ID:       id,
		UserID:   userCtx.UserID,
		Name:     req.Name,
		Amount:   req.Amount,
		Currency: req.Currency,
	}
	if err := h.assets.Update(r.Context(), asset); err != nil {
		if errors.Is(err, db.ErrAssetNotFound) {
			writeError(w, r, apperrors.AssetNotFound())
			return
		}
		writeError(w, r, apperrors.DatabaseError("failed to update asset").WithCause(err))
		return
	}

	updated, err := h.assets.GetByID(r.Context(), id, userCtx.UserID)
	if err != nil {
		writeError(w, r, apperrors.AssetNotFound())
		return
	}

	writeJSON(w, r, http.StatusOK, toAssetResponse(updated))
}

// DeleteAsset handles DELETE /api/v1/assets/{id}
func (h *AssetHandlers) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	userCtx := auth.GetUserFromContext(r.Context())
	if userCtx == nil {
		writeError(w, r, apperrors.Unauthorized("authentication required"))
		return
	}

	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.assets.Delete(r.Context(), id, userCtx.UserID); err != nil {
		if errors.Is(err, db.ErrAssetNotFound) {
			writeError(w, r, apperrors.AssetNotFound())
			return
		}
		writeError(w, r, apperrors.DatabaseError("failed to delete asset").WithCause(err))
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]string{"status": "deleted"})
}
