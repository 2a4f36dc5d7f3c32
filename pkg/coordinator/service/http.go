package service

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/escrow-middleware/pkg/app/errors"
	apphttp "github.com/chainsafe/escrow-middleware/pkg/app/http"
	"github.com/chainsafe/escrow-middleware/pkg/auth"
	"github.com/chainsafe/escrow-middleware/pkg/transfer"
)

// HTTP wraps the Service to provide HTTP endpoints
type HTTP struct {
	service  Service
	validate *validator.Validate
	logger   *zap.Logger
}

// AuthMiddleware is the subset of authentication middleware the router needs.
type AuthMiddleware interface {
	RequireAuth(next http.Handler) http.Handler
	RequireAdmin(next http.Handler) http.Handler
}

// RegisterRoutes registers coordinator endpoints on the given chi router.
// Every route requires an authenticated identity; the refund and pause
// routes are further restricted to admin subjects.
func RegisterRoutes(r chi.Router, service Service, authmw AuthMiddleware, logger *zap.Logger) {
	h := &HTTP{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth)

		r.Post("/transfers", apphttp.HandleError(h.prepareTransfer))
		r.Get("/transfers", apphttp.HandleError(h.listTransfers))
		r.Get("/transfers/{transferID}", apphttp.HandleError(h.getTransfer))
		r.Post("/transfers/{transferID}/deposit", apphttp.HandleError(h.confirmDeposit))
		r.Post("/claims", apphttp.HandleError(h.release))
		r.Post("/authorizations", apphttp.HandleError(h.signAuthorization))
	})

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAdmin)

		r.Post("/transfers/{transferID}/refund", apphttp.HandleError(h.refund))
		r.Post("/admin/pause", apphttp.HandleError(h.setPaused))
	})
}

func (h *HTTP) prepareTransfer(w http.ResponseWriter, r *http.Request) error {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return apperrors.UnAuthorizedError(nil, "authentication required")
	}

	var req transfer.PrepareRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}

	resp, err := h.service.PrepareTransfer(r.Context(), identity, &req)
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusCreated, resp)
	return nil
}

func (h *HTTP) confirmDeposit(w http.ResponseWriter, r *http.Request) error {
	transferID := chi.URLParam(r, "transferID")

	var req transfer.ConfirmDepositRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}

	if err := h.service.ConfirmDeposit(r.Context(), transferID, req.TxRef); err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deposit_confirmed"})
	return nil
}

func (h *HTTP) release(w http.ResponseWriter, r *http.Request) error {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return apperrors.UnAuthorizedError(nil, "authentication required")
	}

	var req transfer.ReleaseRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}

	resp, err := h.service.Release(r.Context(), identity, &req)
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) refund(w http.ResponseWriter, r *http.Request) error {
	transferID := chi.URLParam(r, "transferID")

	resp, err := h.service.Refund(r.Context(), transferID)
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) setPaused(w http.ResponseWriter, r *http.Request) error {
	var req transfer.PauseRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}

	if err := h.service.SetPaused(r.Context(), req.Paused); err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, transfer.PauseResponse{Paused: req.Paused})
	return nil
}

func (h *HTTP) signAuthorization(w http.ResponseWriter, r *http.Request) error {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return apperrors.UnAuthorizedError(nil, "authentication required")
	}

	var req transfer.AuthorizationRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}

	resp, err := h.service.SignAuthorization(r.Context(), identity, &req)
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) getTransfer(w http.ResponseWriter, r *http.Request) error {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return apperrors.UnAuthorizedError(nil, "authentication required")
	}

	resp, err := h.service.GetTransfer(r.Context(), identity, chi.URLParam(r, "transferID"))
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) listTransfers(w http.ResponseWriter, r *http.Request) error {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return apperrors.UnAuthorizedError(nil, "authentication required")
	}

	resp, err := h.service.ListTransfers(r.Context(), identity)
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, resp)
	return nil
}

// decode reads, unmarshals, and validates a JSON request body.
func (h *HTTP) decode(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB limit
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read request")
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON")
	}

	if err := h.validate.Struct(dst); err != nil {
		return apperrors.BadRequestError(err, "request validation failed: "+err.Error())
	}
	return nil
}

func (h *HTTP) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}
