// Package handler exposes the claim lifecycle over HTTP.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"attesto/internal/claims/models"
	"attesto/internal/idempotency"
	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/platform/httputil"
	"attesto/pkg/platform/validation"
	"attesto/pkg/requestcontext"
)

// IdempotencyKeyHeader lets a client retry POST /claims without filing the claim twice.
const IdempotencyKeyHeader = "Idempotency-Key"

// Service is the claim lifecycle as the handler uses it.
type Service interface {
	Create(ctx context.Context, cred, issuerDID, title string, content models.Content, careerType models.CareerType) (models.ClaimID, error)
	ListMine(ctx context.Context, cred string) (*models.ClaimList, error)
	GetOne(ctx context.Context, cred string, id models.ClaimID) (*models.ClaimDetail, error)
	Decide(ctx context.Context, cred string, id models.ClaimID, target models.Status, keystore models.Keystore) error
}

// Handler handles the /claims endpoints.
type Handler struct {
	logger      *slog.Logger
	claims      Service
	idempotency idempotency.Store
}

// New creates a claims Handler. A nil idempotency store disables replay of
// Idempotency-Key requests.
func New(claims Service, idem idempotency.Store, logger *slog.Logger) *Handler {
	return &Handler{
		logger:      logger,
		claims:      claims,
		idempotency: idem,
	}
}

// Register registers the claim routes with the chi router. The caller is expected
// to have installed the access token middleware.
func (h *Handler) Register(r chi.Router) {
	r.Post("/claims", h.HandleCreate)
	r.Get("/claims", h.HandleList)
	r.Get("/claims/{id}", h.HandleGet)
	r.Patch("/claims/{id}", h.HandleDecide)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	cred, err := httputil.RequireAccessToken(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	key := r.Header.Get(IdempotencyKeyHeader)
	if key == "" || h.idempotency == nil {
		h.create(w, r, cred, nil)
		return
	}
	if err := validation.CheckStringLength(IdempotencyKeyHeader, key, validation.MaxIdempotencyKeyLength); err != nil {
		httputil.WriteError(w, err)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to read request body",
			"request_id", requestID,
			"error", err,
		)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeTooLarge, "request body is too large"))
			return
		}
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	scoped := idempotency.ScopedKey(cred, key)
	fingerprint := idempotency.Fingerprint(body)
	cached, err := h.idempotency.Get(ctx, scoped)
	if err != nil {
		// Treat the cache as absent; a duplicate claim is better than no claim.
		h.logger.WarnContext(ctx, "idempotency lookup failed",
			"request_id", requestID,
			"error", err,
		)
	}
	if cached != nil {
		if cached.Fingerprint != fingerprint {
			httputil.WriteError(w, dErrors.New(dErrors.CodeConflict, "idempotency key was used with a different request"))
			return
		}
		w.Header().Set("Idempotent-Replayed", "true")
		httputil.WriteJSON(w, cached.StatusCode, cached.Body)
		return
	}

	h.create(w, r, cred, func(status int, resp any) {
		raw, err := json.Marshal(resp)
		if err != nil {
			return
		}
		entry := &idempotency.CachedResponse{StatusCode: status, Body: raw, Fingerprint: fingerprint}
		if err := h.idempotency.Set(ctx, scoped, entry); err != nil {
			h.logger.WarnContext(ctx, "failed to store idempotent response",
				"request_id", requestID,
				"error", err,
			)
		}
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request, cred string, remember func(int, any)) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateClaimRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	careerType, err := models.ParseCareerType(req.CareerType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	id, err := h.claims.Create(ctx, cred, req.Issuer, req.Title, req.Content, careerType)
	if err != nil {
		h.logFailure(ctx, "failed to create claim", err)
		httputil.WriteError(w, err)
		return
	}

	resp := CreateClaimResponse{ID: id}
	if remember != nil {
		remember(http.StatusCreated, resp)
	}
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	cred, err := httputil.RequireAccessToken(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	list, err := h.claims.ListMine(ctx, cred)
	if err != nil {
		h.logFailure(ctx, "failed to list claims", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListResponse(list))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	cred, err := httputil.RequireAccessToken(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	id, err := models.ParseClaimID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	detail, err := h.claims.GetOne(ctx, cred, id)
	if err != nil {
		h.logFailure(ctx, "failed to get claim", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDetailResponse(detail))
}

func (h *Handler) HandleDecide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	cred, err := httputil.RequireAccessToken(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	id, err := models.ParseClaimID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[DecideRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	target, err := models.ParseDecision(req.Status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.claims.Decide(ctx, cred, id, target, req.ToKeystore()); err != nil {
		h.logFailure(ctx, "failed to decide claim", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// logFailure logs server-side failures at error level and caller mistakes at warn.
func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	level := slog.LevelWarn
	if httputil.DomainCodeToHTTPStatus(codeOf(err)) >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
}

func codeOf(err error) dErrors.Code {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return de.Code
	}
	return dErrors.CodeInternal
}
