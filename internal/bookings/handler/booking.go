package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"lessonbook/internal/bookings/service"
	"lessonbook/internal/bookings/validator"
	apperrors "lessonbook/pkg/errors"
	httputil "lessonbook/pkg/http"
	"lessonbook/pkg/logger"
	"lessonbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

type AvailabilityResponse struct {
	OwnerID   string                        `json:"owner_id"`
	Date      string                        `json:"date"`
	StartTime string                        `json:"start_time"`
	EndTime   string                        `json:"end_time"`
	Available bool                          `json:"available"`
	Conflicts []model.ConflictingCommitment `json:"conflicts"`
}

func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
			Code:  apperrors.CodeBadRequest,
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Book", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}

	result := h.service.BookAtomic(r.Context(), req)
	if !result.Success {
		if writeErr := httputil.WriteError(w, resultError(result)); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Book", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, result); err != nil {
		h.log.Error("failed to write created response", "handler", "Book", "operation", "WriteCreated", "error", err)
	}
}

// resultError turns a failed BookingResult into the API error body. System
// failures keep only the generic message.
func resultError(result model.BookingResult) *apperrors.AppError {
	details := map[string]any{"attempts": result.Attempts}
	if result.TransactionID != "" {
		details["transaction_id"] = result.TransactionID
	}
	if result.AuditID != "" {
		details["audit_id"] = result.AuditID
	}
	if len(result.Conflicts) > 0 {
		details["conflicts"] = result.Conflicts
	}

	var verrs validator.ValidationErrors
	if errors.As(result.Cause, &verrs) {
		details["fields"] = verrs.Details()
	}

	message := result.Error
	if apperrors.IsSystemCode(result.ErrorCode) {
		message = apperrors.GenericSystemMessage
	}

	return apperrors.New(result.ErrorCode, message, apperrors.StatusForCode(result.ErrorCode)).WithDetails(details)
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	commitment, err := h.service.GetCommitment(r.Context(), id)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, commitment); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Availability(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	params, err := httputil.RequireQuery(r, "owner_id", "date", "start_time", "end_time")
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Availability", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	conflicts, err := h.service.CheckAvailability(r.Context(), params["owner_id"], params["date"], params["start_time"], params["end_time"])
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Availability", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if conflicts == nil {
		conflicts = []model.ConflictingCommitment{}
	}
	if err := httputil.WriteSuccess(w, AvailabilityResponse{
		OwnerID:   params["owner_id"],
		Date:      params["date"],
		StartTime: params["start_time"],
		EndTime:   params["end_time"],
		Available: len(conflicts) == 0,
		Conflicts: conflicts,
	}); err != nil {
		h.log.Error("failed to write success response", "handler", "Availability", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) TransactionStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	status, err := h.service.GetTransactionStatus(r.Context(), id)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "TransactionStatus", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	code := http.StatusOK
	if !status.Found {
		code = http.StatusNotFound
	}
	if err := httputil.WriteJSON(w, code, httputil.SuccessResponse{Data: status}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "TransactionStatus", "operation", "WriteJSON", "error", err)
	}
}

func (h *BookingHandler) Cleanup(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	result := h.service.CleanupExpiredTransactions(r.Context())

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "Cleanup", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Book)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.GET("/api/v1/bookings/availability", h.Availability)
	router.GET("/api/v1/bookings/transactions/:id", h.TransactionStatus)
	router.POST("/api/v1/bookings/transactions/cleanup", h.Cleanup)
}
