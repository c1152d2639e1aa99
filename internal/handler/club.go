package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/farhanm/clubchain/internal/apperror"
	"github.com/farhanm/clubchain/internal/auth"
	"github.com/farhanm/clubchain/internal/service"
)

// ClubHandler exposes the club actions over HTTP.
//
// Each write endpoint is synchronous end to end: the response is not sent
// until the underlying transaction has confirmed (or failed) on-chain, which
// can take a couple of minutes. Clients should set their own request
// timeouts accordingly.
type ClubHandler struct {
	svc    *service.ClubService
	logger *slog.Logger
}

// NewClubHandler creates a ClubHandler.
func NewClubHandler(svc *service.ClubService, logger *slog.Logger) *ClubHandler {
	return &ClubHandler{svc: svc, logger: logger}
}

type createClubRequest struct {
	Name string `json:"name"`
}

type payFeeRequest struct {
	Amount string `json:"amount"`
}

// HandleCreate creates a new club.
//
// HTTP: POST /api/clubs
// Auth: Required
// Body: {"name": "Chess Club"}
// Response: 201 {"clubId": 7, "txHash": "0x..."}
func (h *ClubHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error: "unauthorized", Message: "authentication required",
		})
		return
	}

	var req createClubRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	result, err := h.svc.CreateClub(r.Context(), userID, req.Name)
	if err != nil {
		h.logger.Error("create club failed",
			slog.Int64("userID", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// HandleJoin joins an existing club.
//
// HTTP: POST /api/clubs/{clubID}/join
// Auth: Required
// Response: 200 {"txHash": "0x..."}
func (h *ClubHandler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error: "unauthorized", Message: "authentication required",
		})
		return
	}

	clubID, err := clubIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.svc.JoinClub(r.Context(), userID, clubID)
	if err != nil {
		h.logger.Error("join club failed",
			slog.Int64("userID", userID),
			slog.Int64("clubID", clubID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandlePay pays a membership fee into the club treasury.
//
// HTTP: POST /api/clubs/{clubID}/pay
// Auth: Required
// Body: {"amount": "0.01"}  (ETH, decimal string)
// Response: 200 {"txHash": "0x..."}
func (h *ClubHandler) HandlePay(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error: "unauthorized", Message: "authentication required",
		})
		return
	}

	clubID, err := clubIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req payFeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	result, err := h.svc.PayFee(r.Context(), userID, clubID, req.Amount)
	if err != nil {
		h.logger.Error("pay fee failed",
			slog.Int64("userID", userID),
			slog.Int64("clubID", clubID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleGet returns a club's on-chain state merged with the local mirror.
//
// HTTP: GET /api/clubs/{clubID}
// Auth: None — club state is public on-chain anyway.
func (h *ClubHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	clubID, err := clubIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	details, err := h.svc.GetClubDetails(r.Context(), clubID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, details)
}

func clubIDParam(r *http.Request) (int64, error) {
	clubID, err := strconv.ParseInt(chi.URLParam(r, "clubID"), 10, 64)
	if err != nil {
		return 0, apperror.ValidationFailed("clubID", "club ID must be an integer")
	}
	return clubID, nil
}
