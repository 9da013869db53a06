// Visit HTTP handlers.
//
//   - POST /visit             (scan the venue code)
//   - GET  /visits/{userId}   (visit history, most recent first)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-loyalty-backend/internal/utils"
)

// RecordVisitRequest is the JSON payload for POST /visit.
type RecordVisitRequest struct {
	UserID uint64 `json:"user_id" example:"1"`
	// Code is the scanned venue code, compared byte for byte. qr_code is
	// accepted as an alias when code is empty.
	Code   string `json:"code"    example:"HOOKAH_PLACE_QR"`
	QRCode string `json:"qr_code" example:"HOOKAH_PLACE_QR"`
}

// RecordVisit godoc
// @ID          recordVisit
// @Summary     Record a visit
// @Description Records today's visit for the customer when the scanned code matches the venue code. Every tenth visit earns a free-visit bonus.
// @Tags        Visits
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.RecordVisitRequest  true  "Visit"
// @Success     200   {object}  services.VisitResult
// @Failure     400   {object}  handlers.ErrorResponse  "Invalid code or already visited today"
// @Failure     404   {object}  handlers.ErrorResponse  "User not found"
// @Failure     500   {object}  handlers.ErrorResponse  "Internal error"
// @Router      /visit [post]
func (h *Handlers) RecordVisit(c *gin.Context) {
	var req RecordVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id is required")
		return
	}
	if !utils.ValidID(req.UserID) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id must be a positive integer")
		return
	}
	code := req.Code
	if code == "" {
		code = req.QRCode
	}

	res, err := h.ledger.RecordVisit(c.Request.Context(), req.UserID, code)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// ListVisits godoc
// @ID          listVisits
// @Summary     Visit history
// @Description Returns the customer's visits, most recent first. Unknown customers have no visits.
// @Tags        Visits
// @Produce     json
// @Param       userId  path      int  true  "User ID"  minimum(1)
// @Success     200     {array}   domain.Visit
// @Failure     400     {object}  handlers.ErrorResponse  "Bad id"
// @Failure     500     {object}  handlers.ErrorResponse  "Internal error"
// @Router      /visits/{userId} [get]
func (h *Handlers) ListVisits(c *gin.Context) {
	id, valid := pathID(c, "userId")
	if !valid {
		return
	}
	visits, err := h.ledger.ListVisits(c.Request.Context(), id)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, nonNil(visits))
}
