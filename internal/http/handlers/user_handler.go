// User HTTP handlers.
//
//   - POST /user       (register or fetch by external identity)
//   - GET  /user/{id}  (profile with visits, bonuses and progress)
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-loyalty-backend/internal/domain"
	"github.com/tbourn/go-loyalty-backend/internal/services"
)

//
// DTOs
//

// ExternalID accepts an identity sent either as a JSON string or as a JSON
// integer (messaging platforms usually send numeric ids).
type ExternalID string

// UnmarshalJSON implements json.Unmarshaler.
func (e *ExternalID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*e = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*e = ExternalID(s)
		return nil
	}
	if _, err := strconv.ParseInt(string(b), 10, 64); err != nil {
		return errors.New("external id must be a string or an integer")
	}
	*e = ExternalID(b)
	return nil
}

// RegisterUserRequest is the JSON payload for POST /user.
type RegisterUserRequest struct {
	// ExternalID is the messaging-platform identity.
	ExternalID ExternalID `json:"external_id" swaggertype:"string" example:"555"`
	// TelegramID is accepted as an alias of ExternalID.
	TelegramID  ExternalID `json:"telegram_id" swaggertype:"string" example:"555"`
	DisplayName string     `json:"display_name" example:"Alice"`
	Username    string     `json:"username"     example:"alice"`
	FirstName   string     `json:"first_name"   example:"Alice"`
	LastName    string     `json:"last_name"    example:"Smith"`
}

// RegisterUserResponse is returned by POST /user.
type RegisterUserResponse struct {
	UserID uint64      `json:"user_id" example:"1"`
	User   domain.User `json:"user"`
}

// UserProfileResponse is returned by GET /user/{id}.
type UserProfileResponse struct {
	User             domain.User    `json:"user"`
	Visits           []domain.Visit `json:"visits"`
	Bonuses          []domain.Bonus `json:"bonuses"`
	VisitCount       int64          `json:"visit_count"        example:"3"`
	UnusedBonusCount int64          `json:"unused_bonus_count" example:"0"`
	VisitsToBonus    int64          `json:"visits_to_bonus"    example:"7"`
}

//
// Handlers
//

// RegisterUser godoc
// @ID          registerUser
// @Summary     Register a customer
// @Description Returns the customer for external_id, creating it on first sight. Repeat calls return the stored record unchanged.
// @Tags        Users
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.RegisterUserRequest  true  "Customer identity"
// @Success     200   {object}  handlers.RegisterUserResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Missing external_id"
// @Failure     500   {object}  handlers.ErrorResponse  "Internal error"
// @Router      /user [post]
func (h *Handlers) RegisterUser(c *gin.Context) {
	var req RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	ext := req.ExternalID
	if ext == "" {
		ext = req.TelegramID
	}
	if ext == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "external_id is required")
		return
	}

	u, err := h.ledger.RegisterUser(c.Request.Context(), services.Registration{
		ExternalID:  string(ext),
		DisplayName: req.DisplayName,
		Username:    req.Username,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
	})
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, RegisterUserResponse{UserID: u.ID, User: *u})
}

// GetUser godoc
// @ID          getUser
// @Summary     Customer profile
// @Description Returns the customer with visit history, bonuses and the number of visits left until the next bonus.
// @Tags        Users
// @Produce     json
// @Param       id   path      int  true  "User ID"  minimum(1)
// @Success     200  {object}  handlers.UserProfileResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad id"
// @Failure     404  {object}  handlers.ErrorResponse  "User not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /user/{id} [get]
func (h *Handlers) GetUser(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	ctx := c.Request.Context()

	sum, err := h.ledger.GetUserSummary(ctx, id)
	if err != nil {
		failService(c, err)
		return
	}
	visits, err := h.ledger.ListVisits(ctx, id)
	if err != nil {
		failService(c, err)
		return
	}
	bonuses, err := h.ledger.ListBonuses(ctx, id)
	if err != nil {
		failService(c, err)
		return
	}

	ok(c, http.StatusOK, UserProfileResponse{
		User:             sum.User,
		Visits:           nonNil(visits),
		Bonuses:          nonNil(bonuses),
		VisitCount:       sum.VisitCount,
		UnusedBonusCount: sum.UnusedBonusCount,
		VisitsToBonus:    sum.VisitsToBonus,
	})
}

// nonNil keeps empty lists serialized as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
