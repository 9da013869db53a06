// Bonus HTTP handlers.
//
//   - GET  /bonuses/{userId}  (bonus history, most recent first)
//   - POST /bonus/use/{id}    (redeem)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RedeemBonusResponse reports whether the bonus was redeemed by this call.
type RedeemBonusResponse struct {
	Success bool   `json:"success"           example:"true"`
	Message string `json:"message,omitempty" example:"bonus not found or already used"`
}

// ListBonuses godoc
// @ID          listBonuses
// @Summary     Bonus history
// @Description Returns the customer's bonuses, most recent first.
// @Tags        Bonuses
// @Produce     json
// @Param       userId  path      int  true  "User ID"  minimum(1)
// @Success     200     {array}   domain.Bonus
// @Failure     400     {object}  handlers.ErrorResponse  "Bad id"
// @Failure     500     {object}  handlers.ErrorResponse  "Internal error"
// @Router      /bonuses/{userId} [get]
func (h *Handlers) ListBonuses(c *gin.Context) {
	id, valid := pathID(c, "userId")
	if !valid {
		return
	}
	bonuses, err := h.ledger.ListBonuses(c.Request.Context(), id)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, nonNil(bonuses))
}

// RedeemBonus godoc
// @ID          redeemBonus
// @Summary     Redeem a bonus
// @Description Marks an unused bonus as used. Exactly one of several concurrent calls for the same bonus succeeds.
// @Tags        Bonuses
// @Produce     json
// @Param       id   path      int  true  "Bonus ID"  minimum(1)
// @Success     200  {object}  handlers.RedeemBonusResponse
// @Failure     400  {object}  handlers.RedeemBonusResponse  "Bonus not found or already used"
// @Failure     500  {object}  handlers.ErrorResponse        "Internal error"
// @Router      /bonus/use/{id} [post]
func (h *Handlers) RedeemBonus(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	redeemed, err := h.ledger.RedeemBonus(c.Request.Context(), id)
	if err != nil {
		failService(c, err)
		return
	}
	if !redeemed {
		ok(c, http.StatusBadRequest, RedeemBonusResponse{Message: "bonus not found or already used"})
		return
	}
	ok(c, http.StatusOK, RedeemBonusResponse{Success: true})
}
