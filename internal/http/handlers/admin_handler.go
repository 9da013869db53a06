// Admin HTTP handlers.
//
//   - POST /admin/login                (issue a session token)
//   - POST /admin/logout               (revoke the presented token)
//   - GET  /admin/users                (customers with stats, paginated)
//   - GET  /admin/users/{id}/visits    (one customer's visit history)
//
// Everything except login sits behind middleware.RequireAdmin.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-loyalty-backend/internal/http/middleware"
)

// LoginRequest is the JSON payload for POST /admin/login.
type LoginRequest struct {
	Login    string `json:"login"    binding:"required" example:"admin"`
	Password string `json:"password" binding:"required" example:"s3cret"`
}

// LoginResponse carries a bearer token for the admin routes.
type LoginResponse struct {
	Token     string    `json:"token"      example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	ExpiresAt time.Time `json:"expires_at" example:"2025-01-02T15:04:05Z"`
}

// AdminLogin godoc
// @ID          adminLogin
// @Summary     Admin login
// @Description Exchanges the static admin credentials for a bearer token.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.LoginRequest  true  "Credentials"
// @Success     200   {object}  handlers.LoginResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401   {object}  handlers.ErrorResponse  "Invalid credentials"
// @Failure     500   {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/login [post]
func (h *Handlers) AdminLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "login and password are required")
		return
	}
	sess, err := h.admin.Login(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		failService(c, err)
		return
	}
	middleware.LoggerFrom(c).Info().Time("expires_at", sess.ExpiresAt).Msg("admin login")
	ok(c, http.StatusOK, LoginResponse{Token: sess.Token, ExpiresAt: sess.ExpiresAt})
}

// AdminLogout godoc
// @ID          adminLogout
// @Summary     Admin logout
// @Description Revokes the presented bearer token.
// @Tags        Admin
// @Security    AdminToken
// @Success     204  {string}  string  "No Content"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/logout [post]
func (h *Handlers) AdminLogout(c *gin.Context) {
	tok, found := middleware.AdminToken(c)
	if !found {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "missing admin token")
		return
	}
	if err := h.admin.Logout(c.Request.Context(), tok); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}

// AdminListUsers godoc
// @ID          adminListUsers
// @Summary     List customers
// @Description Returns customers (newest first) with visit count, unused bonuses and last visit time.
// @Tags        Admin
// @Security    AdminToken
// @Produce     json
// @Param       page       query     int  false  "Page number"     minimum(1) default(1)
// @Param       page_size  query     int  false  "Items per page"  minimum(1) maximum(200) default(50)
// @Success     200        {array}   domain.UserStats
// @Header      200        {integer} X-Total-Count  "Total number of customers"
// @Failure     401        {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500        {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/users [get]
func (h *Handlers) AdminListUsers(c *gin.Context) {
	page, pageSize := clampPagination(c)
	rows, total, err := h.admin.ListUsers(c.Request.Context(), page, pageSize)
	if err != nil {
		failService(c, err)
		return
	}
	c.Header("X-Total-Count", strconv.FormatInt(total, 10))
	ok(c, http.StatusOK, nonNil(rows))
}

// AdminUserVisits godoc
// @ID          adminUserVisits
// @Summary     Customer visit history
// @Tags        Admin
// @Security    AdminToken
// @Produce     json
// @Param       id   path      int  true  "User ID"  minimum(1)
// @Success     200  {array}   domain.Visit
// @Failure     400  {object}  handlers.ErrorResponse  "Bad id"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "User not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/users/{id}/visits [get]
func (h *Handlers) AdminUserVisits(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	visits, err := h.admin.UserVisits(c.Request.Context(), id)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, nonNil(visits))
}
