// Staff roster HTTP handlers.
//
//   - GET    /staff/on-shift           (public: who is working now)
//   - GET    /admin/staff              (full roster)
//   - POST   /admin/staff              (multipart create with optional photo)
//   - PUT    /admin/staff/{id}/shift   (toggle on/off shift)
//   - DELETE /admin/staff/{id}         (remove member and photo)
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-loyalty-backend/internal/services"
	"github.com/tbourn/go-loyalty-backend/internal/sysutil"
)

// SetShiftRequest is the JSON payload for PUT /admin/staff/{id}/shift.
type SetShiftRequest struct {
	OnShift *bool `json:"on_shift" binding:"required" example:"true"`
}

// ListOnShift godoc
// @ID          listOnShift
// @Summary     Staff on shift
// @Tags        Staff
// @Produce     json
// @Success     200  {array}   domain.StaffMember
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /staff/on-shift [get]
func (h *Handlers) ListOnShift(c *gin.Context) {
	list, err := h.staff.ListOnShift(c.Request.Context())
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, nonNil(list))
}

// AdminListStaff godoc
// @ID          adminListStaff
// @Summary     Full staff roster
// @Tags        Admin
// @Security    AdminToken
// @Produce     json
// @Success     200  {array}   domain.StaffMember
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/staff [get]
func (h *Handlers) AdminListStaff(c *gin.Context) {
	list, err := h.staff.ListAll(c.Request.Context())
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, nonNil(list))
}

// AdminCreateStaff godoc
// @ID          adminCreateStaff
// @Summary     Add a staff member
// @Description Creates a roster entry. The optional photo must be a JPEG, PNG, WebP or GIF image.
// @Tags        Admin
// @Security    AdminToken
// @Accept      multipart/form-data
// @Produce     json
// @Param       name      formData  string  true   "Name"
// @Param       role      formData  string  false  "Role"
// @Param       on_shift  formData  bool    false  "Currently on shift"
// @Param       photo     formData  file    false  "Photo"
// @Success     201       {object}  domain.StaffMember
// @Failure     400       {object}  handlers.ErrorResponse  "Bad request or invalid photo"
// @Failure     401       {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     413       {object}  handlers.ErrorResponse  "Upload too large"
// @Failure     500       {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/staff [post]
func (h *Handlers) AdminCreateStaff(c *gin.Context) {
	if _, err := c.MultipartForm(); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			failService(c, err)
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "multipart form expected")
		return
	}

	in := services.NewStaffMember{
		Name:    c.PostForm("name"),
		Role:    c.PostForm("role"),
		OnShift: sysutil.IsTruthy(c.PostForm("on_shift")),
	}

	var photo io.Reader
	fh, err := c.FormFile("photo")
	switch {
	case err == nil:
		f, err := fh.Open()
		if err != nil {
			failService(c, err)
			return
		}
		defer f.Close()
		photo = f
	case !errors.Is(err, http.ErrMissingFile):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid photo upload")
		return
	}

	m, err := h.staff.Create(c.Request.Context(), in, photo)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusCreated, m)
}

// AdminSetShift godoc
// @ID          adminSetShift
// @Summary     Toggle shift
// @Tags        Admin
// @Security    AdminToken
// @Accept      json
// @Produce     json
// @Param       id    path      int                        true  "Staff ID"  minimum(1)
// @Param       body  body      handlers.SetShiftRequest   true  "Shift state"
// @Success     200   {object}  domain.StaffMember
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401   {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404   {object}  handlers.ErrorResponse  "Staff member not found"
// @Failure     500   {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/staff/{id}/shift [put]
func (h *Handlers) AdminSetShift(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req SetShiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "on_shift is required")
		return
	}
	m, err := h.staff.SetOnShift(c.Request.Context(), id, *req.OnShift)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, m)
}

// AdminDeleteStaff godoc
// @ID          adminDeleteStaff
// @Summary     Remove a staff member
// @Tags        Admin
// @Security    AdminToken
// @Param       id   path      int  true  "Staff ID"  minimum(1)
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad id"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Staff member not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/staff/{id} [delete]
func (h *Handlers) AdminDeleteStaff(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	if err := h.staff.Delete(c.Request.Context(), id); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}
