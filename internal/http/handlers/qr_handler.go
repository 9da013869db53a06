// QR code HTTP handlers.
//
//   - GET /qr-code      (venue code plus a PNG data URL)
//   - GET /qr-code.png  (raw PNG)
package handlers

import (
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"
)

// qrSize is the edge length of generated QR images, in pixels.
const qrSize = 256

// QRCodeResponse carries the venue code and its QR rendering.
type QRCodeResponse struct {
	QRData    string `json:"qr_data"     example:"HOOKAH_PLACE_QR"`
	QRCodeURL string `json:"qr_code_url" example:"data:image/png;base64,iVBORw0KGgo..."`
}

func (h *Handlers) qrPNG() ([]byte, error) {
	return qrcode.Encode(h.venueCode, qrcode.Medium, qrSize)
}

// GetQRCode godoc
// @ID          getQRCode
// @Summary     Venue QR code
// @Description Returns the venue code and a PNG data URL of its QR code, for printing at the entrance.
// @Tags        QR
// @Produce     json
// @Success     200  {object}  handlers.QRCodeResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /qr-code [get]
func (h *Handlers) GetQRCode(c *gin.Context) {
	png, err := h.qrPNG()
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, QRCodeResponse{
		QRData:    h.venueCode,
		QRCodeURL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	})
}

// GetQRCodePNG godoc
// @ID          getQRCodePNG
// @Summary     Venue QR code image
// @Tags        QR
// @Produce     png
// @Success     200  {file}    binary
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /qr-code.png [get]
func (h *Handlers) GetQRCodePNG(c *gin.Context) {
	png, err := h.qrPNG()
	if err != nil {
		failService(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "image/png", png)
}
