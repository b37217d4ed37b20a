package qrcode

import (
	"bytes"
	"net/http"

	"github.com/jung-kurt/gofpdf/v2"
	"github.com/pkg/errors"
	qr "github.com/skip2/go-qrcode"

	"presence/backend/foundation/web"
	"presence/backend/internal/auth"
	"presence/backend/internal/entity"
	"presence/backend/internal/repository/postgres"
	"presence/backend/internal/repository/postgres/qrcode"
)

type Controller struct {
	qrcode QRCode
}

func NewController(qrcode QRCode) *Controller {
	return &Controller{qrcode}
}

func (uc Controller) Issue(c *web.Context) error {
	claims, err := auth.GetClaims(c.Ctx)
	if err != nil {
		return c.RespondError(err)
	}

	var request qrcode.IssueRequest
	if err := c.BindFunc(&request, "Kind"); err != nil {
		return c.RespondError(err)
	}
	if request.OrganizationID == 0 {
		request.OrganizationID = claims.OrganizationID
	}

	response, err := uc.qrcode.Issue(c.Ctx, request)
	if err != nil {
		return c.RespondError(err)
	}

	return c.Respond(map[string]interface{}{
		"data":   response,
		"status": true,
	}, http.StatusOK)
}

func (uc Controller) Regenerate(c *web.Context) error {
	claims, err := auth.GetClaims(c.Ctx)
	if err != nil {
		return c.RespondError(err)
	}

	var request qrcode.RegenerateRequest
	if err := c.BindFunc(&request, "Kind"); err != nil {
		return c.RespondError(err)
	}
	if request.OrganizationID == 0 {
		request.OrganizationID = claims.OrganizationID
	}

	response, err := uc.qrcode.Regenerate(c.Ctx, request)
	if err != nil {
		return c.RespondError(err)
	}

	return c.Respond(map[string]interface{}{
		"data":   response,
		"status": true,
	}, http.StatusOK)
}

// GetImage streams the current code for the kind as a PNG for display
// screens.
func (uc Controller) GetImage(c *web.Context) error {
	claims, err := auth.GetClaims(c.Ctx)
	if err != nil {
		return c.RespondError(err)
	}

	kind := c.Query("kind")
	if kind == "" {
		return c.RespondError(web.NewRequestError(errors.New("kind parameter is required"), http.StatusBadRequest))
	}

	code, err := uc.qrcode.GetCurrent(c.Ctx, claims.OrganizationID, kind)
	if errors.Is(err, postgres.ErrNotFound) {
		return c.RespondError(web.NewRequestError(errors.New("no active code for this kind"), http.StatusNotFound))
	}
	if err != nil {
		return c.RespondError(err)
	}

	png, err := qr.Encode(code.Code, qr.Medium, 512)
	if err != nil {
		return c.RespondError(errors.Wrap(err, "rendering qr png"))
	}

	c.Header("Content-Type", "image/png")
	c.Header("Content-Disposition", "inline; filename=qr_"+kind+".png")
	c.Status(http.StatusOK)
	if _, err = c.Writer.Write(png); err != nil {
		return c.RespondError(err)
	}

	return nil
}

// GetPoster streams a printable PDF with the organization's current
// check-in and check-out codes side by side.
func (uc Controller) GetPoster(c *web.Context) error {
	claims, err := auth.GetClaims(c.Ctx)
	if err != nil {
		return c.RespondError(err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 24)
	pdf.CellFormat(0, 16, "Attendance QR Codes", "", 1, "C", false, 0, "")

	kinds := []struct {
		kind  string
		label string
		y     float64
	}{
		{entity.QRKindCheckIn, "Check in", 40},
		{entity.QRKindCheckOut, "Check out", 160},
	}

	for _, item := range kinds {
		code, err := uc.qrcode.GetCurrent(c.Ctx, claims.OrganizationID, item.kind)
		if errors.Is(err, postgres.ErrNotFound) {
			continue
		}
		if err != nil {
			return c.RespondError(err)
		}

		png, err := qr.Encode(code.Code, qr.Medium, 512)
		if err != nil {
			return c.RespondError(errors.Wrap(err, "rendering qr png"))
		}

		name := "qr_" + item.kind
		pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(png))
		pdf.ImageOptions(name, 60, item.y, 90, 90, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")

		pdf.SetFont("Arial", "", 16)
		pdf.SetXY(0, item.y+92)
		pdf.CellFormat(0, 10, item.label, "", 1, "C", false, 0, "")
	}

	var buf bytes.Buffer
	if err = pdf.Output(&buf); err != nil {
		return c.RespondError(errors.Wrap(err, "writing poster pdf"))
	}

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", "attachment; filename=\"qr_poster.pdf\"")
	c.Status(http.StatusOK)
	if _, err = c.Writer.Write(buf.Bytes()); err != nil {
		return c.RespondError(err)
	}

	return nil
}
