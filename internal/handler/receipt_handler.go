package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/badger-tutors-api/internal/dto"
	"github.com/noah-isme/badger-tutors-api/pkg/response"
)

type receiptService interface {
	Receipt(ctx context.Context, sessionID, wallet string) ([]byte, error)
	ShareLink(ctx context.Context, sessionID, wallet, baseURL string) (*dto.ReceiptLink, error)
	OpenLink(ctx context.Context, token string) ([]byte, string, error)
}

// ReceiptHandler serves settlement receipts of released sessions.
type ReceiptHandler struct {
	service   receiptService
	apiPrefix string
}

// NewReceiptHandler builds a new handler. apiPrefix roots generated links.
func NewReceiptHandler(service receiptService, apiPrefix string) *ReceiptHandler {
	return &ReceiptHandler{service: service, apiPrefix: apiPrefix}
}

// Download godoc
// @Summary Download the settlement receipt of a released session
// @Tags Receipts
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {file} file
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/receipt [get]
func (h *ReceiptHandler) Download(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	sessionID := c.Param("id")
	data, err := h.service.Receipt(c.Request.Context(), sessionID, claims.Wallet)
	if err != nil {
		response.Error(c, err)
		return
	}
	writePDF(c, "receipt-"+sessionID+".pdf", data)
}

// ShareLink godoc
// @Summary Create an expiring share link for a receipt
// @Tags Receipts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 201 {object} response.Envelope
// @Router /sessions/{id}/receipt/link [post]
func (h *ReceiptHandler) ShareLink(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	link, err := h.service.ShareLink(c.Request.Context(), c.Param("id"), claims.Wallet, h.baseURL(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, link)
}

// Open godoc
// @Summary Download a receipt through a share link
// @Tags Receipts
// @Produce application/pdf
// @Param token path string true "Share token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /receipts/{token} [get]
func (h *ReceiptHandler) Open(c *gin.Context) {
	data, name, err := h.service.OpenLink(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	writePDF(c, name, data)
}

func (h *ReceiptHandler) baseURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}
	return scheme + "://" + c.Request.Host + "/" + strings.Trim(h.apiPrefix, "/")
}

func writePDF(c *gin.Context, name string, data []byte) {
	c.Header("Cache-Control", "no-store")
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/pdf", data)
}
