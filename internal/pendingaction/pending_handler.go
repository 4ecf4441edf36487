package pendingaction

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-timeclock/internal/shared/apperror"
	"go-timeclock/internal/shared/response"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func writeServiceError(c *gin.Context, err error) {
	httpErr := apperror.ToHTTP(err)
	response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, httpErr.Details)
}

// Status backs the persistent "N pending sync" indicator.
func (h *Handler) Status(c *gin.Context) {
	resp, err := h.service.Status(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) Drain(c *gin.Context) {
	resp, err := h.service.Drain(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp, nil)
}
