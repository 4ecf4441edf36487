package attendance

import (
	"net/http"
	"strconv"
	"strings"

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

func actorEmployeeID(c *gin.Context) string {
	employeeID := c.GetString("employee_id")
	if employeeID == "" {
		employeeID = c.GetString("user_id_validated")
	}
	return employeeID
}

func (h *Handler) bindClockAction(c *gin.Context) (ClockActionRequest, bool) {
	var req ClockActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		mapped := apperror.ToHTTP(apperror.MapValidationError(err))
		response.Error(c, mapped.Status, mapped.Code, mapped.Message, err.Error())
		return req, false
	}
	return req, true
}

func (h *Handler) ClockIn(c *gin.Context) {
	req, ok := h.bindClockAction(c)
	if !ok {
		return
	}

	resp, err := h.service.ClockIn(c.Request.Context(), c.GetString("company_id"), actorEmployeeID(c), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, resp, nil)
}

func (h *Handler) ClockOut(c *gin.Context) {
	req, ok := h.bindClockAction(c)
	if !ok {
		return
	}

	resp, err := h.service.ClockOut(c.Request.Context(), c.GetString("company_id"), actorEmployeeID(c), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) BreakStart(c *gin.Context) {
	req, ok := h.bindClockAction(c)
	if !ok {
		return
	}

	resp, err := h.service.BreakStart(c.Request.Context(), c.GetString("company_id"), actorEmployeeID(c), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) BreakEnd(c *gin.Context) {
	req, ok := h.bindClockAction(c)
	if !ok {
		return
	}

	resp, err := h.service.BreakEnd(c.Request.Context(), c.GetString("company_id"), actorEmployeeID(c), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) RevokeClockOut(c *gin.Context) {
	resp, err := h.service.RevokeClockOut(c.Request.Context(), c.GetString("company_id"), c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) GetToday(c *gin.Context) {
	resp, err := h.service.GetToday(c.Request.Context(), c.GetString("company_id"), actorEmployeeID(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) GetAll(c *gin.Context) {
	companyID := c.GetString("company_id")
	actorID := actorEmployeeID(c)
	role := strings.ToUpper(strings.TrimSpace(c.GetString("role")))
	canReadAll := isPrivilegedRole(role)

	resp, err := h.service.GetAll(c.Request.Context(), companyID, actorID, canReadAll)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	if pageSize < 1 {
		pageSize = 10
	}

	total := int64(len(resp))
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(resp) {
		start = len(resp)
	}
	if end > len(resp) {
		end = len(resp)
	}

	meta := response.NewPaginationMeta(total, page, pageSize)
	response.Success(c, http.StatusOK, resp[start:end], &meta)
}

func isPrivilegedRole(role string) bool {
	switch role {
	case "SUPER_ADMIN", "ADMIN", "HR", "MANAGER":
		return true
	default:
		return false
	}
}
