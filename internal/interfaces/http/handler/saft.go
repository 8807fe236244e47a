package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	fiscalapp "github.com/kwanza/fiscal/internal/application/fiscal"
	saftapp "github.com/kwanza/fiscal/internal/application/saft"
	"github.com/kwanza/fiscal/internal/domain/shared"
)

// SAFTExporter builds audit files. Implemented by saftapp.ExportService.
type SAFTExporter interface {
	Export(ctx context.Context, p fiscalapp.Principal, start, end time.Time) (*saftapp.Export, error)
}

// SAFTHandler serves SAF-T (AO) exports
type SAFTHandler struct {
	BaseHandler
	exporter SAFTExporter
}

// NewSAFTHandler creates a new SAFTHandler
func NewSAFTHandler(exporter SAFTExporter) *SAFTHandler {
	return &SAFTHandler{exporter: exporter}
}

// SAFTQuery is the export period, both dates inclusive
type SAFTQuery struct {
	StartDate string `form:"start_date" binding:"required"`
	EndDate   string `form:"end_date" binding:"required"`
}

// Export godoc
// @ID           exportSAFT
// @Summary      Export the SAF-T (AO) audit file for a period
// @Tags         saft
// @Produce      application/xml
// @Param        start_date query string true "First issue date (YYYY-MM-DD)"
// @Param        end_date   query string true "Last issue date (YYYY-MM-DD)"
// @Success      200 {file} file
// @Failure      400 {object} ErrorResponse
// @Failure      429 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /fiscal/saft [get]
func (h *SAFTHandler) Export(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var query SAFTQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.Error(c, http.StatusBadRequest, shared.CodeValidation, "start_date and end_date are required")
		return
	}
	start, err := parseQueryDate("start_date", query.StartDate)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	end, err := parseQueryDate("end_date", query.EndDate)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	export, err := h.exporter.Export(c.Request.Context(), p, *start, *end)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+export.FileName+`"`)
	c.Header("X-Document-Count", strconv.Itoa(export.DocumentCount))
	c.Data(http.StatusOK, "application/xml; charset=utf-8", export.Content)
}

var _ SAFTExporter = (*saftapp.ExportService)(nil)
