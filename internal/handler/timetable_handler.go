package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type timetableWorkflow interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.TimetableProposalResponse, error)
	GetProposal(ctx context.Context, id string) (*dto.TimetableProposalResponse, error)
	Compare(ctx context.Context, id string) (*dto.TimetableComparisonResponse, error)
	Apply(ctx context.Context, id string) (*dto.ApplyTimetableResponse, error)
	Reject(ctx context.Context, id string) (*dto.TimetableProposalResponse, error)
	ClassTimetable(ctx context.Context, classID string) (*dto.ClassTimetableResponse, error)
	Conflicts(ctx context.Context, classID string) (*dto.ConflictReportResponse, error)
	CreateTemplate(ctx context.Context, req dto.CreateTimetableTemplateRequest) (*dto.TimetableTemplateResponse, error)
	ListTemplates(ctx context.Context) ([]dto.TimetableTemplateResponse, error)
	GetTemplate(ctx context.Context, id string) (*dto.TimetableTemplateResponse, error)
	DeleteTemplate(ctx context.Context, id string) error
}

type timetableExporter interface {
	ExportClass(ctx context.Context, classID string, format service.ExportFormat) (*service.ExportResult, error)
}

// TimetableHandler exposes timetable generation, review and apply endpoints.
type TimetableHandler struct {
	service  timetableWorkflow
	exporter timetableExporter
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(svc *service.TimetableService, exporter *service.ExportService) *TimetableHandler {
	return &TimetableHandler{service: svc, exporter: exporter}
}

// Generate godoc
// @Summary Generate a timetable proposal for a class
// @Description Builds the slot grid, plans subject demand and assigns subjects while avoiding teachers committed elsewhere. Nothing is persisted until the proposal is applied.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generation payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /timetables/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generation payload"))
		return
	}
	proposal, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "conflicts", len(proposal.Conflicts))
	response.JSON(c, http.StatusOK, proposal, middleware.ExtractMeta(c))
}

// GetProposal godoc
// @Summary Get a timetable proposal
// @Tags Timetables
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/proposals/{id} [get]
func (h *TimetableHandler) GetProposal(c *gin.Context) {
	proposal, err := h.service.GetProposal(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, proposal)
}

// Compare godoc
// @Summary Compare a proposal with the live timetable
// @Tags Timetables
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/proposals/{id}/compare [get]
func (h *TimetableHandler) Compare(c *gin.Context) {
	comparison, err := h.service.Compare(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, comparison)
}

// Apply godoc
// @Summary Apply a proposal
// @Description Replaces every live entry of the class with the proposal. A 500 with code TIMETABLE_APPLY_INCOMPLETE means the old timetable was removed and the apply should be retried.
// @Tags Timetables
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /timetables/proposals/{id}/apply [post]
func (h *TimetableHandler) Apply(c *gin.Context) {
	result, err := h.service.Apply(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if claims := claimsFromContext(c); claims != nil {
		middleware.SetMeta(c, "applied_by", claims.UserID)
	}
	response.JSON(c, http.StatusOK, result, middleware.ExtractMeta(c))
}

// Reject godoc
// @Summary Reject a proposal
// @Tags Timetables
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetables/proposals/{id}/reject [post]
func (h *TimetableHandler) Reject(c *gin.Context) {
	proposal, err := h.service.Reject(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, proposal)
}

// ClassTimetable godoc
// @Summary Get the live timetable of a class
// @Tags Timetables
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/classes/{classId} [get]
func (h *TimetableHandler) ClassTimetable(c *gin.Context) {
	timetable, err := h.service.ClassTimetable(c.Request.Context(), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timetable)
}

// Export godoc
// @Summary Export the live timetable of a class
// @Tags Timetables
// @Produce text/csv
// @Produce application/pdf
// @Param classId path string true "Class ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/classes/{classId}/export [get]
func (h *TimetableHandler) Export(c *gin.Context) {
	result, err := h.exporter.ExportClass(c.Request.Context(), c.Param("classId"), service.ExportFormat(c.Query("format")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Data)
}

// Conflicts godoc
// @Summary Audit live timetables for conflicts
// @Description Without class_id the whole school is audited. With class_id the report lists conflicts involving that class.
// @Tags Timetables
// @Produce json
// @Param class_id query string false "Class ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/conflicts [get]
func (h *TimetableHandler) Conflicts(c *gin.Context) {
	report, err := h.service.Conflicts(c.Request.Context(), c.Query("class_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, report.Cached)
	response.JSON(c, http.StatusOK, report, middleware.ExtractMeta(c))
}

// ListTemplates godoc
// @Summary List timetable templates
// @Tags Timetable Templates
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetables/templates [get]
func (h *TimetableHandler) ListTemplates(c *gin.Context) {
	templates, err := h.service.ListTemplates(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, templates)
}

// CreateTemplate godoc
// @Summary Create a timetable template
// @Tags Timetable Templates
// @Accept json
// @Produce json
// @Param payload body dto.CreateTimetableTemplateRequest true "Template payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /timetables/templates [post]
func (h *TimetableHandler) CreateTemplate(c *gin.Context) {
	var req dto.CreateTimetableTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid template payload"))
		return
	}
	tmpl, err := h.service.CreateTemplate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tmpl)
}

// GetTemplate godoc
// @Summary Get a timetable template
// @Tags Timetable Templates
// @Produce json
// @Param id path string true "Template ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/templates/{id} [get]
func (h *TimetableHandler) GetTemplate(c *gin.Context) {
	tmpl, err := h.service.GetTemplate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tmpl)
}

// DeleteTemplate godoc
// @Summary Delete a timetable template
// @Tags Timetable Templates
// @Param id path string true "Template ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /timetables/templates/{id} [delete]
func (h *TimetableHandler) DeleteTemplate(c *gin.Context) {
	if err := h.service.DeleteTemplate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
