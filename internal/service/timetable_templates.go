package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// CreateTemplate stores a named settings preset.
func (s *TimetableService) CreateTemplate(ctx context.Context, req dto.CreateTimetableTemplateRequest) (*dto.TimetableTemplateResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable template payload")
	}
	raw, err := json.Marshal(req.Settings)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode template settings")
	}
	tmpl := &models.TimetableTemplate{Name: req.Name, Config: types.JSONText(raw)}
	if err := s.templates.Create(ctx, tmpl); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable template")
	}
	return templateResponse(*tmpl, req.Settings), nil
}

// ListTemplates returns every stored preset.
func (s *TimetableService) ListTemplates(ctx context.Context) ([]dto.TimetableTemplateResponse, error) {
	templates, err := s.templates.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable templates")
	}
	result := make([]dto.TimetableTemplateResponse, 0, len(templates))
	for _, tmpl := range templates {
		settings, err := decodeSettings(tmpl)
		if err != nil {
			return nil, err
		}
		result = append(result, *templateResponse(tmpl, settings))
	}
	return result, nil
}

// GetTemplate loads one preset.
func (s *TimetableService) GetTemplate(ctx context.Context, id string) (*dto.TimetableTemplateResponse, error) {
	tmpl, err := s.templates.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable template not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable template")
	}
	settings, err := decodeSettings(*tmpl)
	if err != nil {
		return nil, err
	}
	return templateResponse(*tmpl, settings), nil
}

// DeleteTemplate removes a preset.
func (s *TimetableService) DeleteTemplate(ctx context.Context, id string) error {
	deleted, err := s.templates.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable template")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "timetable template not found")
	}
	return nil
}

func decodeSettings(tmpl models.TimetableTemplate) (dto.TimetableSettings, error) {
	var settings dto.TimetableSettings
	if len(tmpl.Config) == 0 {
		return settings, nil
	}
	if err := tmpl.Config.Unmarshal(&settings); err != nil {
		return settings, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored template settings are malformed")
	}
	return settings, nil
}

func templateResponse(tmpl models.TimetableTemplate, settings dto.TimetableSettings) *dto.TimetableTemplateResponse {
	return &dto.TimetableTemplateResponse{
		ID:        tmpl.ID,
		Name:      tmpl.Name,
		Settings:  settings,
		CreatedAt: tmpl.CreatedAt,
		UpdatedAt: tmpl.UpdatedAt,
	}
}
