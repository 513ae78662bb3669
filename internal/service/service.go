package service

import (
	"context"

	"tilt_control/internal/models"
	"tilt_control/internal/repository"
)

type Authorization interface {
	GenerateToken(password string) (string, error)
	ParseToken(accessToken string) (string, error)
}

// Monitoring exposes the live control value.
type Monitoring interface {
	GetTilt(ctx context.Context) models.TiltSnapshot
}

// Tuning reads and replaces the controller parameters at runtime.
type Tuning interface {
	GetParams(ctx context.Context) models.TiltParams
	SetParams(ctx context.Context, p models.TiltParams) error
	PatchParams(ctx context.Context, patch ParamsPatch) (models.TiltParams, error)
}

// EventLog exposes append-only logs with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.Event, error)
}

// TiltController is the part of tilt.Controller the services need.
type TiltController interface {
	Tilt() float64
	Params() models.TiltParams
	SetParams(p models.TiltParams) error
}

// Service aggregates all sub-services.
type Service struct {
	Monitoring
	Tuning
	EventLog
	Authorization
}

// NewService wires the repository layer and the running controller into
// concrete services.
func NewService(repos *repository.Repository, ctrl TiltController, auth AuthConfig, maxSpeed float64) *Service {
	return &Service{
		Monitoring:    NewMonitoringService(ctrl, maxSpeed),
		Tuning:        NewTuningService(ctrl, repos.EventRepo),
		EventLog:      NewEventLogService(repos.EventRepo),
		Authorization: NewAuthService(auth),
	}
}
