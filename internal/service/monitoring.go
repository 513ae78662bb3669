package service

import (
	"context"

	"tilt_control/internal/models"
	"tilt_control/internal/tilt"
)

type MonitoringService struct {
	ctrl     TiltController
	maxSpeed float64
}

func NewMonitoringService(ctrl TiltController, maxSpeed float64) *MonitoringService {
	if maxSpeed <= 0 {
		maxSpeed = tilt.DefaultMaxSpeed
	}
	return &MonitoringService{ctrl: ctrl, maxSpeed: maxSpeed}
}

// GetTilt reads the control value once and derives the motion from that
// same reading.
func (s *MonitoringService) GetTilt(ctx context.Context) models.TiltSnapshot {
	v := s.ctrl.Tilt()
	return models.TiltSnapshot{
		Tilt:      v,
		MoveSpeed: tilt.MoveSpeed(v, s.maxSpeed),
		Direction: tilt.Direction(v),
		Params:    s.ctrl.Params(),
	}
}
