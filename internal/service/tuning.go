package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tilt_control/internal/models"
	"tilt_control/internal/repository"

	"github.com/google/uuid"
)

// ErrChangeNotLogged means the tuning is live but its PARAMS_CHANGE event
// could not be stored.
var ErrChangeNotLogged = errors.New("params applied but not recorded")

// ParamsPatch changes only the fields that are set.
type ParamsPatch struct {
	Baseline    *float64
	DeadZone    *float64
	ScaleFactor *float64
}

func (p ParamsPatch) apply(cur models.TiltParams) models.TiltParams {
	if p.Baseline != nil {
		cur.Baseline = *p.Baseline
	}
	if p.DeadZone != nil {
		cur.DeadZone = *p.DeadZone
	}
	if p.ScaleFactor != nil {
		cur.ScaleFactor = *p.ScaleFactor
	}
	return cur
}

type TuningService struct {
	ctrl      TiltController
	eventRepo repository.EventRepo

	// mu serialises read-modify-write of the controller params.
	mu sync.Mutex
}

func NewTuningService(ctrl TiltController, eventRepo repository.EventRepo) *TuningService {
	return &TuningService{ctrl: ctrl, eventRepo: eventRepo}
}

func (s *TuningService) GetParams(ctx context.Context) models.TiltParams {
	return s.ctrl.Params()
}

// SetParams replaces the whole tuning. See PatchParams for the error contract.
func (s *TuningService) SetParams(ctx context.Context, p models.TiltParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.swap(ctx, s.ctrl.Params(), p)
}

// PatchParams merges patch into the current tuning and applies it on the next
// controller tick. It returns the tuning now in effect. A validation failure
// wraps tilt.ErrInvalidParams and changes nothing; ErrChangeNotLogged means
// the new tuning is live anyway.
func (s *TuningService) PatchParams(ctx context.Context, patch ParamsPatch) (models.TiltParams, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.ctrl.Params()
	err := s.swap(ctx, prev, patch.apply(prev))
	return s.ctrl.Params(), err
}

func (s *TuningService) swap(ctx context.Context, prev, next models.TiltParams) error {
	if err := s.ctrl.SetParams(next); err != nil {
		return err
	}

	err := s.eventRepo.Append(ctx, models.Event{
		EventID:     uuid.NewString(),
		OccurredAt:  time.Now().UTC(),
		Type:        models.EventParamsChange,
		Description: "Tilt parameters updated",
		Metadata: map[string]any{
			"previous": prev,
			"current":  next,
		},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChangeNotLogged, err)
	}
	return nil
}
