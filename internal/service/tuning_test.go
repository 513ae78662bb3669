package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tilt_control/internal/models"
	"tilt_control/internal/sample"
	"tilt_control/internal/source"
	"tilt_control/internal/tilt"
)

// stubController satisfies TiltController without a running loop.
type stubController struct {
	mu     sync.Mutex
	tilt   float64
	params models.TiltParams
	setErr error
}

func (s *stubController) Tilt() float64 { return s.tilt }
func (s *stubController) Params() models.TiltParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}
func (s *stubController) SetParams(p models.TiltParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.params = p
	return nil
}

func ptr(f float64) *float64 { return &f }

func TestTuningService_SetParams_LogsChange(t *testing.T) {
	ctrl := &stubController{params: tilt.DefaultParams()}
	repo := &fakeEventRepo{}
	svc := NewTuningService(ctrl, repo)

	next := models.TiltParams{Baseline: 0.1, DeadZone: 0.6, ScaleFactor: 1.6}
	if err := svc.SetParams(context.Background(), next); err != nil {
		t.Fatalf("SetParams: %v", err)
	}
	if svc.GetParams(context.Background()) != next {
		t.Fatalf("params not applied")
	}
	if len(repo.appended) != 1 {
		t.Fatalf("expected 1 event, got %d", len(repo.appended))
	}
	ev := repo.appended[0]
	if ev.Type != models.EventParamsChange || ev.EventID == "" || ev.OccurredAt.IsZero() {
		t.Fatalf("event = %+v", ev)
	}
	meta, ok := ev.Metadata.(map[string]any)
	if !ok || meta["previous"] != tilt.DefaultParams() || meta["current"] != next {
		t.Fatalf("metadata = %#v", ev.Metadata)
	}
}

func TestTuningService_SetParams_Rejected(t *testing.T) {
	ctrl := &stubController{params: tilt.DefaultParams(), setErr: errors.New("invalid")}
	repo := &fakeEventRepo{}
	svc := NewTuningService(ctrl, repo)

	if err := svc.SetParams(context.Background(), models.TiltParams{}); err == nil {
		t.Fatalf("expected error")
	}
	if len(repo.appended) != 0 {
		t.Fatalf("rejected change must not be logged")
	}
}

func TestTuningService_AppendFailureKeepsChange(t *testing.T) {
	ctrl := &stubController{params: tilt.DefaultParams()}
	repo := &fakeEventRepo{appendErr: errors.New("database is locked")}
	svc := NewTuningService(ctrl, repo)

	got, err := svc.PatchParams(context.Background(), ParamsPatch{DeadZone: ptr(0.5)})
	if !errors.Is(err, ErrChangeNotLogged) {
		t.Fatalf("expected ErrChangeNotLogged, got %v", err)
	}
	if errors.Is(err, tilt.ErrInvalidParams) {
		t.Fatalf("storage failure must not look like a validation failure")
	}
	want := tilt.DefaultParams()
	want.DeadZone = 0.5
	if got != want || ctrl.Params() != want {
		t.Fatalf("returned %+v, live %+v, want %+v", got, ctrl.Params(), want)
	}
}

func TestTuningService_PatchParams(t *testing.T) {
	def := tilt.DefaultParams()
	cases := []struct {
		name    string
		patch   ParamsPatch
		want    models.TiltParams
		wantErr error
		events  int
	}{
		{
			name:   "empty patch re-applies current",
			want:   def,
			events: 1,
		},
		{
			name:   "single field",
			patch:  ParamsPatch{ScaleFactor: ptr(2)},
			want:   models.TiltParams{Baseline: def.Baseline, DeadZone: def.DeadZone, ScaleFactor: 2},
			events: 1,
		},
		{
			name:    "invalid leaves params untouched",
			patch:   ParamsPatch{DeadZone: ptr(-1)},
			want:    def,
			wantErr: tilt.ErrInvalidParams,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := source.Func(func(context.Context) (sample.Value, error) { return sample.None(), nil })
			ctrl, err := tilt.NewController(src, tilt.NewState(), tilt.Options{})
			if err != nil {
				t.Fatal(err)
			}
			repo := &fakeEventRepo{}
			svc := NewTuningService(ctrl, repo)

			got, err := svc.PatchParams(context.Background(), tc.patch)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if got != tc.want || ctrl.Params() != tc.want {
				t.Fatalf("got %+v, live %+v, want %+v", got, ctrl.Params(), tc.want)
			}
			if len(repo.appended) != tc.events {
				t.Fatalf("events = %d, want %d", len(repo.appended), tc.events)
			}
		})
	}
}

// slowController widens the gap between reading and writing params.
type slowController struct {
	stubController
}

func (s *slowController) Params() models.TiltParams {
	p := s.stubController.Params()
	time.Sleep(time.Millisecond)
	return p
}

// concurrent partial updates to different fields must all survive
func TestTuningService_ConcurrentPatchesDoNotLoseUpdates(t *testing.T) {
	for round := 0; round < 20; round++ {
		ctrl := &slowController{stubController{params: tilt.DefaultParams()}}
		svc := NewTuningService(ctrl, &lockedEventRepo{})

		patches := []ParamsPatch{
			{Baseline: ptr(1)},
			{DeadZone: ptr(2)},
			{ScaleFactor: ptr(3)},
		}
		var wg sync.WaitGroup
		for _, p := range patches {
			p := p
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = svc.PatchParams(context.Background(), p)
			}()
		}
		wg.Wait()

		want := models.TiltParams{Baseline: 1, DeadZone: 2, ScaleFactor: 3}
		if got := ctrl.stubController.Params(); got != want {
			t.Fatalf("round %d: params = %+v, want %+v", round, got, want)
		}
	}
}

// lockedEventRepo is a goroutine-safe event sink.
type lockedEventRepo struct {
	mu sync.Mutex
	n  int
}

func (r *lockedEventRepo) Append(ctx context.Context, e models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.n++
	return nil
}

func (r *lockedEventRepo) List(ctx context.Context, f models.EventFilter) ([]models.Event, error) {
	return nil, nil
}

func TestTuningService_WithRealController(t *testing.T) {
	src := source.Func(func(context.Context) (sample.Value, error) { return sample.Num(2), nil })
	ctrl, err := tilt.NewController(src, tilt.NewState(), tilt.Options{})
	if err != nil {
		t.Fatal(err)
	}
	svc := NewTuningService(ctrl, &fakeEventRepo{})

	bad := models.TiltParams{DeadZone: 1, ScaleFactor: 0}
	if err := svc.SetParams(context.Background(), bad); !errors.Is(err, tilt.ErrInvalidParams) {
		t.Fatalf("controller validation should reject scale 0, got %v", err)
	}

	if err := svc.SetParams(context.Background(), models.TiltParams{ScaleFactor: 3}); err != nil {
		t.Fatal(err)
	}
	if _, err := ctrl.Step(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := ctrl.Tilt(); got != 6 {
		t.Fatalf("tilt = %v, want 6", got)
	}
}
