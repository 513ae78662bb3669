package models

// TiltParams configures the live conditioning pipeline.
type TiltParams struct {
	Baseline    float64 `json:"baseline"`
	DeadZone    float64 `json:"dead_zone"`
	ScaleFactor float64 `json:"scale_factor"`
}

// TiltSnapshot is what readers of the control value see.
type TiltSnapshot struct {
	Tilt      float64    `json:"tilt"`       // clamped to [-10, 10]
	MoveSpeed float64    `json:"move_speed"` // signed, negative = left
	Direction string     `json:"direction"`  // LEFT | RIGHT | CENTER
	Params    TiltParams `json:"params"`
}
