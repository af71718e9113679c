package capture

import "math"

const (
	// StillThreshold is the summed absolute acceleration (m/s², gravity removed)
	// below which a sample counts as still.
	StillThreshold = 0.3

	stillStep  = 10
	movingStep = 20
	maxScore   = 100
	ReadyScore = 90
)

// MotionSample is one linear-acceleration reading with gravity removed.
// Axes the platform did not report are zero.
type MotionSample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Magnitude returns |x| + |y| + |z|.
func (s MotionSample) Magnitude() float64 {
	return math.Abs(s.X) + math.Abs(s.Y) + math.Abs(s.Z)
}

// Reading is the advisory steadiness signal shown while aiming at a label.
type Reading struct {
	Score int  `json:"score"`
	Ready bool `json:"ready"`
}

// Estimator turns motion samples into a 0-100 steadiness score.
//
// The score rises slowly while the device is still and falls fast on movement,
// so Ready needs nine consecutive still samples from zero. The zero value is a
// fresh estimator. An Estimator is owned by a single capture session and is not
// safe for concurrent use.
type Estimator struct {
	score int
}

// Observe feeds one sample and returns the updated reading.
func (e *Estimator) Observe(s MotionSample) Reading {
	if s.Magnitude() < StillThreshold {
		e.score = min(e.score+stillStep, maxScore)
	} else {
		e.score = max(e.score-movingStep, 0)
	}
	return e.Reading()
}

// Reading returns the current score without consuming a sample.
func (e *Estimator) Reading() Reading {
	return Reading{Score: e.score, Ready: e.score >= ReadyScore}
}

// Reset drops accumulated steadiness, as on every new activation.
func (e *Estimator) Reset() {
	e.score = 0
}
