// -*- tab-width:2 -*-

package netchan

// This file has the delay distributions and the sampler over them.

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// DelayModel tags the supported base-delay distributions.
type DelayModel string

// The supported models; the tag values match the config file.
const (
	ModelExponential DelayModel = "exponential"
	ModelNormal      DelayModel = "normal"
	ModelUniform     DelayModel = "uniform"
)

// DelaySpec selects a delay distribution and its parameters.
// Lambda is the mean delay of the exponential model, in ms.
type DelaySpec struct {
	Model  DelayModel
	Lambda Milliseconds // exponential
	Mu     Milliseconds // normal
	Sigma  Milliseconds // normal
	Low    Milliseconds // uniform
	High   Milliseconds // uniform
}

// Sampler draws base delays from a configured distribution. A sampler
// owns its random source; each channel pipeline builds its own so no
// mutable state is shared across channels.
type Sampler struct {
	spec DelaySpec
	dist distuv.Rander
}

// NewSampler validates the spec and builds a sampler around src.
func NewSampler(spec DelaySpec, src rand.Source) (*Sampler, error) {
	s := Sampler{spec: spec}

	switch spec.Model {
	case ModelExponential:
		if spec.Lambda <= 0 {
			return nil, fmt.Errorf("%w: exponential lambda %v must be > 0",
				ErrInvalidConfig, spec.Lambda)
		}

		s.dist = distuv.Exponential{Rate: 1 / float64(spec.Lambda), Src: src}
	case ModelNormal:
		if spec.Sigma <= 0 {
			return nil, fmt.Errorf("%w: normal sigma %v must be > 0",
				ErrInvalidConfig, spec.Sigma)
		}

		s.dist = distuv.Normal{Mu: float64(spec.Mu), Sigma: float64(spec.Sigma), Src: src}
	case ModelUniform:
		if spec.Low < 0 || spec.Low > spec.High {
			return nil, fmt.Errorf("%w: uniform bounds [%v, %v]",
				ErrInvalidConfig, spec.Low, spec.High)
		}

		s.dist = distuv.Uniform{Min: float64(spec.Low), Max: float64(spec.High), Src: src}
	default:
		return nil, fmt.Errorf("%w: unknown distribution %q",
			ErrInvalidConfig, spec.Model)
	}

	return &s, nil
}

// Sample draws one base delay. Negative draws (possible under the
// normal model) are floored to zero.
func (s *Sampler) Sample() Milliseconds {
	d := s.dist.Rand()
	if d < 0 {
		d = 0
	}

	return Milliseconds(d)
}
