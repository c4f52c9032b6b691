package chain

import (
	"context"
	"fmt"
	"time"

	"medisense/internal/opencv/safe"
)

// ProcessingStep transforms one Mat into a new Mat. Steps never modify or
// close their input.
type ProcessingStep interface {
	Apply(ctx context.Context, input *safe.Mat) (*safe.Mat, error)
	Name() string
}

// Observer is notified after every step with the step output. The output is
// only valid for the duration of the call.
type Observer func(step string, output *safe.Mat, elapsed time.Duration)

type ProcessingChain struct {
	steps    []ProcessingStep
	observer Observer
}

func NewProcessingChain(steps ...ProcessingStep) *ProcessingChain {
	return &ProcessingChain{
		steps: steps,
	}
}

func (pc *ProcessingChain) WithObserver(observer Observer) *ProcessingChain {
	pc.observer = observer
	return pc
}

// Execute runs every step in order. Intermediate Mats are closed as soon as
// the next step has consumed them; input stays owned by the caller and the
// returned Mat is always a new value.
func (pc *ProcessingChain) Execute(ctx context.Context, input *safe.Mat) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(input, "processing chain"); err != nil {
		return nil, err
	}

	if len(pc.steps) == 0 {
		return input.Clone()
	}

	current := input
	release := func() {
		if current != input {
			current.Close()
		}
	}

	for _, step := range pc.steps {
		select {
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		default:
		}

		start := time.Now()
		result, err := step.Apply(ctx, current)
		if err != nil {
			release()
			return nil, fmt.Errorf("step %s failed: %w", step.Name(), err)
		}

		release()
		current = result

		if pc.observer != nil {
			pc.observer(step.Name(), current, time.Since(start))
		}
	}

	return current, nil
}

func (pc *ProcessingChain) AddStep(step ProcessingStep) {
	pc.steps = append(pc.steps, step)
}

func (pc *ProcessingChain) StepCount() int {
	return len(pc.steps)
}

func (pc *ProcessingChain) GetStepNames() []string {
	names := make([]string, len(pc.steps))
	for i, step := range pc.steps {
		names[i] = step.Name()
	}
	return names
}
