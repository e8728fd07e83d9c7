package lifecycle

import "fmt"

// Step is one engine subsystem brought up by Init, in execution order.
type Step int

const (
	StepMemory Step = iota
	StepStreaming
	StepPlatform
	StepCore
	StepMusic
	StepComm
)

var stepNames = [...]string{"memory", "streaming", "platform", "core", "music", "comm"}

func (s Step) String() string {
	if s < 0 || int(s) >= len(stepNames) {
		return fmt.Sprintf("Step(%d)", int(s))
	}
	return stepNames[s]
}

// StepError reports the first init step that failed.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("init %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
