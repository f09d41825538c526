package condition

import "fmt"

// Result of the evaluation, Reason is set when the task is skipped.
type Result struct {
	Run          bool
	Reason       string
	Measurements []Measurement
}

// Measurement is the measured value of a trigger.
type Measurement struct {
	Key       string
	Value     int64
	Threshold int64
}

func Run() Result {
	return Result{Run: true}
}

func Skip(reason string) Result {
	return Result{Reason: reason}
}

func (r Result) String() string {
	if r.Run {
		return "run"
	}
	return "skip: " + r.Reason
}

func (m Measurement) Met() bool {
	return m.Value >= m.Threshold
}

func (m Measurement) String() string {
	return fmt.Sprintf("%s %d of %d", m.Key, m.Value, m.Threshold)
}
