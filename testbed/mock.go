package testbed

import "context"

// Recorder is a CommandRunner that records invocations instead of running
// them. RunFunc, when set, controls the returned error per invocation.
type Recorder struct {
	Commands [][]string
	RunFunc  func(name string, args ...string) error
}

// Run implements CommandRunner.
func (r *Recorder) Run(_ context.Context, name string, args ...string) error {
	invocation := append([]string{name}, args...)
	r.Commands = append(r.Commands, invocation)

	if r.RunFunc != nil {
		return r.RunFunc(name, args...)
	}

	return nil
}
