package pipeline

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

// Pipeline states. The sequence is strict; Failed is reachable from every
// non-terminal state.
const (
	StateStart              = "start"
	StateAttributeEnsured   = "attribute_ensured"
	StateLinted             = "linted"
	StateClassified         = "classified"
	StateResourceRegistered = "resource_registered"
	StateAssigned           = "assigned"
	StateDone               = "done"
	StateFailed             = "failed"
)

const (
	eventAdvance = "advance"
	eventFail    = "fail"
)

// ErrInvalidTransition is returned when an event does not apply to the
// current state.
var ErrInvalidTransition = errors.New("invalid pipeline transition")

type runContext struct {
	RunID string
}

// machine tracks where a single run is. It is not safe for concurrent use;
// every run owns its own.
type machine struct {
	interpreter *statekit.Interpreter[runContext]
}

func newMachine(runID string) (*machine, error) {
	builder := statekit.NewMachine[runContext]("agentready-pipeline").
		WithInitial(statekit.StateID(StateStart)).
		WithContext(runContext{RunID: runID})

	builder.State(StateStart).
		On(eventAdvance).Target(StateAttributeEnsured).
		On(eventFail).Target(StateFailed).
		Done()

	builder.State(StateAttributeEnsured).
		On(eventAdvance).Target(StateLinted).
		On(eventFail).Target(StateFailed).
		Done()

	builder.State(StateLinted).
		On(eventAdvance).Target(StateClassified).
		On(eventFail).Target(StateFailed).
		Done()

	builder.State(StateClassified).
		On(eventAdvance).Target(StateResourceRegistered).
		On(eventFail).Target(StateFailed).
		Done()

	builder.State(StateResourceRegistered).
		On(eventAdvance).Target(StateAssigned).
		On(eventFail).Target(StateFailed).
		Done()

	builder.State(StateAssigned).
		On(eventAdvance).Target(StateDone).
		Done()

	builder.State(StateDone).Done()
	builder.State(StateFailed).Done()

	def, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("building pipeline machine: %w", err)
	}

	interpreter := statekit.NewInterpreter(def)
	interpreter.Start()
	return &machine{interpreter: interpreter}, nil
}

func (m *machine) current() string {
	return string(m.interpreter.State().Value)
}

func (m *machine) send(event string) error {
	before := m.current()
	m.interpreter.Send(statekit.Event{Type: statekit.EventType(event)})
	if m.current() == before {
		return fmt.Errorf("%w: %q in state %q", ErrInvalidTransition, event, before)
	}
	return nil
}

func (m *machine) advance() error { return m.send(eventAdvance) }

func (m *machine) fail() error { return m.send(eventFail) }

// terminal reports whether the run has finished, successfully or not.
func (m *machine) terminal() bool {
	s := m.current()
	return s == StateDone || s == StateFailed
}
