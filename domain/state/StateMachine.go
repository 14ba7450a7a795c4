package state

import "pilotage/bizerror"

type StateMachineTraits interface {
	AvailableTransitions(fromState string, toState string) []Transition
	Transit(fromState string, toState string) (*Transition, error)
}

// stateless object, just used for state computing
type StateMachine struct {
	States      []State      `json:"states"`
	Transitions []Transition `json:"transitions"`
}

type Category uint

const (
	Open Category = iota
	Final
)

type State struct {
	Name     string   `json:"name"`
	Category Category `json:"category"`
}

type Transition struct {
	Name string `json:"name"`
	From State  `json:"from"`
	To   State  `json:"to"`
}

func NewStateMachine(states []State, transitions []Transition) *StateMachine {
	return &StateMachine{States: states, Transitions: transitions}
}

// AvailableTransitions filters by source and target state; an empty name matches any.
func (sm *StateMachine) AvailableTransitions(fromState string, toState string) []Transition {
	r := []Transition{}
	for _, transition := range sm.Transitions {
		if (fromState == "" || fromState == transition.From.Name) && (toState == "" || toState == transition.To.Name) {
			r = append(r, transition)
		}
	}
	return r
}

// Transit returns the declared transition between two states or
// bizerror.ErrInvalidTransition.
func (sm *StateMachine) Transit(fromState string, toState string) (*Transition, error) {
	if fromState == "" || toState == "" {
		return nil, bizerror.ErrInvalidTransition
	}
	transitions := sm.AvailableTransitions(fromState, toState)
	if len(transitions) == 0 {
		return nil, bizerror.ErrInvalidTransition
	}
	return &transitions[0], nil
}

func (sm *StateMachine) FindState(name string) (*State, bool) {
	for _, s := range sm.States {
		if s.Name == name {
			return &s, true
		}
	}
	return nil, false
}
