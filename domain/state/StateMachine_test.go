package state_test

import (
	"pilotage/bizerror"
	"pilotage/domain/state"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("StateMachine", func() {
	var (
		stateMachine *state.StateMachine
	)

	BeforeEach(func() {
		//            DRAFT       SENT        SIGNED
		// DRAFT      -           V (send)    V (sign)
		// SENT       V (recall)  -           V (sign)
		// SIGNED     X           X           -
		stateMachine = state.NewStateMachine(
			[]state.State{{Name: "DRAFT"}, {Name: "SENT"}, {Name: "SIGNED", Category: state.Final}},
			[]state.Transition{
				{Name: "send", From: state.State{Name: "DRAFT"}, To: state.State{Name: "SENT"}},
				{Name: "sign", From: state.State{Name: "DRAFT"}, To: state.State{Name: "SIGNED", Category: state.Final}},
				{Name: "recall", From: state.State{Name: "SENT"}, To: state.State{Name: "DRAFT"}},
				{Name: "sign", From: state.State{Name: "SENT"}, To: state.State{Name: "SIGNED", Category: state.Final}},
			})
	})

	Describe("AvailableTransitions", func() {
		It("should filter transitions by source state", func() {
			Ω(stateMachine.AvailableTransitions("DRAFT", "")).Should(Equal([]state.Transition{
				{Name: "send", From: state.State{Name: "DRAFT"}, To: state.State{Name: "SENT"}},
				{Name: "sign", From: state.State{Name: "DRAFT"}, To: state.State{Name: "SIGNED", Category: state.Final}},
			}))
			Ω(stateMachine.AvailableTransitions("SENT", "SIGNED")).Should(Equal([]state.Transition{
				{Name: "sign", From: state.State{Name: "SENT"}, To: state.State{Name: "SIGNED", Category: state.Final}},
			}))
			Ω(len(stateMachine.AvailableTransitions("SIGNED", ""))).Should(Equal(0))
			Ω(len(stateMachine.AvailableTransitions("UNKNOWN", ""))).Should(Equal(0))
		})
	})

	Describe("Transit", func() {
		It("should return the declared transition", func() {
			t, err := stateMachine.Transit("SENT", "DRAFT")
			Ω(err).Should(BeNil())
			Ω(t.Name).Should(Equal("recall"))
		})

		It("should reject undeclared transitions", func() {
			_, err := stateMachine.Transit("SIGNED", "DRAFT")
			Ω(err).Should(Equal(bizerror.ErrInvalidTransition))
			_, err = stateMachine.Transit("", "DRAFT")
			Ω(err).Should(Equal(bizerror.ErrInvalidTransition))
		})
	})

	Describe("FindState", func() {
		It("should find declared states only", func() {
			s, found := stateMachine.FindState("SIGNED")
			Ω(found).Should(BeTrue())
			Ω(s.Category).Should(Equal(state.Final))
			_, found = stateMachine.FindState("UNKNOWN")
			Ω(found).Should(BeFalse())
		})
	})
})
