package checkout

type Step string

const (
	StepShipping            Step = "shipping"
	StepPayment             Step = "payment"
	StepReview              Step = "review"
	StepProcessing          Step = "processing"
	StepComplete            Step = "complete"
	StepNeedsReconciliation Step = "needs_reconciliation"
)

var transitions = map[Step][]Step{
	StepShipping:   {StepPayment},
	StepPayment:    {StepShipping, StepReview},
	StepReview:     {StepPayment, StepProcessing},
	StepProcessing: {StepReview, StepComplete, StepNeedsReconciliation},
}

func (s Step) IsTerminal() bool {
	return s == StepComplete || s == StepNeedsReconciliation
}

func (s Step) String() string {
	return string(s)
}

func CanTransitionTo(from, to Step) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
