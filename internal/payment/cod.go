package payment

import "context"

const CODToken = "cod:no-payment-required"

// PayOnDelivery collects nothing and always confirms.
type PayOnDelivery struct{}

func (PayOnDelivery) Method() Method { return MethodCOD }

func (PayOnDelivery) CollectDetails(context.Context, Input, Amount) (Selection, error) {
	return Selection{Method: MethodCOD, Display: "Cash on delivery"}, nil
}

func (PayOnDelivery) Confirm(context.Context, Selection, Amount) Result {
	return Succeeded(CODToken)
}
