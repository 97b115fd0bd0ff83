package payment

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

var vpaPattern = regexp.MustCompile(`^[a-zA-Z0-9.\-_]{2,256}@[a-zA-Z][a-zA-Z0-9]{1,63}$`)

var ErrPushRejected = errors.New("payer rejected the request")

// PushRequester sends a collect request to the payer's app and blocks until
// the payer approves, rejects, or ctx ends.
type PushRequester interface {
	Await(ctx context.Context, payeeID string, amount Amount) (string, error)
}

type PushPayment struct {
	requester PushRequester
	timeout   time.Duration
	log       *zap.Logger
}

func NewPushPayment(requester PushRequester, timeout time.Duration, log *zap.Logger) *PushPayment {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PushPayment{requester: requester, timeout: timeout, log: log}
}

func (p *PushPayment) Method() Method { return MethodUPI }

func (p *PushPayment) CollectDetails(_ context.Context, in Input, _ Amount) (Selection, error) {
	vpa := strings.TrimSpace(in.PayeeID)
	if vpa == "" {
		return Selection{}, &DetailsError{Field: "payee_id", Message: "is required"}
	}
	if !vpaPattern.MatchString(vpa) {
		return Selection{}, &DetailsError{Field: "payee_id", Message: "must look like name@bank"}
	}
	return Selection{Method: MethodUPI, PayeeID: vpa, Display: maskVPA(vpa)}, nil
}

func (p *PushPayment) Confirm(ctx context.Context, sel Selection, amount Amount) Result {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ref, err := p.requester.Await(ctx, sel.PayeeID, amount)
	switch {
	case err == nil:
		return Succeeded(ref)
	case errors.Is(err, context.DeadlineExceeded):
		p.log.Info("push payment timed out", zap.String("payee", sel.Display))
		return Failed(ReasonPaymentTimeout)
	case errors.Is(err, ErrPushRejected):
		return Failed(ReasonPaymentRejected)
	default:
		p.log.Warn("push payment failed", zap.String("payee", sel.Display), zap.Error(err))
		return Failed(ReasonProcessingError)
	}
}

func maskVPA(vpa string) string {
	at := strings.IndexByte(vpa, '@')
	name, handle := vpa[:at], vpa[at:]
	if len(name) <= 2 {
		return name[:1] + "*" + handle
	}
	return name[:2] + strings.Repeat("*", len(name)-2) + handle
}
