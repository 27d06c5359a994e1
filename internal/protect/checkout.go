package protect

import (
	"context"
	"errors"

	"github.com/arko-chat/protect/internal/bridge"
)

const productPrefix = "beep™ Protect Quote - "

// Summary is what the checkout page shows before paying.
type Summary struct {
	Quote       Quote
	Cards       []Applicant
	Total       string
	BasePremium string
	Taxes       string
}

// OpenCheckout titles the app bar and summarises the first quote.
func (s *Service) OpenCheckout(ctx context.Context, quotes Quotes) Summary {
	s.host().AppBarTitle(ctx, CheckoutTitle)

	var sum Summary
	quote, ok := quotes.First()
	if !ok {
		return sum
	}
	sum.Quote = quote
	sum.Cards = quote.Data.BeepCards
	if p := quote.Premium; p != nil {
		sum.Total = FormatCurrency(p.TotalPremium)
		sum.BasePremium = FormatCurrency(p.Breakdown.Premium)
		sum.Taxes = FormatCurrency(p.Tax)
	}
	return sum
}

// Receipt records a checkout. Payment is set as soon as the host charged
// the user, even when activating the policy failed afterwards.
type Receipt struct {
	QuoteID   bridge.ID
	Amount    float64
	Reference bridge.ReferenceNumber
	Payment   bridge.PaymentResult
	Bound     bool
}

// Checkout pays for the first quote and activates it: reference number,
// payment, then marking the quote paid and binding it.
func (s *Service) Checkout(ctx context.Context, quotes Quotes) (Receipt, error) {
	quote, ok := quotes.First()
	if !ok || quote.Status != QuoteGenerated || quote.Premium == nil {
		return Receipt{}, userError("quote", MsgQuoteUnavailable, ErrNoQuote)
	}

	host := s.host()
	rc := Receipt{QuoteID: quote.ID, Amount: quote.Premium.TotalPremium}

	ref, err := host.RequestReferenceNumber(ctx, bridge.ReferenceRequest{
		MerchantCode: s.opts.MerchantCode,
		Product:      productPrefix + string(quote.ID),
		Amount:       rc.Amount,
	})
	if err != nil {
		s.logger.Error("failed to get reference number", "quote", quote.ID, "err", err)
		msg := MsgReference
		var he *bridge.HostError
		if errors.As(err, &he) && he.Message != "" {
			msg = he.Message
		}
		return rc, userError("reference", msg, err)
	}
	rc.Reference = ref
	s.logger.Debug("reference number obtained", "reference", ref.ReferenceNumber)

	pay := host.RequestPayment(ctx, bridge.PaymentRequest{
		Amount:          rc.Amount,
		ProcessingFee:   ref.ProcessingFee,
		ReferenceNumber: ref.ReferenceNumber,
	})
	rc.Payment = pay
	switch {
	case pay.Status == bridge.PaymentError:
		msg := pay.Message
		if msg == "" {
			msg = MsgPaymentFailed
		}
		return rc, userError("payment", msg, nil)
	case !pay.Succeeded():
		s.logger.Warn("payment not successful", "status", pay.Status)
		return rc, userError("payment", MsgPaymentDeclined, nil)
	}

	if err := s.activate(ctx, quote.ID, Payment{
		Amount:          rc.Amount,
		ReferenceNumber: ref.ReferenceNumber,
		TransactionID:   pay.ReferenceNumber,
	}); err != nil {
		s.logger.Error("policy activation failed after payment", "quote", quote.ID, "err", err)
		return rc, userError("activation", MsgActivation, err)
	}

	rc.Bound = true
	s.logger.Info("quote paid and bound", "quote", quote.ID, "reference", ref.ReferenceNumber)
	return rc, nil
}

func (s *Service) activate(ctx context.Context, quoteID bridge.ID, p Payment) error {
	paid, err := s.api.MarkQuoteAsPaid(ctx, quoteID, p)
	if err != nil {
		return err
	}
	if paid.Status != QuotePaid {
		return ErrNotPaid
	}

	bound, err := s.api.BindQuote(ctx, quoteID)
	if err != nil {
		return err
	}
	if bound.Status != QuoteBound {
		return ErrNotBound
	}
	return nil
}
