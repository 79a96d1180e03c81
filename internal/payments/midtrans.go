// Package payments adapts the Midtrans payment gateway to the hold, capture,
// release lifecycle the gig flow needs.
package payments

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"

	"github.com/example/able-marketplace/internal/application"
)

// MidtransGateway implements application.PaymentGateway on top of Midtrans
// Snap for checkout and the core API for capture and cancel. The gig ID doubles
// as the Midtrans order ID so holds stay traceable without extra bookkeeping.
type MidtransGateway struct {
	snap   snap.Client
	core   coreapi.Client
	logger *slog.Logger
}

// NewMidtransGateway configures both Midtrans clients against the same server
// key.
func NewMidtransGateway(serverKey string, production bool, logger *slog.Logger) (*MidtransGateway, error) {
	if strings.TrimSpace(serverKey) == "" {
		return nil, fmt.Errorf("payments: midtrans server key is required")
	}
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}

	gateway := &MidtransGateway{logger: logger}
	gateway.snap.New(serverKey, env)
	gateway.core.New(serverKey, env)
	if gateway.logger == nil {
		gateway.logger = slog.Default()
	}
	return gateway, nil
}

// Hold creates a Snap transaction for the gig amount and returns the order
// reference plus the checkout redirect URL.
func (g *MidtransGateway) Hold(ctx context.Context, req application.PaymentRequest) (application.PaymentHold, error) {
	if req.AmountPence <= 0 {
		return application.PaymentHold{}, fmt.Errorf("payments: amount must be positive")
	}
	if req.GigID == "" {
		return application.PaymentHold{}, fmt.Errorf("payments: gig id is required")
	}

	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.GigID,
			GrossAmt: req.AmountPence,
		},
		CreditCard: &snap.CreditCardDetails{Secure: true},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    req.GigID,
				Price: req.AmountPence,
				Qty:   1,
				Name:  itemName(req.Title),
			},
		},
	}

	resp, snapErr := g.snap.CreateTransaction(snapReq)
	if snapErr != nil {
		return application.PaymentHold{}, fmt.Errorf("payments: create transaction: %w", snapErr)
	}

	g.logger.InfoContext(ctx, "payment hold placed", "order_id", req.GigID, "amount_pence", req.AmountPence)
	return application.PaymentHold{
		Reference:   req.GigID,
		RedirectURL: resp.RedirectURL,
	}, nil
}

// Capture settles the held funds for a completed gig.
func (g *MidtransGateway) Capture(ctx context.Context, reference string) error {
	if reference == "" {
		return fmt.Errorf("payments: reference is required")
	}
	if _, captureErr := g.core.CaptureTransaction(&coreapi.CaptureReq{TransactionID: reference}); captureErr != nil {
		return fmt.Errorf("payments: capture %s: %w", reference, captureErr)
	}
	g.logger.InfoContext(ctx, "payment captured", "order_id", reference)
	return nil
}

// Release cancels the hold, returning the funds to the buyer.
func (g *MidtransGateway) Release(ctx context.Context, reference string) error {
	if reference == "" {
		return fmt.Errorf("payments: reference is required")
	}
	if _, cancelErr := g.core.CancelTransaction(reference); cancelErr != nil {
		return fmt.Errorf("payments: release %s: %w", reference, cancelErr)
	}
	g.logger.InfoContext(ctx, "payment released", "order_id", reference)
	return nil
}

func itemName(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return "Gig booking"
	}
	if len(title) > 50 {
		return title[:50]
	}
	return title
}
