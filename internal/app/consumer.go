/**
 * @description
 * This file implements the consumer logic for payment status events pushed by
 * the checkout collaborator over RabbitMQ. An approved payment confirms the
 * claim holding its id; a terminal failure releases the hold early instead of
 * waiting for the expiry sweeper. Unknown payment ids are acked: the orphan
 * case belongs to the reconciliation pass, not the queue.
 */

package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/rifaops/ticket-service/internal/domain"
	"github.com/rifaops/ticket-service/internal/store"
)

const consumerHandleTimeout = 30 * time.Second

// PaymentEventConsumer handles payment status messages from the broker.
type PaymentEventConsumer struct {
	service *Service
}

// NewPaymentEventConsumer creates a new consumer handler.
func NewPaymentEventConsumer(service *Service) *PaymentEventConsumer {
	return &PaymentEventConsumer{service: service}
}

// HandleMessage processes a single payment status event. The returned bool is
// the ack decision: true acknowledges the message, false requeues it for a
// retry. Malformed payloads are acked; redelivery cannot fix them.
func (c *PaymentEventConsumer) HandleMessage(body []byte) bool {
	var event domain.PaymentStatusEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("level=error component=payment_consumer msg=\"failed to unmarshal payment event\" err=%v", err)
		return true
	}
	if event.PaymentID == "" {
		log.Printf("level=error component=payment_consumer msg=\"payment event missing payment id\" status=%s", event.Status)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), consumerHandleTimeout)
	defer cancel()

	switch event.Status {
	case "approved", "successful", "paid":
		return c.handleApproved(ctx, event.PaymentID)
	case "failed", "declined", "cancelled", "expired":
		return c.handleFailed(ctx, event.PaymentID, event.Status)
	default:
		log.Printf("level=info component=payment_consumer msg=\"ignoring payment status\" payment_id=%s status=%s", event.PaymentID, event.Status)
		return true
	}
}

func (c *PaymentEventConsumer) handleApproved(ctx context.Context, paymentID string) bool {
	_, err := c.service.ConfirmPayment(ctx, paymentID)
	if err == nil {
		return true
	}
	if errors.Is(err, store.ErrClaimNotFound) {
		// Orphan candidate; the next reconciliation pass records it.
		return true
	}
	if errors.Is(err, store.ErrInvalidTransition) {
		// Hold already expired; reconciliation classifies it as a late payment.
		log.Printf("level=warn component=payment_consumer msg=\"approval for expired hold\" payment_id=%s", paymentID)
		return true
	}
	log.Printf("level=error component=payment_consumer msg=\"confirm failed; requeueing\" payment_id=%s err=%v", paymentID, err)
	return false
}

func (c *PaymentEventConsumer) handleFailed(ctx context.Context, paymentID, status string) bool {
	claim, err := c.service.repo.FindClaimByPaymentID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, store.ErrClaimNotFound) {
			return true
		}
		log.Printf("level=error component=payment_consumer msg=\"claim lookup failed; requeueing\" payment_id=%s err=%v", paymentID, err)
		return false
	}
	if claim.Status != domain.ClaimPending {
		return true
	}

	if err := c.service.Cancel(ctx, claim.ID); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			// Paid between lookup and cancel; leave it alone.
			return true
		}
		log.Printf("level=error component=payment_consumer msg=\"early release failed; requeueing\" payment_id=%s claim_id=%s err=%v", paymentID, claim.ID, err)
		return false
	}

	log.Printf("level=info component=payment_consumer msg=\"hold released on payment failure\" payment_id=%s claim_id=%s status=%s", paymentID, claim.ID, status)
	return true
}
