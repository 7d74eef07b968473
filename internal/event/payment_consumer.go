package event

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rachid-J/Asssurance-sub001/internal/models"
)

const (
	PaymentEventsQueue = "payment_events"
)

// InstallmentEvent is what the payment gateway publishes when it collects
// an installment for a policy chain.
type InstallmentEvent struct {
	PolicyNumber   string          `json:"policy_number"`
	SequenceNumber int             `json:"sequence_number"`
	Amount         decimal.Decimal `json:"amount"`
	Method         string          `json:"method"`
	Reference      string          `json:"reference"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
}

// InstallmentCollector reconciles a gateway collection against the ledger.
// Implemented by services.PaymentService.
type InstallmentCollector interface {
	CollectByPolicyNumber(ctx context.Context, policyNumber string, req models.PayInstallmentRequest) (*models.PaymentEntry, error)
}

// PaymentConsumer consumes payment events from RabbitMQ
type PaymentConsumer struct {
	conn      *RabbitMQConnection
	collector InstallmentCollector
}

func NewPaymentConsumer(conn *RabbitMQConnection, collector InstallmentCollector) *PaymentConsumer {
	return &PaymentConsumer{
		conn:      conn,
		collector: collector,
	}
}

// Start begins consuming payment events. Messages are acked only after the
// ledger write succeeds; malformed payloads are rejected without requeue.
func (c *PaymentConsumer) Start(ctx context.Context) error {
	_, err := c.conn.Channel.QueueDeclare(
		PaymentEventsQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return err
	}

	msgs, err := c.conn.Channel.Consume(
		PaymentEventsQueue,
		"",    // consumer tag (auto-generated)
		false, // auto-ack (we ack after processing)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return err
	}

	slog.Info("Payment consumer started", "queue", PaymentEventsQueue)

	go func() {
		for {
			select {
			case <-ctx.Done():
				slog.Info("Payment consumer stopped")
				return
			case msg, ok := <-msgs:
				if !ok {
					slog.Warn("Payment events channel closed")
					return
				}

				var ev InstallmentEvent
				if err := json.Unmarshal(msg.Body, &ev); err != nil {
					slog.Error("Failed to decode payment event", "error", err)
					_ = msg.Reject(false)
					continue
				}

				req := models.PayInstallmentRequest{
					SequenceNumber: ev.SequenceNumber,
					Amount:         ev.Amount,
					Method:         models.PaymentMethod(ev.Method),
					Reference:      ev.Reference,
				}

				entry, err := c.collector.CollectByPolicyNumber(ctx, ev.PolicyNumber, req)
				if err != nil {
					slog.Error("Failed to reconcile payment event",
						"policy_number", ev.PolicyNumber,
						"sequence", ev.SequenceNumber,
						"error", err)
					_ = msg.Reject(false)
					continue
				}

				slog.Info("Payment event reconciled",
					"policy_number", ev.PolicyNumber,
					"sequence", entry.SequenceNumber,
					"amount", entry.Amount)
				_ = msg.Ack(false)
			}
		}
	}()

	return nil
}
