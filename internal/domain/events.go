/**
 * @description
 * Event payloads published to RabbitMQ when record lifecycle transitions or
 * payment mutations occur. Downstream consumers (notification service, reporting)
 * react to these; publishing failures never fail the originating operation.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecordLifecycleEvent is published on record creation and status transitions.
type RecordLifecycleEvent struct {
	RecordID      uuid.UUID       `json:"record_id"`
	UserID        uuid.UUID       `json:"user_id"`
	Status        RecordStatus    `json:"status"`
	MethodologyID MethodologyID   `json:"methodology_id"`
	ZakatDue      decimal.Decimal `json:"zakat_due"`
	Timestamp     time.Time       `json:"timestamp"`
}

// PaymentRecordedEvent is published after a payment mutation commits.
type PaymentRecordedEvent struct {
	PaymentID          uuid.UUID       `json:"payment_id"`
	RecordID           uuid.UUID       `json:"record_id"`
	Amount             decimal.Decimal `json:"amount"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	Overpaid           bool            `json:"overpaid"`
	Timestamp          time.Time       `json:"timestamp"`
}
