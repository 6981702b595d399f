package events

import "github.com/noah-isme/pos-terminal/internal/money"

// Topic constants for domain events emitted by the engine.
const (
	TopicTransactionCompleted = "transaction.completed"
	TopicTransactionRefunded  = "transaction.refunded"
	TopicShiftClosed          = "shift.closed"
)

// StockDelta is an inventory adjustment for one catalog item: negative on
// settlement, positive on refund restock.
type StockDelta struct {
	CatalogItemID string `json:"catalogItemId"`
	QuantityDelta int    `json:"quantityDelta"`
}

// TransactionCompletedPayload is emitted once per settled transaction.
type TransactionCompletedPayload struct {
	TransactionID  string       `json:"transactionId"`
	Number         string       `json:"number"`
	SessionID      string       `json:"sessionId,omitempty"`
	CustomerID     string       `json:"customerId,omitempty"`
	Total          money.Money  `json:"total"`
	CashAmount     money.Money  `json:"cashAmount"`
	LoyaltyPoints  int64        `json:"loyaltyPoints"`
	PurchaseAmount money.Money  `json:"purchaseAmount"`
	StockDeltas    []StockDelta `json:"stockDeltas"`
	PaymentMethods []string     `json:"paymentMethods"`
}

// TransactionRefundedPayload is emitted once per refunded transaction.
type TransactionRefundedPayload struct {
	TransactionID  string       `json:"transactionId"`
	Number         string       `json:"number"`
	SessionID      string       `json:"sessionId,omitempty"`
	CustomerID     string       `json:"customerId,omitempty"`
	Total          money.Money  `json:"total"`
	CashAmount     money.Money  `json:"cashAmount"`
	LoyaltyPoints  int64        `json:"loyaltyPoints"`
	PurchaseAmount money.Money  `json:"purchaseAmount"`
	StockDeltas    []StockDelta `json:"stockDeltas"`
	Reason         string       `json:"reason,omitempty"`
}

// ShiftClosedPayload is emitted when a shift is reconciled and closed.
type ShiftClosedPayload struct {
	ShiftID        string      `json:"shiftId"`
	SessionID      string      `json:"sessionId,omitempty"`
	Expected       money.Money `json:"expected"`
	Actual         money.Money `json:"actual"`
	Variance       money.Money `json:"variance"`
	Classification string      `json:"classification"`
}
