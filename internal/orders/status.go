package orders

type Status string

const (
	// pending: order dibuat, belum ada request payment (order manual admin).
	StatusPending         Status = "pending"
	StatusAwaitingPayment Status = "awaiting_payment"
	StatusConfirmed       Status = "confirmed"
	StatusFailed          Status = "failed"
	StatusCancelled       Status = "cancelled"
)

type PaymentStatus string

const (
	PayNotPaid              PaymentStatus = "not_paid"
	PayAwaitingVerification PaymentStatus = "awaiting_verification"
	PayPaid                 PaymentStatus = "paid"
	PayFailed               PaymentStatus = "failed"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:         {StatusAwaitingPayment: true, StatusCancelled: true},
	StatusAwaitingPayment: {StatusConfirmed: true, StatusFailed: true, StatusCancelled: true},
	StatusConfirmed:       {},
	StatusFailed:          {},
	StatusCancelled:       {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Terminal: confirmed/failed/cancelled; tidak ada jalan keluar lagi.
func IsTerminal(s Status) bool {
	return len(validNext[s]) == 0
}
