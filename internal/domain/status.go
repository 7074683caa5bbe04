package domain

type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "Scheduled"
	AppointmentCompleted AppointmentStatus = "Completed"
	AppointmentCancelled AppointmentStatus = "Cancelled"
)

// Valid reports whether s is a known appointment status.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentScheduled, AppointmentCompleted, AppointmentCancelled:
		return true
	}
	return false
}

// CanTransition reports whether an appointment may move from s to next.
// Completed and Cancelled are terminal.
func (s AppointmentStatus) CanTransition(next AppointmentStatus) bool {
	if s == next {
		return true
	}
	return s == AppointmentScheduled && (next == AppointmentCompleted || next == AppointmentCancelled)
}

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "Pending"
	TransactionCompleted TransactionStatus = "Completed"
	TransactionFailed    TransactionStatus = "Failed"
	TransactionRefunded  TransactionStatus = "Refunded"
)

// Valid reports whether s is a known transaction status.
func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionPending, TransactionCompleted, TransactionFailed, TransactionRefunded:
		return true
	}
	return false
}

// Initial reports whether a new transaction may be created in status s.
func (s TransactionStatus) Initial() bool {
	return s == TransactionPending || s == TransactionCompleted
}

// CanTransition enforces Pending -> {Completed, Failed} and Completed -> Refunded.
// Re-sending the current status is allowed so upserts stay idempotent.
func (s TransactionStatus) CanTransition(next TransactionStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case TransactionPending:
		return next == TransactionCompleted || next == TransactionFailed
	case TransactionCompleted:
		return next == TransactionRefunded
	}
	return false
}

// CheckTransactionUpsert validates an upsert of next over the stored record.
// existing is nil when the transaction is new.
func CheckTransactionUpsert(existing *Transaction, next Transaction) error {
	if existing == nil {
		if !next.Status.Initial() {
			return &TransitionError{Entity: "transaction", From: "", To: string(next.Status)}
		}
		return nil
	}
	if !existing.Status.CanTransition(next.Status) {
		return &TransitionError{Entity: "transaction", From: string(existing.Status), To: string(next.Status)}
	}
	return nil
}

// CheckAppointmentTransition validates a status change on an appointment.
func CheckAppointmentTransition(from, to AppointmentStatus) error {
	if !to.Valid() || !from.CanTransition(to) {
		return &TransitionError{Entity: "appointment", From: string(from), To: string(to)}
	}
	return nil
}
