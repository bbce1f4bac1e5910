package reconciliation

import "errors"

var (
	// ErrReconciliationInProgress rejects a second concurrent attempt on the same invoice or document
	ErrReconciliationInProgress = errors.New("reconciliation already in progress")

	// ErrInvalidManualReconciliation is a caller contract violation: unknown invoice or no transaction id
	ErrInvalidManualReconciliation = errors.New("invalid manual reconciliation")

	ErrLineItemNotFound = errors.New("line item not found")
)

// ErrEmptyHeaderUpdate rejects a header edit that names no field
var ErrEmptyHeaderUpdate = errors.New("header update has no fields")
