// Package errors provides custom error types for order-related operations.
package errors

import "errors"

var ErrOrderNotFound = errors.New("order not found")
var ErrOrderNotPending = errors.New("order is not pending")
var ErrInvalidTransition = errors.New("invalid order status transition")
var ErrOptimisticLock = errors.New("optimistic lock error: the record has been modified by another transaction")

var ErrTransactionBegin = errors.New("failed to begin transaction")
var ErrTransactionCommit = errors.New("failed to commit transaction")
var ErrTransactionRollback = errors.New("failed to rollback transaction")
