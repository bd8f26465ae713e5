// Package errors provides custom error types for customer-related operations.
package errors

import "errors"

var ErrCustomerNotFound = errors.New("customer not found")
