package payment

import (
	"errors"

	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/snapshot"
)

// Error taxonomy shared by all provider adapters. The HTTP layer maps these
// to status codes; messages are safe to show to the end user.
var (
	ErrProviderNotConfigured    = errors.New("payment provider is not configured")
	ErrUnauthenticated          = errors.New("authentication required")
	ErrShippingOptionRequired   = errors.New("a shipping option must be selected")
	ErrInvalidShippingOption    = errors.New("selected shipping option is not available")
	ErrProviderRejected         = errors.New("payment provider rejected the request")
	ErrPaymentExpiredOrNotFound = errors.New("payment expired or not found")
	ErrForbidden                = errors.New("payment belongs to another user")
	ErrPaymentNotCompleted      = errors.New("payment has not been completed")
)

// Snapshot failures surface through the adapters unchanged.
var (
	ErrEmptyCart       = snapshot.ErrEmptyCart
	ErrProductNotFound = snapshot.ErrProductNotFound
	ErrOutOfStock      = snapshot.ErrOutOfStock
	ErrInvalidQuantity = snapshot.ErrInvalidQuantity
)
