package rental

import (
	"errors"
	"fmt"
)

// Precondition errors. Each names one reason an operation was refused;
// nothing is changed when one is returned.
var (
	// Listing
	ErrUnsupportedAsset     = errors.New("rental: collection does not support time-bound usage")
	ErrAlreadyListed        = errors.New("rental: asset already listed")
	ErrNotOwner             = errors.New("rental: caller does not own the asset")
	ErrOperatorNotApproved  = errors.New("rental: marketplace not approved as operator")
	ErrUsageRightActive     = errors.New("rental: asset has an active usage right")
	ErrInvalidPrice         = errors.New("rental: price per day must be positive")
	ErrInvalidBoundaries    = errors.New("rental: invalid rental day boundaries")
	ErrNotListed            = errors.New("rental: asset not listed")
	ErrUnauthorized         = errors.New("rental: caller is neither lender nor operator")
	ErrCurrentlyRented      = errors.New("rental: asset is currently rented")
	ErrStartInPast          = errors.New("rental: start date is in the past")
	ErrEndInPast            = errors.New("rental: end date is in the past")
	ErrStartNotBeforeEnd    = errors.New("rental: start date must precede end date")
	ErrOutOfRentalBounds    = errors.New("rental: duration outside rental bounds")
	ErrNotAvailable         = errors.New("rental: asset not available in window")
	ErrInsufficientPayment  = errors.New("rental: payment below rental price")
	ErrAlreadyStarted       = errors.New("rental: rental already started")
	ErrNotYourBookingWindow = errors.New("rental: no booking of caller covers now")
	ErrNothingToRedeem      = errors.New("rental: nothing to redeem")
	ErrCurrencyMismatch     = errors.New("rental: payment currency does not match marketplace")
)

// Engine and store errors.
var (
	ErrMissingCaller         = errors.New("rental: no caller in context")
	ErrRegistryNotConfigured = errors.New("rental: asset registry not configured")
	ErrTransferFailed        = errors.New("rental: funds transfer failed")
	ErrListingNotFound       = errors.New("rental: listing not found")
	ErrBookingNotFound       = errors.New("rental: booking not found")
	ErrEarningNotFound       = errors.New("rental: earning not found")
	ErrEarningSettled        = errors.New("rental: earning already cancelled or redeemed")
	ErrRefundNotFound        = errors.New("rental: refund not found")
	ErrStoreClosed           = errors.New("rental: store is closed")
	ErrLockNotAcquired       = errors.New("rental: writer lock not acquired")
	ErrTransactionFailed     = errors.New("rental: transaction failed")
	ErrMigrationFailed       = errors.New("rental: migration failed")
)

// ValidationError reports a malformed option or argument.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("rental: validation failed for %s: %s", e.Field, e.Message)
}

// IsPreconditionError reports whether err is one of the named refusals.
func IsPreconditionError(err error) bool {
	for _, target := range preconditionErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var preconditionErrors = []error{
	ErrUnsupportedAsset, ErrAlreadyListed, ErrNotOwner, ErrOperatorNotApproved,
	ErrUsageRightActive, ErrInvalidPrice, ErrInvalidBoundaries, ErrNotListed,
	ErrUnauthorized, ErrCurrentlyRented, ErrStartInPast, ErrEndInPast,
	ErrStartNotBeforeEnd, ErrOutOfRentalBounds, ErrNotAvailable,
	ErrInsufficientPayment, ErrAlreadyStarted, ErrNotYourBookingWindow,
	ErrNothingToRedeem, ErrCurrencyMismatch,
}

// IsNotFound returns true if err is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrListingNotFound) ||
		errors.Is(err, ErrBookingNotFound) ||
		errors.Is(err, ErrEarningNotFound) ||
		errors.Is(err, ErrRefundNotFound)
}

// IsRetryable returns true if the operation may succeed when repeated.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransactionFailed) ||
		errors.Is(err, ErrTransferFailed) ||
		errors.Is(err, ErrLockNotAcquired)
}
