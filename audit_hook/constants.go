package audithook

// Action constants for audit events.
const (
	// Listing actions
	ActionListed   = "listing.created"
	ActionUnlisted = "listing.removed"

	// Booking actions
	ActionBooked           = "booking.created"
	ActionRentingStarted   = "booking.started"
	ActionBookingCancelled = "booking.cancelled"

	// Funds actions
	ActionFundsSent      = "funds.sent"
	ActionTransferFailed = "funds.failed"
)

// Resource constants for audit events.
const (
	ResourceListing  = "listing"
	ResourceBooking  = "booking"
	ResourceTransfer = "transfer"
)

// Category constants for audit events.
const (
	CategoryMarketplace = "marketplace"
	CategoryRental      = "rental"
	CategoryPayment     = "payment"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
