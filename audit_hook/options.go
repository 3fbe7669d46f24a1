package audithook

import "log/slog"

// Option configures an Extension.
type Option func(*Extension)

// WithLogger sets where recorder failures are reported.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extension) { e.logger = logger }
}

// WithEnabledActions records only the given actions.
func WithEnabledActions(actions ...string) Option {
	return func(e *Extension) { e.enabled = toSet(actions) }
}

// WithDisabledActions records every marketplace action except the given ones.
func WithDisabledActions(actions ...string) Option {
	return func(e *Extension) {
		if e.enabled == nil {
			e.enabled = toSet(allActions())
		}
		for _, action := range actions {
			delete(e.enabled, action)
		}
	}
}

// WithCategories records only events in the given categories, e.g.
// CategoryPayment for a payments-only trail.
func WithCategories(categories ...string) Option {
	return func(e *Extension) { e.categories = toSet(categories) }
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

func allActions() []string {
	return []string{
		ActionListed,
		ActionUnlisted,
		ActionBooked,
		ActionRentingStarted,
		ActionBookingCancelled,
		ActionFundsSent,
		ActionTransferFailed,
	}
}
