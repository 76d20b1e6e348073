package domain

import "errors"

// ErrInvalidConfiguration is matched by every write-time validation failure.
var ErrInvalidConfiguration = errors.New("invalid_configuration")

var (
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("rate_schedule_not_found")
	ErrDuplicateName       = errors.New("duplicate_name")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidSide         = errors.New("invalid_side")
	ErrInvalidFeeType      = errors.New("invalid_fee_type")
	ErrInvalidCounterparty = errors.New("invalid_counterparty")
	ErrUnknownCounterparty = errors.New("unknown_counterparty")
	ErrMissingProducts     = errors.New("missing_products")
	ErrUnknownProduct      = errors.New("unknown_product")
	ErrInvalidValidity     = errors.New("invalid_validity_window")
	ErrNegativeRate        = errors.New("negative_rate")
	ErrZeroRates           = errors.New("zero_rates")
	ErrInvalidMinWeight    = errors.New("invalid_min_weight")
	ErrMissingTiers        = errors.New("missing_tiers")
	ErrUnexpectedTiers     = errors.New("unexpected_tiers")
	ErrInvalidTierBounds   = errors.New("invalid_tier_bounds")
	ErrTiersNotContiguous  = errors.New("tiers_not_contiguous")
	ErrSupplierFeeType     = errors.New("supplier_schedules_must_be_differential_line")
)

// ConfigError reports the offending field of a rejected schedule.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ConfigError) Unwrap() []error {
	return []error{e.Err, ErrInvalidConfiguration}
}

func configError(field string, err error) error {
	return &ConfigError{Field: field, Err: err}
}
