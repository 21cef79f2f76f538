package models

import "errors"

// Custom errors
var (
	// ErrInsufficientBankroll is returned when a stake exceeds the available balance.
	// Fatal to that bet placement only.
	ErrInsufficientBankroll = errors.New("insufficient bankroll")

	// ErrInvalidBetState is returned when resolving a bet that is not pending.
	// Indicates a sequencing bug in the caller.
	ErrInvalidBetState = errors.New("invalid bet state")

	// ErrDataGap marks a missing day of historical data. Recovered by skipping the day.
	ErrDataGap = errors.New("historical data gap")

	// ErrOracleFailure marks a failed prediction call for a single candidate.
	// Recovered by excluding that candidate.
	ErrOracleFailure = errors.New("prediction oracle failure")

	// ErrConfiguration is returned for invalid backtest configuration.
	// Fatal before any simulation begins.
	ErrConfiguration = errors.New("invalid configuration")
)
