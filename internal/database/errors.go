package database

import "errors"

var (
	// ErrNotFound referenced record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyResolved the record left its pending/open state earlier;
	// the losing writer of a moderation race receives this.
	ErrAlreadyResolved = errors.New("record already resolved")

	// ErrInactiveCompany payment methods can only be attached to companies
	// that exist; requests additionally demand the company be active.
	ErrInactiveCompany = errors.New("company is not active")

	// ErrDuplicateCustomerCode generated customer code collided.
	ErrDuplicateCustomerCode = errors.New("customer code already taken")

	// ErrInvalidAmount amount is zero, negative or not a number.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrAmountTooLarge amount exceeds the configured ceiling.
	ErrAmountTooLarge = errors.New("amount exceeds limit")

	// ErrUnknownKind request kind is neither deposit nor withdrawal.
	ErrUnknownKind = errors.New("unknown request kind")

	// ErrEmptyComplaint complaint text is blank.
	ErrEmptyComplaint = errors.New("complaint text is empty")

	// ErrEmptyBroadcast broadcast text is blank.
	ErrEmptyBroadcast = errors.New("broadcast text is empty")
)
