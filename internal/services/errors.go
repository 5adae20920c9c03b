package services

import "errors"

var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotFound         = errors.New("project not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrAlreadyPaid      = errors.New("project already paid")
	ErrAlreadyGenerated = errors.New("project already generated")
	ErrPaymentRequired  = errors.New("payment required")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrGenerationFailed = errors.New("generation failed")
	ErrStorageFailed    = errors.New("storage failed")
	ErrPaymentFailed    = errors.New("payment provider error")
)
