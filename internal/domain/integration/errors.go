package integration

import "errors"

var (
	// ErrSourceUnavailable marks any failure reaching an upstream system.
	// It is fatal to the current run.
	ErrSourceUnavailable = errors.New("integration: source unavailable")

	// Adapter-level causes, wrapped together with ErrSourceUnavailable
	ErrPlatformNotConfigured   = errors.New("integration: platform not configured")
	ErrPlatformUnavailable     = errors.New("integration: platform temporarily unavailable")
	ErrPlatformRequestFailed   = errors.New("integration: platform request failed")
	ErrPlatformInvalidResponse = errors.New("integration: invalid platform response")
	ErrPlatformAuthFailed      = errors.New("integration: platform authentication failed")
	ErrPlatformRateLimited     = errors.New("integration: platform rate limited")
	ErrPlatformOrderNotFound   = errors.New("integration: platform order not found")
)
