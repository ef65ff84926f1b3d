// Package lock serializes sync runs per storefront account.
package lock

import "errors"

// ErrLocked is returned when another run holds the key
var ErrLocked = errors.New("lock: held by another run")
