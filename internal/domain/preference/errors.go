package preference

import "errors"

// ErrNoStore is returned when a session is loaded without a store.
var ErrNoStore = errors.New("no preference store")
