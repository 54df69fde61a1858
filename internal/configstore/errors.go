package configstore

import "errors"

// Sentinel errors for config document handling.
var (
	// ErrInvalidDocument is returned when the config file exists but is
	// not a mapping-rooted YAML document.
	ErrInvalidDocument = errors.New("configstore: invalid document")

	// ErrNotFound is returned by Remove when the entry does not exist.
	ErrNotFound = errors.New("configstore: entry not found")
)
