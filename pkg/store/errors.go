package store

import "errors"

var (
	ErrWALNotInitialized = errors.New("WAL not initialized")
)
