package dberrors

import "errors"

var (
	ErrClosed          = errors.New("lsmdb: closed")
	ErrInvalidArgument = errors.New("lsmdb: invalid argument")
)
