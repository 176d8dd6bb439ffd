package chatmodel

import (
	"github.com/cockroachdb/errors"
)

var (
	ErrFailedUnmarshalInput = errors.New("failed to unmarshal input: check the schema and try again")
	ErrInvalidUserContext   = errors.New("invalid user context")
)
