package model

import "errors"

// Sentinel errors returned by repositories. Callers distinguish them with errors.Is.
var (
	ErrNotFound        = errors.New("not found")
	ErrConnectivity    = errors.New("store connectivity failure")
	ErrConstraint      = errors.New("store constraint violation")
	ErrMalformedRecord = errors.New("malformed store record")
)
