package utils

import "github.com/google/uuid"

const RequestIDHeader = "X-Request-ID"

func NewRequestID() string {
	return uuid.NewString()
}
