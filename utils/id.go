package utils

import (
	"github.com/google/uuid"
)

// RequestIDHeader 请求ID的HTTP头
const RequestIDHeader = "X-Request-ID"

// GenerateRequestID 生成请求ID
func GenerateRequestID() string {
	return uuid.NewString()
}
