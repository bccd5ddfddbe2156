package utils

import (
	"fmt"
	"strconv"
)

// Pointer returns a pointer to the given value
func Pointer[T any](v T) *T {
	return &v
}

// ParseUint safely parses a string to uint
func ParseUint(s string) uint {
	i, _ := strconv.ParseUint(s, 10, 32)
	return uint(i)
}

// GenerateRateLimitKey creates a unique key for rate limiting
func GenerateRateLimitKey(scope, key, path string) string {
	return fmt.Sprintf("rl:%s:%s:%s", scope, key, path)
}
