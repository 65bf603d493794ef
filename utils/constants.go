// File: utils/constants.go
package utils

import "time"

// AuthCachePrefix is the prefix used for Redis authorization cache keys.
const AuthCachePrefix = "auth:"

// AuthCacheTTL is the time-to-live for authorization cache entries.
const AuthCacheTTL = 10 * time.Minute

// Headers carrying device identity.
const (
	HeaderDeviceID       = "X-Device-ID"
	HeaderDeviceName     = "X-Device-Name"
	HeaderDevicePlatform = "X-Device-Platform"
	HeaderDeviceModel    = "X-Device-Model"
)

// AuthCacheKey builds the Redis key holding a device's token hash.
func AuthCacheKey(userID, deviceID string) string {
	return AuthCachePrefix + userID + ":" + deviceID
}
