package middleware

import (
	"strings"
	"unicode/utf8"

	"autodiag/models"
	"autodiag/utils"

	"github.com/gin-gonic/gin"
)

const (
	HeaderDeviceID       = "X-Device-ID"
	HeaderDeviceName     = "X-Device-Name"
	HeaderDevicePlatform = "X-Device-Platform"
	HeaderDeviceModel    = "X-Device-Model"

	minDeviceIDLength = 8
	maxDeviceIDLength = 128
)

// Context keys set by the device and auth middleware.
const (
	CtxDeviceID = "deviceID"
	CtxDevice   = "device"
	CtxUserID   = "userID"
	CtxRole     = "role"
)

// ValidDeviceID reports whether id is an acceptable client generated identifier.
func ValidDeviceID(id string) bool {
	n := utf8.RuneCountInString(id)
	return n >= minDeviceIDLength && n <= maxDeviceIDLength && strings.TrimSpace(id) == id
}

// DeviceMiddleware requires X-Device-ID and records the device headers on the context.
func DeviceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		deviceID := c.GetHeader(HeaderDeviceID)
		if deviceID == "" {
			utils.RespondError(c, utils.FieldError(HeaderDeviceID, "header is required"))
			return
		}
		if !ValidDeviceID(deviceID) {
			utils.RespondError(c, utils.FieldError(HeaderDeviceID, "must be 8 to 128 characters"))
			return
		}

		info := models.DeviceInfo{
			DeviceID: deviceID,
			Name:     strings.TrimSpace(c.GetHeader(HeaderDeviceName)),
			Platform: strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderDevicePlatform))),
			Model:    strings.TrimSpace(c.GetHeader(HeaderDeviceModel)),
			IP:       getClientIP(c),
		}
		c.Set(CtxDeviceID, deviceID)
		c.Set(CtxDevice, info)
		c.Next()
	}
}

// Device returns the device recorded by DeviceMiddleware.
func Device(c *gin.Context) models.DeviceInfo {
	if v, ok := c.Get(CtxDevice); ok {
		if info, ok := v.(models.DeviceInfo); ok {
			return info
		}
	}
	return models.DeviceInfo{DeviceID: c.GetString(CtxDeviceID)}
}

// SignInDevice is the device entry stored on a user at sign in.
func SignInDevice(c *gin.Context) models.Device {
	info := Device(c)
	name := info.Name
	if name == "" {
		name = info.Model
	}
	return models.Device{
		DeviceID:   info.DeviceID,
		DeviceName: name,
		Platform:   info.Platform,
		IP:         info.IP,
	}
}
