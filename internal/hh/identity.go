package hh

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
)

const deviceCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomDeviceModel returns a 10-character alphanumeric device model,
// matching the shape of real vendor model codes.
func randomDeviceModel() string {
	b := make([]byte, 10)
	for i := range b {
		b[i] = deviceCharset[rand.IntN(len(deviceCharset))]
	}
	return string(b)
}

// userAgent generates a synthetic but internally consistent mobile-app
// identity: a plausible app version triple, a random device model, a
// random Android version and a fresh correlation UUID.
//
// Real header for comparison:
//
//	ru.hh.android/7.122.11395, Device: 23053RN02Y, Android OS: 13 (UUID: ...)
//
// A fresh identity is generated for every request so no fixed signature
// is ever presented to the platform.
func userAgent() string {
	major := 5 + rand.IntN(2)      // 5..6
	minor := 100 + rand.IntN(50)   // 100..149
	patch := 10000 + rand.IntN(5000)
	osVersion := 10 + rand.IntN(5) // Android 10..14
	return fmt.Sprintf("ru.hh.android/%d.%d.%d, Device: %s, Android OS: %d (UUID: %s)",
		major, minor, patch, randomDeviceModel(), osVersion, uuid.NewString())
}
