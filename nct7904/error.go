// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package nct7904

import "errors"

// The driver wraps these sentinels so callers can branch on the failure
// kind with errors.Is. Bus transport failures are wrapped as returned by
// the i2c bus and carry no sentinel.
var (
	// ErrNoDevice means the identification registers did not answer like
	// an NCT7904D. The address may host a different chip; probing other
	// addresses can continue.
	ErrNoDevice = errors.New("nct7904: chip identification mismatch")

	// ErrUnsupported means the sensor type and attribute pair is not
	// implemented by the chip. No bus transaction was issued.
	ErrUnsupported = errors.New("nct7904: unsupported operation")

	// ErrInvalidValue means a write value or channel was out of range or
	// the requested fan control mode is not allowed. No bus transaction
	// was issued.
	ErrInvalidValue = errors.New("nct7904: invalid value")
)
