// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package nct7904 controls a Nuvoton NCT7904D hardware monitor over an
// i2c bus. The chip measures up to 8 fan speeds, 21 voltage rails and 9
// temperatures (thermal resistors, the local die sensor and external
// digital thermal sensors over PECI or TSI) and drives 4 fan controllers.
//
// # Datasheet
//
// https://www.nuvoton.com/export/resource-files/NCT7904D_Datasheet_V1.44.pdf
package nct7904
