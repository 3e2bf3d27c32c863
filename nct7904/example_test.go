// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package nct7904_test

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/xqdzn/hwmon-devices/nct7904"
)

func Example() {
	// Make sure periph is initialized.
	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}

	// Use i2creg I²C bus registry to find the first available I²C bus.
	b, err := i2creg.Open("")
	if err != nil {
		log.Fatalf("failed to open I²C: %v", err)
	}
	defer b.Close()

	// The NCT7904D straps to 0x2D or 0x2E.
	d, err := nct7904.New(b, 0x2D)
	if err != nil {
		log.Fatalf("failed to initialize NCT7904D: %v", err)
	}

	for ch := 0; ch < nct7904.FanChannels; ch++ {
		if !d.Visible(nct7904.Fan, nct7904.Input, ch) {
			continue
		}
		rpm, err := d.FanSpeed(ch)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("fan%d: %d RPM\n", ch+1, rpm)
	}
	for ch := 1; ch <= nct7904.VoltageChannels; ch++ {
		if !d.Visible(nct7904.Voltage, nct7904.Input, ch) {
			continue
		}
		v, err := d.Voltage(ch)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("in%d: %s\n", ch, v)
	}
	for ch := 0; ch < nct7904.TemperatureChannels; ch++ {
		if !d.Visible(nct7904.Temperature, nct7904.Input, ch) {
			continue
		}
		t, err := d.Temperature(ch)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("temp%d: %s\n", ch+1, t)
	}
}
