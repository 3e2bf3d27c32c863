// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package nct7904

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
)

// New returns a device object that communicates over I²C to an NCT7904D
// hardware monitor.
//
// The chip only decodes addresses 0x2D and 0x2E. New verifies the
// identification registers, then probes which sensor channels are wired
// and snapshots the fan control configuration. An address that does not
// answer like an NCT7904D returns an error wrapping ErrNoDevice so a
// caller scanning the bus can move on.
func New(b i2c.Bus, addr uint16) (*Dev, error) {
	switch addr {
	case 0x2D, 0x2E:
	default:
		return nil, fmt.Errorf("nct7904: address %#02x is not decoded by the device", addr)
	}
	d := &Dev{d: &i2c.Dev{Bus: b, Addr: addr}, bank: bankUnknown}
	if err := d.identify(); err != nil {
		return nil, err
	}
	if err := d.probe(); err != nil {
		return nil, fmt.Errorf("nct7904: probing sensor channels: %w", err)
	}
	return d, nil
}

// Dev is a handle to an NCT7904D.
//
// The register file is split into banks behind a shared bank select
// register, so every access is a bank select followed by the transfer,
// serialized under one lock. The channel presence masks and the fan mode
// snapshot are fixed once New returns and can be read without locking.
type Dev struct {
	d *i2c.Dev

	mu   sync.Mutex // guards bank plus the whole select/transfer sequence
	bank int        // selected register bank, bankUnknown forces a reselect

	faninMask uint32             // FANIN1..12 enable bits
	vsenMask  uint32             // voltage inputs, keyed by physical sensor index
	tcpuMask  uint32             // TR1..TR4 thermal inputs plus the local die sensor
	dtsMode   uint8              // dtsNone, dtsPECI or dtsTSI
	hasDTS    uint8              // wired DTS channels, meaningful when dtsMode != dtsNone
	fanMode   [PWMChannels]uint8 // automatic fan control mode bytes captured at New

	stop chan struct{} // SenseContinuous shutdown, guarded by mu
}

// identify checks the chip identification registers. They decode the
// same in every bank, so no bank select is needed.
func (d *Dev) identify() error {
	var buf [1]byte
	for _, id := range []struct {
		reg  byte
		mask byte
		want byte
	}{
		{vendorIDReg, 0xFF, vendorIDNuvoton},
		{chipIDReg, 0xFF, chipIDNCT7904},
		{deviceIDReg, 0xF0, 0x50},
		{bankSelReg, 0x07, 0x00},
	} {
		if err := d.d.Tx([]byte{id.reg}, buf[:]); err != nil {
			return fmt.Errorf("nct7904: reading identification register %#02x: %w", id.reg, err)
		}
		if buf[0]&id.mask != id.want {
			return fmt.Errorf("nct7904: register %#02x reads %#02x: %w", id.reg, buf[0], ErrNoDevice)
		}
	}
	return nil
}

// selectBank makes bank the active register bank. The caller must hold
// d.mu. A failed select leaves the chip in an indeterminate bank, so the
// cache is dropped and the next access selects again.
func (d *Dev) selectBank(bank uint8) error {
	if d.bank == int(bank) {
		return nil
	}
	if err := d.d.Tx([]byte{bankSelReg, bank}, nil); err != nil {
		d.bank = bankUnknown
		return fmt.Errorf("nct7904: selecting bank %d: %w", bank, err)
	}
	d.bank = int(bank)
	return nil
}

// readReg reads a 1-byte register.
func (d *Dev) readReg(bank, reg uint8) (uint8, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.selectBank(bank); err != nil {
		return 0, err
	}
	var buf [1]byte
	if err := d.d.Tx([]byte{reg}, buf[:]); err != nil {
		return 0, fmt.Errorf("nct7904: reading register %d:%#02x: %w", bank, reg, err)
	}
	return buf[0], nil
}

// readReg16 reads the 1-byte registers at reg and reg+1 and composes
// them as lo|hi<<8 with lo at reg. Both transfers happen under one lock
// hold so no bank change can land in between; the chip may still update
// the pair between the two transfers.
func (d *Dev) readReg16(bank, reg uint8) (uint16, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.selectBank(bank); err != nil {
		return 0, err
	}
	var lo, hi [1]byte
	if err := d.d.Tx([]byte{reg}, lo[:]); err != nil {
		return 0, fmt.Errorf("nct7904: reading register %d:%#02x: %w", bank, reg, err)
	}
	if err := d.d.Tx([]byte{reg + 1}, hi[:]); err != nil {
		return 0, fmt.Errorf("nct7904: reading register %d:%#02x: %w", bank, reg+1, err)
	}
	return uint16(lo[0]) | uint16(hi[0])<<8, nil
}

// writeReg writes a 1-byte register.
func (d *Dev) writeReg(bank, reg, val uint8) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.selectBank(bank); err != nil {
		return err
	}
	if err := d.d.Tx([]byte{reg, val}, nil); err != nil {
		return fmt.Errorf("nct7904: writing register %d:%#02x: %w", bank, reg, err)
	}
	return nil
}

// probe runs the one-shot capability detection. Later steps veto bits
// derived by earlier ones, so the order is fixed. Any failure aborts New
// so a partially probed handle never escapes.
func (d *Dev) probe() error {
	// Fan input enables. The enable word reads high channels first, so
	// swap it into bit-per-channel order.
	w, err := d.readReg16(bank0, faninCtrl0Reg)
	if err != nil {
		return err
	}
	d.faninMask = uint32(w>>8 | w<<8)

	// Voltage input enables: a 16-bit word plus a third control register
	// for the high sensor indexes. External temperature sensors share
	// this register range and are not handled here.
	w, err = d.readReg16(bank0, vtADCCtrl0Reg)
	if err != nil {
		return err
	}
	vsen := uint32(w>>8 | w<<8)
	ctrl2, err := d.readReg(bank0, vtADCCtrl2Reg)
	if err != nil {
		return err
	}
	d.vsenMask = vsen | uint32(ctrl2)<<16

	// Thermal resistor inputs TR1/TR2 need both of their mode bits set,
	// TR3/TR4 a single bit each.
	ctrl0, err := d.readReg(bank0, vtADCCtrl0Reg)
	if err != nil {
		return err
	}
	if ctrl0&0x06 == 0x06 {
		d.tcpuMask |= 1 << 0 // TR1
	}
	if ctrl0&0x18 == 0x18 {
		d.tcpuMask |= 1 << 1 // TR2
	}
	if ctrl0&0x20 != 0 {
		d.tcpuMask |= 1 << 2 // TR3
	}
	if ctrl0&0x80 != 0 {
		d.tcpuMask |= 1 << 3 // TR4
	}

	// Local die sensor.
	ctrl2, err = d.readReg(bank0, vtADCCtrl2Reg)
	if err != nil {
		return err
	}
	if ctrl2&0x02 != 0 {
		d.tcpuMask |= 1 << 4
	}

	// The multi-function select register reassigns TR pins to
	// non-thermal functions; a zeroed 2-bit field vetoes the channel.
	// The local die sensor has no multi-function field.
	md, err := d.readReg(bank0, vtADCMDReg)
	if err != nil {
		return err
	}
	for i := 0; i < 4; i++ {
		if (md>>(2*uint(i)))&0x03 == 0 {
			d.tcpuMask &^= 1 << uint(i)
		}
	}

	// External digital thermal sensors report over either PECI or TSI.
	pfe, err := d.readReg(bank2, peciEnableReg)
	if err != nil {
		return err
	}
	if pfe&0x80 != 0 {
		d.dtsMode = dtsPECI
	} else {
		tsi, err := d.readReg(bank2, tsiCtrlReg)
		if err != nil {
			return err
		}
		if tsi&0x80 != 0 {
			d.dtsMode = dtsTSI
		}
	}
	if d.dtsMode != dtsNone {
		ctl, err := d.readReg(bank0, dtsCtrl0Reg)
		if err != nil {
			return err
		}
		d.hasDTS = ctl & 0x0F
		if d.dtsMode == dtsTSI {
			ctl, err = d.readReg(bank0, dtsCtrl1Reg)
			if err != nil {
				return err
			}
			d.hasDTS |= (ctl & 0x0F) << 4
		}
	}

	// Snapshot each fan controller's automatic mode byte so a later
	// switch back to automatic control can restore it.
	for i := 0; i < PWMChannels; i++ {
		m, err := d.readReg(bank3, fanctlModeReg+uint8(i))
		if err != nil {
			return err
		}
		d.fanMode[i] = m
	}
	return nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("nct7904: %s", d.d.String())
}

const (
	// Identification registers, decoded in every bank.
	vendorIDReg = 0x7A
	chipIDReg   = 0x7B
	deviceIDReg = 0x7C

	vendorIDNuvoton = 0x50
	chipIDNCT7904   = 0xC5

	bankSelReg  = 0xFF
	bank0       = 0
	bank2       = 2
	bank3       = 3
	bankUnknown = -1 // cache sentinel

	// Bank 0 control registers.
	vtADCCtrl0Reg = 0x20 // voltage/thermal input enables, 0x21 is the pair
	vtADCCtrl1Reg = 0x21
	vtADCCtrl2Reg = 0x22 // high voltage indexes and the local die sensor
	faninCtrl0Reg = 0x24 // fan input enables, 0x25 is the pair
	faninCtrl1Reg = 0x25
	dtsCtrl0Reg   = 0x26 // wired DTS channels 1..4
	dtsCtrl1Reg   = 0x27 // wired DTS channels 5..8, TSI only
	vtADCMDReg    = 0x2E // multi-function select for the TR pins

	// Bank 0 reading registers, 2 registers per channel.
	vsenReg  = 0x40 // voltage sensor indexes 0..20
	tempReg  = 0x42 // TR channels, 4-byte stride
	ltdReg   = 0x62 // local die sensor
	faninReg = 0x80 // fan inputs
	tcpuReg  = 0xA0 // DTS channels

	// Bank 2 registers.
	peciEnableReg = 0x00
	tsiCtrlReg    = 0x50

	// Bank 3 registers, 1 register per fan controller.
	fanctlModeReg = 0x00
	fanctlOutReg  = 0x10

	// DTS reporting modes.
	dtsNone = 0
	dtsPECI = 1
	dtsTSI  = 3
)
