// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package nct7904

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
)

// SensorType selects one of the chip's sensor groups.
type SensorType int

const (
	Voltage SensorType = iota
	Fan
	Temperature
	PWM
)

// Attribute selects what to read or write on a channel.
type Attribute int

const (
	// Input is the measured value: millivolts for Voltage, RPM for Fan,
	// millidegrees Celsius for Temperature, the raw 0..255 duty cycle
	// for PWM.
	Input Attribute = iota
	// Enable reads or switches a fan controller between manual duty
	// control and the chip's automatic control loop. PWM only.
	Enable
)

// Channel counts exposed per sensor type. Voltage channels count from 1,
// the others from 0.
const (
	VoltageChannels     = 21
	FanChannels         = 8 // the enable mask covers 12 fan inputs, see faninCount
	TemperatureChannels = 9 // TR1..TR4, the local die sensor, DTS 1..4
	PWMChannels         = 4
)

// Enable values for the fan controllers.
const (
	PWMManual    = 1 // duty register drives the fan directly
	PWMAutomatic = 2 // the chip's configured control loop drives the fan
)

const faninCount = 12 // width of the fan enable mask

// localDieChannel is the temperature channel of the die sensor.
const localDieChannel = 4

// voltChanToIndex maps logical voltage channels to physical sensor
// indexes. The trailing channels sit out of order on the die and channel
// 21 lands on index 16 next to channel 17; the collision mirrors the
// hardware layout. Entry 0 is unused.
var voltChanToIndex = [VoltageChannels + 1]uint8{
	0,
	0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16,
	18, 19, 20, 16,
}

// fanRPM converts a fan reading register pair to RPM. The 13-bit count
// measures the fan period against a 1.35 MHz reference; all ones means
// no rotation was detected.
func fanRPM(raw uint16) int {
	cnt := (raw&0xFF00)>>3 | raw&0x1F
	if cnt == 0x1FFF || cnt == 0 {
		return 0
	}
	return 1350000 / int(cnt)
}

// voltageMilli converts a voltage reading register pair to millivolts.
// The analog front end steps 2 mV per count on the low sensor indexes
// and 6 mV per count from index 14 up.
func voltageMilli(raw uint16, index int) int64 {
	v := int64((raw&0xFF00)>>5 | raw&0x07)
	if index < 14 {
		return v * 2
	}
	return v * 6
}

// tempMilli converts a temperature reading register pair to millidegrees
// Celsius. The field is an 11-bit two's complement count of 0.125°C
// steps.
func tempMilli(raw uint16) int64 {
	t := int64((raw&0xFF00)>>5 | raw&0x07)
	if t&0x400 != 0 {
		t -= 0x800
	}
	return t * 125
}

// tempChannelReg returns the reading register of a temperature channel.
// TR channels stride 4 bytes, DTS channels 2, the die sensor is fixed.
func tempChannelReg(channel int) uint8 {
	switch {
	case channel == localDieChannel:
		return ltdReg
	case channel < localDieChannel:
		return tempReg + uint8(4*channel)
	default:
		return tcpuReg + uint8(2*(channel-5))
	}
}

// Visible reports whether the chip has the given sensor channel wired
// and enabled. It never touches the bus; the presence masks are fixed
// once New returns.
func (d *Dev) Visible(t SensorType, attr Attribute, channel int) bool {
	switch t {
	case Voltage:
		if attr != Input || channel < 1 || channel > VoltageChannels {
			return false
		}
		return d.vsenMask&(1<<voltChanToIndex[channel]) != 0
	case Fan:
		if attr != Input || channel < 0 || channel >= FanChannels {
			return false
		}
		return d.faninMask&(1<<uint(channel)) != 0
	case Temperature:
		if attr != Input || channel < 0 || channel >= TemperatureChannels {
			return false
		}
		if channel <= localDieChannel {
			return d.tcpuMask&(1<<uint(channel)) != 0
		}
		return d.hasDTS&(1<<uint(channel-5)) != 0
	case PWM:
		return channel >= 0 && channel < PWMChannels && (attr == Input || attr == Enable)
	}
	return false
}

// Read returns the current value of one sensor channel in the units
// documented on Attribute. Every call is a fresh bus transaction; the
// driver caches no readings.
func (d *Dev) Read(t SensorType, attr Attribute, channel int) (int64, error) {
	switch t {
	case Voltage:
		if attr != Input {
			return 0, ErrUnsupported
		}
		if channel < 1 || channel > VoltageChannels {
			return 0, fmt.Errorf("nct7904: voltage channel %d: %w", channel, ErrInvalidValue)
		}
		index := int(voltChanToIndex[channel])
		raw, err := d.readReg16(bank0, vsenReg+uint8(2*index))
		if err != nil {
			return 0, err
		}
		return voltageMilli(raw, index), nil
	case Fan:
		if attr != Input {
			return 0, ErrUnsupported
		}
		if channel < 0 || channel >= FanChannels {
			return 0, fmt.Errorf("nct7904: fan channel %d: %w", channel, ErrInvalidValue)
		}
		raw, err := d.readReg16(bank0, faninReg+uint8(2*channel))
		if err != nil {
			return 0, err
		}
		return int64(fanRPM(raw)), nil
	case Temperature:
		if attr != Input {
			return 0, ErrUnsupported
		}
		if channel < 0 || channel >= TemperatureChannels {
			return 0, fmt.Errorf("nct7904: temperature channel %d: %w", channel, ErrInvalidValue)
		}
		raw, err := d.readReg16(bank0, tempChannelReg(channel))
		if err != nil {
			return 0, err
		}
		return tempMilli(raw), nil
	case PWM:
		if channel < 0 || channel >= PWMChannels {
			return 0, fmt.Errorf("nct7904: pwm channel %d: %w", channel, ErrInvalidValue)
		}
		switch attr {
		case Input:
			duty, err := d.readReg(bank3, fanctlOutReg+uint8(channel))
			if err != nil {
				return 0, err
			}
			return int64(duty), nil
		case Enable:
			mode, err := d.readReg(bank3, fanctlModeReg+uint8(channel))
			if err != nil {
				return 0, err
			}
			if mode != 0 {
				return PWMAutomatic, nil
			}
			return PWMManual, nil
		}
	}
	return 0, ErrUnsupported
}

// Write sets a fan controller's duty cycle or control mode. The value is
// validated before any bus traffic. Switching to automatic requires that
// the chip had an automatic profile configured when the device was
// opened; a controller whose mode byte was zero has none to restore.
func (d *Dev) Write(t SensorType, attr Attribute, channel int, val int64) error {
	if t != PWM {
		return ErrUnsupported
	}
	if channel < 0 || channel >= PWMChannels {
		return fmt.Errorf("nct7904: pwm channel %d: %w", channel, ErrInvalidValue)
	}
	switch attr {
	case Input:
		if val < 0 || val > 255 {
			return fmt.Errorf("nct7904: duty %d outside 0..255: %w", val, ErrInvalidValue)
		}
		return d.writeReg(bank3, fanctlOutReg+uint8(channel), uint8(val))
	case Enable:
		switch val {
		case PWMManual:
			return d.writeReg(bank3, fanctlModeReg+uint8(channel), 0)
		case PWMAutomatic:
			if d.fanMode[channel] == 0 {
				return fmt.Errorf("nct7904: fan controller %d has no automatic profile: %w", channel, ErrInvalidValue)
			}
			return d.writeReg(bank3, fanctlModeReg+uint8(channel), d.fanMode[channel])
		}
		return fmt.Errorf("nct7904: enable value %d: %w", val, ErrInvalidValue)
	}
	return ErrUnsupported
}

// Voltage returns the voltage on a logical channel.
func (d *Dev) Voltage(channel int) (physic.ElectricPotential, error) {
	mv, err := d.Read(Voltage, Input, channel)
	if err != nil {
		return 0, err
	}
	return physic.ElectricPotential(mv) * physic.MilliVolt, nil
}

// Temperature returns the reading of a temperature channel.
func (d *Dev) Temperature(channel int) (physic.Temperature, error) {
	mc, err := d.Read(Temperature, Input, channel)
	if err != nil {
		return 0, err
	}
	return physic.ZeroCelsius + physic.Temperature(mc)*physic.MilliKelvin, nil
}

// FanSpeed returns the rotation speed of a fan input in RPM. A stopped
// fan reads 0.
func (d *Dev) FanSpeed(channel int) (int, error) {
	rpm, err := d.Read(Fan, Input, channel)
	return int(rpm), err
}

// Sense reads the local die temperature. Implements physic.SenseEnv. The
// NCT7904D measures neither pressure nor humidity.
func (d *Dev) Sense(e *physic.Env) error {
	if !d.Visible(Temperature, Input, localDieChannel) {
		return fmt.Errorf("nct7904: local die sensor not enabled: %w", ErrUnsupported)
	}
	t, err := d.Temperature(localDieChannel)
	if err != nil {
		return err
	}
	e.Temperature = t
	return nil
}

// SenseContinuous reads the die temperature at the given interval until
// Halt is called. Implements physic.SenseEnv.
func (d *Dev) SenseContinuous(interval time.Duration) (<-chan physic.Env, error) {
	d.mu.Lock()
	if d.stop != nil {
		d.mu.Unlock()
		return nil, errors.New("nct7904: already sensing continuously")
	}
	stop := make(chan struct{})
	d.stop = stop
	d.mu.Unlock()

	c := make(chan physic.Env, 16)
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				close(c)
				return
			case <-t.C:
				var e physic.Env
				if err := d.Sense(&e); err != nil {
					continue
				}
				select {
				case c <- e:
				default:
				}
			}
		}
	}()
	return c, nil
}

// Precision returns the temperature step of the chip, 0.125°C per count.
// Implements physic.SenseEnv.
func (d *Dev) Precision(e *physic.Env) {
	e.Temperature = 125 * physic.MilliKelvin
	e.Pressure = 0
	e.Humidity = 0
}

// Halt stops a running SenseContinuous. Implements conn.Resource. The
// chip keeps monitoring on its own; fan control is left untouched.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		close(d.stop)
		d.stop = nil
	}
	return nil
}

var _ conn.Resource = &Dev{}
var _ physic.SenseEnv = &Dev{}
