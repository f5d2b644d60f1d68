// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package isl28022

import (
	"errors"
	"fmt"
	"math"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// DefaultAddress is the address with both strap pins tied to ground.
const DefaultAddress uint16 = 0x40

// Register is a register offset of the device.
type Register byte

const (
	RegConfig                Register = 0x00 // R/W
	RegShuntVoltage          Register = 0x01 // R
	RegBusVoltage            Register = 0x02 // R
	RegPower                 Register = 0x03 // R
	RegCurrent               Register = 0x04 // R
	RegCalibration           Register = 0x05 // R/W
	RegShuntVoltageThreshold Register = 0x06 // R/W
	RegBusVoltageThreshold   Register = 0x07 // R/W
	RegDCSInterruptStatus    Register = 0x08 // R/W
	RegAuxControl            Register = 0x09 // R/W
)

const (
	// Bus voltage step, identical in every range.
	busVoltageLSB = 4 * physic.MilliVolt
	// Shunt voltage step.
	shuntVoltageLSB = 10 * physic.MicroVolt
	// Numerator of the calibration equation: 2^12 * 10µV.
	calibrationScale = 0.04096
	// Power LSB is 5000 times current LSB times the bus voltage LSB in volts.
	powerLSBScale = 5000 * 0.004
	// Bit 0 of the bus voltage register flags a math overflow.
	busOverflowBit uint16 = 0x01
	// Bit 0 of the calibration register is read-only.
	calibrationMask uint16 = 0xfffe
)

var (
	// ErrInvalidOption is returned when configuration values cannot be
	// represented in the configuration register.
	ErrInvalidOption = errors.New("isl28022: invalid option")
	// ErrInvalidCalibration is returned when the shunt resistor and the
	// expected current produce a value that does not fit the calibration
	// register.
	ErrInvalidCalibration = errors.New("isl28022: invalid calibration")
)

// Sample is a set of measurements read from the device.
type Sample struct {
	BusVoltage   physic.ElectricPotential
	ShuntVoltage physic.ElectricPotential
	Current      physic.ElectricCurrent
	Power        physic.Power
	// Overflow is set when the power or current computation overflowed.
	Overflow bool
}

func (s Sample) String() string {
	return fmt.Sprintf("%s %s %s %s", s.BusVoltage, s.ShuntVoltage, s.Current, s.Power)
}

// Diagnostics holds the raw content of the registers not used for
// measurements.
type Diagnostics struct {
	Calibration           uint16
	ShuntVoltageThreshold uint16
	BusVoltageThreshold   uint16
	DCSInterruptStatus    uint16
	AuxControl            uint16
}

// Dev is a handle to an ISL28022 power monitor.
//
// Dev is not safe for concurrent use by multiple goroutines.
type Dev struct {
	d   *i2c.Dev
	cfg Config
	// Amperes per count of the current register. Zero until calibrated.
	currentLSB float64
}

// NewI2C resets the device at addr, applies the configuration derived from
// opts and, when opts has a shunt resistor, writes the calibration register.
// If opts is nil, DefaultOpts is used.
func NewI2C(b i2c.Bus, addr uint16, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	cfg, err := opts.Config()
	if err != nil {
		return nil, err
	}
	if opts.ShuntResistor != 0 {
		if _, _, err := calibrationValue(opts.ShuntResistor, opts.CalibrationCurrent()); err != nil {
			return nil, err
		}
	}
	dev := &Dev{d: &i2c.Dev{Bus: b, Addr: addr}}
	if err := dev.reset(); err != nil {
		return nil, err
	}
	if err := dev.Configure(cfg); err != nil {
		return nil, err
	}
	w, err := dev.ReadRegister(RegConfig)
	if err != nil {
		return nil, fmt.Errorf("isl28022: no device at 0x%x: %w", addr, err)
	}
	if w != cfg.Word() {
		return nil, fmt.Errorf("isl28022: no device at 0x%x: configuration read back as 0x%04x, expected 0x%04x", addr, w, cfg.Word())
	}
	if opts.ShuntResistor != 0 {
		if err := dev.SetCalibration(opts.ShuntResistor, opts.CalibrationCurrent()); err != nil {
			return nil, err
		}
	}
	return dev, nil
}

// reset sets the registers to their power-on defaults, clearing the
// calibration.
func (dev *Dev) reset() error {
	if err := dev.writeRegister(RegConfig, resetBit); err != nil {
		return fmt.Errorf("isl28022: reset: %w", err)
	}
	dev.currentLSB = 0
	return nil
}

func (dev *Dev) writeRegister(reg Register, value uint16) error {
	return dev.d.Tx([]byte{byte(reg), byte(value >> 8), byte(value)}, nil)
}

// ReadRegister returns the raw 16 bit content of a register.
func (dev *Dev) ReadRegister(reg Register) (uint16, error) {
	r := make([]byte, 2)
	if err := dev.d.Tx([]byte{byte(reg)}, r); err != nil {
		return 0, fmt.Errorf("isl28022: read register 0x%02x: %w", byte(reg), err)
	}
	return uint16(r[0])<<8 | uint16(r[1]), nil
}

// Configure writes cfg to the configuration register.
func (dev *Dev) Configure(cfg Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	if err := dev.writeRegister(RegConfig, cfg.Word()); err != nil {
		return fmt.Errorf("isl28022: configure: %w", err)
	}
	dev.cfg = cfg
	return nil
}

// Config returns the configuration last written to the device.
func (dev *Dev) Config() Config {
	return dev.cfg
}

// Mode returns the operating mode last written to the device.
func (dev *Dev) Mode() Mode {
	return dev.cfg.Mode
}

// calibrationValue computes the calibration register value and the current
// LSB in amperes.
func calibrationValue(shunt physic.ElectricResistance, maxCurrent physic.ElectricCurrent) (uint16, float64, error) {
	if shunt <= 0 || maxCurrent <= 0 {
		return 0, 0, fmt.Errorf("%w: shunt %s, max current %s", ErrInvalidCalibration, shunt, maxCurrent)
	}
	ohms := float64(shunt) / float64(physic.Ohm)
	lsb := float64(maxCurrent) / float64(physic.Ampere) / (1 << 15)
	cal := math.Trunc(calibrationScale / (lsb * ohms))
	if cal > math.MaxUint16 || uint16(cal)&calibrationMask == 0 {
		return 0, 0, fmt.Errorf("%w: shunt %s, max current %s gives %.0f", ErrInvalidCalibration, shunt, maxCurrent, cal)
	}
	return uint16(cal) & calibrationMask, lsb, nil
}

// SetCalibration computes the calibration register from the shunt resistor
// value and the largest current expected, and writes it to the device.
// Current and power readings use the resulting current LSB, maxCurrent/2^15.
func (dev *Dev) SetCalibration(shunt physic.ElectricResistance, maxCurrent physic.ElectricCurrent) error {
	cal, lsb, err := calibrationValue(shunt, maxCurrent)
	if err != nil {
		return err
	}
	if err := dev.writeRegister(RegCalibration, cal); err != nil {
		return fmt.Errorf("isl28022: calibrate: %w", err)
	}
	dev.currentLSB = lsb
	return nil
}

// ReadCalibration returns the content of the calibration register.
func (dev *Dev) ReadCalibration() (uint16, error) {
	return dev.ReadRegister(RegCalibration)
}

// countToBusVoltage converts the bus voltage register for the range. The
// second value reports the overflow flag.
func countToBusVoltage(raw uint16, r BusRange) (physic.ElectricPotential, bool) {
	var count uint16
	switch r.resolution() {
	case 12:
		count = (raw & 0x7ff8) >> 3
	case 13:
		count = (raw & 0xfff8) >> 3
	default:
		count = (raw & 0xfffc) >> 2
	}
	return physic.ElectricPotential(count) * busVoltageLSB, raw&busOverflowBit != 0
}

// signExtend interprets the low bits+1 bits of raw as a two's complement
// value with the sign at position bits.
func signExtend(raw uint16, bits int) int32 {
	width := uint(bits + 1)
	v := int32(raw) & (1<<width - 1)
	if v&(1<<uint(bits)) != 0 {
		v -= 1 << width
	}
	return v
}

func countToShuntVoltage(raw uint16, r ShuntRange) physic.ElectricPotential {
	return physic.ElectricPotential(signExtend(raw, r.resolution())) * shuntVoltageLSB
}

func countToCurrent(raw uint16, lsb float64) physic.ElectricCurrent {
	return physic.ElectricCurrent(math.Round(float64(int16(raw)) * lsb * float64(physic.Ampere)))
}

func countToPower(raw uint16, lsb float64) physic.Power {
	return physic.Power(math.Round(float64(raw&0x7fff) * lsb * powerLSBScale * float64(physic.Watt)))
}

// ReadBusVoltage returns the voltage between the bus pin and ground.
func (dev *Dev) ReadBusVoltage() (physic.ElectricPotential, error) {
	raw, err := dev.ReadRegister(RegBusVoltage)
	if err != nil {
		return 0, err
	}
	v, _ := countToBusVoltage(raw, dev.cfg.BusRange)
	return v, nil
}

// ReadShuntVoltage returns the voltage across the shunt resistor. It is
// negative when the current flows backward.
func (dev *Dev) ReadShuntVoltage() (physic.ElectricPotential, error) {
	raw, err := dev.ReadRegister(RegShuntVoltage)
	if err != nil {
		return 0, err
	}
	return countToShuntVoltage(raw, dev.cfg.ShuntRange), nil
}

// ReadCurrent returns the current through the shunt. It returns 0 until the
// device has been calibrated.
func (dev *Dev) ReadCurrent() (physic.ElectricCurrent, error) {
	raw, err := dev.ReadRegister(RegCurrent)
	if err != nil {
		return 0, err
	}
	return countToCurrent(raw, dev.currentLSB), nil
}

// ReadPower returns the power delivered to the load. It returns 0 until the
// device has been calibrated.
func (dev *Dev) ReadPower() (physic.Power, error) {
	raw, err := dev.ReadRegister(RegPower)
	if err != nil {
		return 0, err
	}
	return countToPower(raw, dev.currentLSB), nil
}

// Read returns bus voltage, shunt voltage, current and power.
func (dev *Dev) Read() (Sample, error) {
	var s Sample
	raw, err := dev.ReadRegister(RegBusVoltage)
	if err != nil {
		return s, err
	}
	s.BusVoltage, s.Overflow = countToBusVoltage(raw, dev.cfg.BusRange)
	if s.ShuntVoltage, err = dev.ReadShuntVoltage(); err != nil {
		return s, err
	}
	if s.Current, err = dev.ReadCurrent(); err != nil {
		return s, err
	}
	s.Power, err = dev.ReadPower()
	return s, err
}

// Diagnostics reads the calibration, threshold, interrupt status and
// auxiliary control registers.
func (dev *Dev) Diagnostics() (Diagnostics, error) {
	var d Diagnostics
	regs := []struct {
		reg Register
		dst *uint16
	}{
		{RegCalibration, &d.Calibration},
		{RegShuntVoltageThreshold, &d.ShuntVoltageThreshold},
		{RegBusVoltageThreshold, &d.BusVoltageThreshold},
		{RegDCSInterruptStatus, &d.DCSInterruptStatus},
		{RegAuxControl, &d.AuxControl},
	}
	for _, r := range regs {
		v, err := dev.ReadRegister(r.reg)
		if err != nil {
			return d, err
		}
		*r.dst = v
	}
	return d, nil
}

func (dev *Dev) setMode(m Mode) error {
	cfg := dev.cfg
	cfg.Mode = m
	return dev.Configure(cfg)
}

// PowerDown stops both ADCs and puts the device in its low power state.
func (dev *Dev) PowerDown() error {
	return dev.setMode(ModePowerDown)
}

// ADCOff stops conversions while keeping the device powered.
func (dev *Dev) ADCOff() error {
	return dev.setMode(ModeADCOff)
}

// InitializationDelay returns the delay to wait after configuration
// before the first reading is valid.
func (dev *Dev) InitializationDelay() time.Duration {
	// 2µs per count of the shunt ADC full scale.
	return (2 * time.Microsecond) << dev.cfg.ShuntRange.resolution()
}

// ShuntConversionTime returns the time between two shunt voltage results.
func (dev *Dev) ShuntConversionTime() time.Duration {
	return dev.cfg.ShuntADC.ConversionTime()
}

// BusConversionTime returns the time between two bus voltage results.
func (dev *Dev) BusConversionTime() time.Duration {
	return dev.cfg.BusADC.ConversionTime()
}

// Halt powers down the device. Implements conn.Resource.
func (dev *Dev) Halt() error {
	return dev.PowerDown()
}

func (dev *Dev) String() string {
	return fmt.Sprintf("isl28022: %s", dev.d.String())
}

var _ conn.Resource = &Dev{}
