// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package isl28022

import (
	"fmt"
	"math"
	"math/bits"
	"time"

	"periph.io/x/conn/v3/physic"
)

// BusRange is the full scale range of the bus voltage ADC (BRNG bits).
type BusRange uint16

const (
	BusRange16V BusRange = 0
	BusRange32V BusRange = 1
	// BusRange60V is also selected by the value 3.
	BusRange60V BusRange = 2
)

// resolution returns the number of significant bits in the bus voltage
// register for the range.
func (r BusRange) resolution() int {
	switch r {
	case BusRange16V:
		return 12
	case BusRange32V:
		return 13
	default:
		return 14
	}
}

// NativeADC returns the non-averaging ADC setting matching the range
// resolution.
func (r BusRange) NativeADC() ADCMode {
	return ADCMode(r.resolution() - 12)
}

// FullScale returns the largest bus voltage measurable in this range.
func (r BusRange) FullScale() physic.ElectricPotential {
	switch r {
	case BusRange16V:
		return 16 * physic.Volt
	case BusRange32V:
		return 32 * physic.Volt
	default:
		return 60 * physic.Volt
	}
}

func (r BusRange) String() string {
	return r.FullScale().String()
}

// ShuntRange is the full scale range of the shunt voltage ADC, set by the
// programmable gain (PG bits).
type ShuntRange uint16

const (
	ShuntRange40mV  ShuntRange = 0
	ShuntRange80mV  ShuntRange = 1
	ShuntRange160mV ShuntRange = 2
	ShuntRange320mV ShuntRange = 3
)

// resolution returns the shunt voltage resolution excluding the sign bit.
func (r ShuntRange) resolution() int {
	return 12 + int(r&0x03)
}

// NativeADC returns the non-averaging ADC setting matching the range
// resolution.
func (r ShuntRange) NativeADC() ADCMode {
	return ADCMode(r & 0x03)
}

// FullScale returns the largest shunt voltage measurable in this range.
func (r ShuntRange) FullScale() physic.ElectricPotential {
	return (40 * physic.MilliVolt) << (r & 0x03)
}

func (r ShuntRange) String() string {
	return r.FullScale().String()
}

// ADCMode selects the resolution or the number of averaged samples of
// one of the two ADCs (BADC and SADC bits).
type ADCMode uint16

const (
	ADC12Bit ADCMode = 0x0
	ADC13Bit ADCMode = 0x1
	ADC14Bit ADCMode = 0x2
	ADC15Bit ADCMode = 0x3
	// Averaging modes use 15-bit conversions.
	ADCAvg1   ADCMode = 0x8
	ADCAvg2   ADCMode = 0x9
	ADCAvg4   ADCMode = 0xa
	ADCAvg8   ADCMode = 0xb
	ADCAvg16  ADCMode = 0xc
	ADCAvg32  ADCMode = 0xd
	ADCAvg64  ADCMode = 0xe
	ADCAvg128 ADCMode = 0xf
)

// Conversion time for each ADC setting, indexed by conversionIndex.
var conversionTimes = []time.Duration{
	80 * time.Microsecond,
	146 * time.Microsecond,
	284 * time.Microsecond,
	559 * time.Microsecond,
	1110 * time.Microsecond,
	2210 * time.Microsecond,
	4410 * time.Microsecond,
	8810 * time.Microsecond,
	17610 * time.Microsecond,
	35210 * time.Microsecond,
	70410 * time.Microsecond,
}

func (m ADCMode) conversionIndex() int {
	if m&0x08 == 0 {
		// Bit 2 is ignored by the device when not averaging.
		return int(m & 0x03)
	}
	return 3 + int(m&0x07)
}

// ConversionTime returns the time the ADC needs to produce one result.
func (m ADCMode) ConversionTime() time.Duration {
	return conversionTimes[m.conversionIndex()]
}

// Samples returns the number of averaged samples, 1 for single conversions.
func (m ADCMode) Samples() int {
	if m&0x08 == 0 {
		return 1
	}
	return 1 << (m & 0x07)
}

func (m ADCMode) String() string {
	if m&0x08 == 0 {
		return fmt.Sprintf("%d-bit", 12+m&0x03)
	}
	return fmt.Sprintf("avg%d", m.Samples())
}

// AveragingADC returns the averaging ADC mode for the requested number of
// samples, which must be a power of two from 1 to 128.
func AveragingADC(samples int) (ADCMode, error) {
	if samples < 1 || samples > 128 || samples&(samples-1) != 0 {
		return 0, fmt.Errorf("%w: averaging of %d samples", ErrInvalidOption, samples)
	}
	return ADCAvg1 + ADCMode(bits.TrailingZeros(uint(samples))), nil
}

// Mode is the operating mode (MODE bits).
type Mode uint16

const (
	ModePowerDown Mode = iota
	ModeShuntTriggered
	ModeBusTriggered
	ModeShuntBusTriggered
	ModeADCOff
	ModeShuntContinuous
	ModeBusContinuous
	ModeShuntBusContinuous
)

// Continuous reports whether the device converts without being triggered.
func (m Mode) Continuous() bool {
	return m > ModeADCOff
}

// Configuration register bit positions.
const (
	resetBit       uint16 = 1 << 15
	busRangePos           = 13
	shuntRangePos         = 11
	busADCPos             = 7
	shuntADCPos           = 3
	modeMask       uint16 = 0x07
	adcMask        uint16 = 0x0f
	rangeFieldMask uint16 = 0x03
)

// Config is the decoded content of the configuration register.
type Config struct {
	BusRange   BusRange
	ShuntRange ShuntRange
	BusADC     ADCMode
	ShuntADC   ADCMode
	Mode       Mode
}

// Word encodes the configuration into the register layout.
func (c Config) Word() uint16 {
	return (uint16(c.BusRange)&rangeFieldMask)<<busRangePos |
		(uint16(c.ShuntRange)&rangeFieldMask)<<shuntRangePos |
		(uint16(c.BusADC)&adcMask)<<busADCPos |
		(uint16(c.ShuntADC)&adcMask)<<shuntADCPos |
		uint16(c.Mode)&modeMask
}

// ConfigFromWord decodes a configuration register value. The reset bit is
// ignored.
func ConfigFromWord(w uint16) Config {
	return Config{
		BusRange:   BusRange(w >> busRangePos & rangeFieldMask),
		ShuntRange: ShuntRange(w >> shuntRangePos & rangeFieldMask),
		BusADC:     ADCMode(w >> busADCPos & adcMask),
		ShuntADC:   ADCMode(w >> shuntADCPos & adcMask),
		Mode:       Mode(w & modeMask),
	}
}

func (c Config) validate() error {
	if c.BusRange > 3 {
		return fmt.Errorf("%w: bus range %d", ErrInvalidOption, c.BusRange)
	}
	if c.ShuntRange > ShuntRange320mV {
		return fmt.Errorf("%w: shunt range %d", ErrInvalidOption, c.ShuntRange)
	}
	if uint16(c.BusADC) > adcMask || uint16(c.ShuntADC) > adcMask {
		return fmt.Errorf("%w: adc mode 0x%x/0x%x", ErrInvalidOption, uint16(c.BusADC), uint16(c.ShuntADC))
	}
	if uint16(c.Mode) > modeMask {
		return fmt.Errorf("%w: mode 0b%b", ErrInvalidOption, c.Mode)
	}
	return nil
}

// String returns the register bits grouped by field:
// RST BRNG PG BADC SADC MODE.
func (c Config) String() string {
	w := c.Word()
	return fmt.Sprintf("%01b %02b %02b %04b %04b %03b",
		w>>15&1, w>>busRangePos&rangeFieldMask, w>>shuntRangePos&rangeFieldMask,
		w>>busADCPos&adcMask, w>>shuntADCPos&adcMask, w&modeMask)
}

// Opts holds the configuration applied by NewI2C.
type Opts struct {
	BusRange   BusRange
	ShuntRange ShuntRange
	// Number of samples averaged by each ADC. 0 selects a single
	// conversion at the native resolution of the range.
	BusAveraging   int
	ShuntAveraging int
	Mode           Mode
	// ShuntResistor is the value of the shunt on the board. When zero,
	// the calibration register is left untouched and current and power
	// read as zero until SetCalibration is called.
	ShuntResistor physic.ElectricResistance
	// MaxCurrent is the largest current expected through the shunt. When
	// zero, the full scale current of the shunt range is used.
	MaxCurrent physic.ElectricCurrent
}

// DefaultOpts matches the Curious Electric ISL28022 board: a 5 mΩ shunt
// measured in continuous mode with the widest shunt range.
var DefaultOpts = Opts{
	BusRange:      BusRange16V,
	ShuntRange:    ShuntRange320mV,
	Mode:          ModeShuntBusContinuous,
	ShuntResistor: 5 * physic.MilliOhm,
}

func adcFor(samples int, native ADCMode) (ADCMode, error) {
	if samples == 0 {
		return native, nil
	}
	return AveragingADC(samples)
}

// Config converts the options into a configuration register value.
func (o *Opts) Config() (Config, error) {
	c := Config{BusRange: o.BusRange, ShuntRange: o.ShuntRange, Mode: o.Mode}
	var err error
	if c.BusADC, err = adcFor(o.BusAveraging, o.BusRange.NativeADC()); err != nil {
		return c, err
	}
	if c.ShuntADC, err = adcFor(o.ShuntAveraging, o.ShuntRange.NativeADC()); err != nil {
		return c, err
	}
	if o.ShuntResistor < 0 || o.MaxCurrent < 0 {
		return c, fmt.Errorf("%w: negative shunt resistor or current", ErrInvalidOption)
	}
	return c, c.validate()
}

// CalibrationCurrent returns the current used for calibration, which is
// also the full scale of current readings.
func (o *Opts) CalibrationCurrent() physic.ElectricCurrent {
	if o.MaxCurrent != 0 || o.ShuntResistor <= 0 {
		return o.MaxCurrent
	}
	fs := float64(o.ShuntRange.FullScale()) / float64(physic.Volt)
	ohms := float64(o.ShuntResistor) / float64(physic.Ohm)
	return physic.ElectricCurrent(math.Round(fs / ohms * float64(physic.Ampere)))
}
