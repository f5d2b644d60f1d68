// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/GermanBionicSystems/powermon/isl28022"
	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"
)

// nodeConfig describes the power monitor of one sensor node. Zero values
// keep the driver defaults.
type nodeConfig struct {
	Bus     string `yaml:"bus"`
	Address uint16 `yaml:"address"`
	// Full scale ranges, in volts and millivolts.
	BusRange   int `yaml:"bus_range"`
	ShuntRange int `yaml:"shunt_range"`
	// Shunt resistor in milliohms and largest expected current in
	// milliamperes.
	ShuntMilliOhm  float64       `yaml:"shunt_milliohm"`
	MaxMilliAmpere float64       `yaml:"max_milliampere"`
	BusAveraging   int           `yaml:"bus_averaging"`
	ShuntAveraging int           `yaml:"shunt_averaging"`
	Interval       time.Duration `yaml:"interval"`
	Samples        int           `yaml:"samples"`
}

// Largest 7-bit I²C address.
const maxAddress = 0x7f

// checkAddress converts an address given on the command line.
func checkAddress(a uint) (uint16, error) {
	if a > maxAddress {
		return 0, fmt.Errorf("config: I²C address 0x%x is above 0x%x", a, maxAddress)
	}
	return uint16(a), nil
}

func defaultNodeConfig() nodeConfig {
	return nodeConfig{Address: isl28022.DefaultAddress, Interval: 5 * time.Second}
}

// decodeConfig overlays the YAML document read from r onto c.
func decodeConfig(r io.Reader, c *nodeConfig) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func loadConfig(path string, c *nodeConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return decodeConfig(f, c)
}

func busRangeFromVolts(v int) (isl28022.BusRange, error) {
	switch v {
	case 0, 16:
		return isl28022.BusRange16V, nil
	case 32:
		return isl28022.BusRange32V, nil
	case 60:
		return isl28022.BusRange60V, nil
	}
	return 0, fmt.Errorf("config: bus range %dV is not one of 16, 32, 60", v)
}

func shuntRangeFromMilliVolts(mv int) (isl28022.ShuntRange, error) {
	switch mv {
	case 40:
		return isl28022.ShuntRange40mV, nil
	case 80:
		return isl28022.ShuntRange80mV, nil
	case 160:
		return isl28022.ShuntRange160mV, nil
	case 0, 320:
		return isl28022.ShuntRange320mV, nil
	}
	return 0, fmt.Errorf("config: shunt range %dmV is not one of 40, 80, 160, 320", mv)
}

// opts converts the node configuration into driver options.
func (c nodeConfig) opts() (isl28022.Opts, error) {
	o := isl28022.DefaultOpts
	if c.Address > maxAddress {
		return o, fmt.Errorf("config: I²C address 0x%x is above 0x%x", c.Address, maxAddress)
	}
	var err error
	if o.BusRange, err = busRangeFromVolts(c.BusRange); err != nil {
		return o, err
	}
	if o.ShuntRange, err = shuntRangeFromMilliVolts(c.ShuntRange); err != nil {
		return o, err
	}
	o.BusAveraging = c.BusAveraging
	o.ShuntAveraging = c.ShuntAveraging
	if c.ShuntMilliOhm < 0 || c.MaxMilliAmpere < 0 {
		return o, fmt.Errorf("config: negative shunt resistor or current")
	}
	if c.ShuntMilliOhm != 0 {
		o.ShuntResistor = physic.ElectricResistance(c.ShuntMilliOhm * float64(physic.MilliOhm))
	}
	if c.MaxMilliAmpere != 0 {
		o.MaxCurrent = physic.ElectricCurrent(c.MaxMilliAmpere * float64(physic.MilliAmpere))
	}
	return o, nil
}
