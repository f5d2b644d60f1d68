// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package isl28022_test

import (
	"fmt"
	"log"
	"time"

	"github.com/GermanBionicSystems/powermon/isl28022"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

func Example() {
	// Make sure periph is initialized.
	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}

	// Open default I²C bus.
	bus, err := i2creg.Open("")
	if err != nil {
		log.Fatalf("failed to open I²C: %v", err)
	}
	defer bus.Close()

	// 100mΩ shunt, up to 3.2A through the load.
	opts := isl28022.DefaultOpts
	opts.ShuntResistor = 100 * physic.MilliOhm
	opts.MaxCurrent = 3200 * physic.MilliAmpere
	opts.BusAveraging = 8
	dev, err := isl28022.NewI2C(bus, isl28022.DefaultAddress, &opts)
	if err != nil {
		log.Fatal(err)
	}
	defer dev.Halt()

	time.Sleep(dev.InitializationDelay())
	s, err := dev.Read()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("bus: %s shunt: %s current: %s power: %s\n", s.BusVoltage, s.ShuntVoltage, s.Current, s.Power)
}
