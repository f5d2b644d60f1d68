// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package isl28022 controls a Renesas ISL28022 bidirectional power monitor
// over an I²C bus. The device measures the voltage across a shunt resistor
// and the bus voltage, and computes current and power once the calibration
// register has been written.
//
// Current and power registers read zero until SetCalibration has been
// called, either directly or by passing a shunt resistor in Opts.
//
// A command line sampler is available in cmd/isl28022.
//
// # Datasheet
//
// https://www.renesas.com/us/en/document/dst/isl28022-datasheet
package isl28022
