// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/GermanBionicSystems/powermon/isl28022"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
)

const addr = isl28022.DefaultAddress

func readOps(bus, shunt, current, power uint16) []i2ctest.IO {
	r := func(reg isl28022.Register, v uint16) i2ctest.IO {
		return i2ctest.IO{Addr: addr, W: []byte{byte(reg)}, R: []byte{byte(v >> 8), byte(v)}}
	}
	return []i2ctest.IO{
		r(isl28022.RegBusVoltage, bus),
		r(isl28022.RegShuntVoltage, shunt),
		r(isl28022.RegCurrent, current),
		r(isl28022.RegPower, power),
	}
}

func TestPollerRun(t *testing.T) {
	ops := append(initOps(), readOps(0x7d00, 0, 0, 0)...)
	ops = append(ops, readOps(0x3e80, 0x0064, 0x0200, 0x0010)...)
	pb := &i2ctest.Playback{Ops: ops, DontPanic: true}
	dev, err := isl28022.NewI2C(pb, addr, nil)
	if err != nil {
		t.Fatal(err)
	}
	p := &poller{dev: dev, out: &bytes.Buffer{}, plot: &plot{}}
	if err := p.run(context.Background(), 0, 2); err != nil {
		t.Fatal(err)
	}
	if err := pb.Close(); err != nil {
		t.Error(err)
	}
	if len(p.plot.samples) != 2 {
		t.Fatalf("recorded %d samples, expected 2", len(p.plot.samples))
	}
	if v := p.plot.samples[0].BusVoltage; v != 16*physic.Volt {
		t.Errorf("BusVoltage=%s expected 16V", v)
	}
	if v := p.plot.samples[1].BusVoltage; v != 8*physic.Volt {
		t.Errorf("BusVoltage=%s expected 8V", v)
	}
	if c := p.plot.samples[1].Current; c != physic.Ampere {
		t.Errorf("Current=%s expected 1A", c)
	}
}

// initOps is the NewI2C traffic for DefaultOpts.
func initOps() []i2ctest.IO {
	return []i2ctest.IO{
		{Addr: addr, W: []byte{0x00, 0x80, 0x00}},
		{Addr: addr, W: []byte{0x00, 0x18, 0x1f}},
		{Addr: addr, W: []byte{0x00}, R: []byte{0x18, 0x1f}},
		{Addr: addr, W: []byte{0x05, 0x10, 0x62}},
	}
}

// failingBus fails the next fail transactions, then forwards to Bus.
type failingBus struct {
	i2c.Bus
	fail int
}

func (f *failingBus) Tx(addr uint16, w, r []byte) error {
	if f.fail > 0 {
		f.fail--
		return errors.New("nack")
	}
	return f.Bus.Tx(addr, w, r)
}

func TestPollerSkipsFailedReads(t *testing.T) {
	pb := &i2ctest.Playback{Ops: append(initOps(), readOps(0x7d00, 0, 0, 0)...), DontPanic: true}
	bus := &failingBus{Bus: pb}
	dev, err := isl28022.NewI2C(bus, addr, nil)
	if err != nil {
		t.Fatal(err)
	}
	bus.fail = 1
	p := &poller{dev: dev, out: &bytes.Buffer{}, plot: &plot{}}
	if err := p.run(context.Background(), 0, 1); err != nil {
		t.Fatal(err)
	}
	if err := pb.Close(); err != nil {
		t.Error(err)
	}
	if len(p.plot.samples) != 1 {
		t.Fatalf("recorded %d samples, expected 1", len(p.plot.samples))
	}
}

func TestPollerStopsOnCancel(t *testing.T) {
	pb := &i2ctest.Playback{Ops: initOps(), DontPanic: true}
	dev, err := isl28022.NewI2C(pb, addr, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	p := &poller{dev: dev, out: &bytes.Buffer{}, plot: &plot{}}
	if err := p.run(ctx, 0, 1); err != nil {
		t.Fatal(err)
	}
	if len(p.plot.samples) != 0 {
		t.Fatalf("recorded %d samples, expected none", len(p.plot.samples))
	}
}

func TestPollerDiagnosticsFailure(t *testing.T) {
	ops := append(initOps(), readOps(0x7d00, 0, 0, 0)...)
	ops = append(ops, readOps(0x7d00, 0, 0, 0)...)
	pb := &i2ctest.Playback{Ops: ops, DontPanic: true}
	dev, err := isl28022.NewI2C(pb, addr, nil)
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	p := &poller{dev: dev, out: &out, diag: true, plot: &plot{}}
	// Diagnostics fail on the playback once the reads are consumed.
	if err := p.run(context.Background(), 0, 2); err != nil {
		t.Fatal(err)
	}
	if len(p.plot.samples) != 2 {
		t.Fatalf("recorded %d samples, expected 2", len(p.plot.samples))
	}
	if strings.Contains(out.String(), "Calibration:") {
		t.Errorf("unexpected diagnostics in %q", out.String())
	}
}

func TestPollerGaugeReportsOverflowAndDiagnostics(t *testing.T) {
	ops := append(initOps(), readOps(0x7d01, 0, 0, 0)...)
	ops = append(ops,
		i2ctest.IO{Addr: addr, W: []byte{byte(isl28022.RegCalibration)}, R: []byte{0x10, 0x62}},
		i2ctest.IO{Addr: addr, W: []byte{byte(isl28022.RegShuntVoltageThreshold)}, R: []byte{0x7f, 0x80}},
		i2ctest.IO{Addr: addr, W: []byte{byte(isl28022.RegBusVoltageThreshold)}, R: []byte{0xff, 0x00}},
		i2ctest.IO{Addr: addr, W: []byte{byte(isl28022.RegDCSInterruptStatus)}, R: []byte{0x00, 0x00}},
		i2ctest.IO{Addr: addr, W: []byte{byte(isl28022.RegAuxControl)}, R: []byte{0x00, 0x00}},
	)
	pb := &i2ctest.Playback{Ops: ops, DontPanic: true}
	dev, err := isl28022.NewI2C(pb, addr, nil)
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	p := &poller{dev: dev, out: &out, diag: true, gauge: newGauge(&out, 8, physic.Ampere)}
	if err := p.run(context.Background(), 0, 1); err != nil {
		t.Fatal(err)
	}
	if err := pb.Close(); err != nil {
		t.Error(err)
	}
	got := out.String()
	if !strings.Contains(got, " overflow") {
		t.Errorf("missing overflow notice in %q", got)
	}
	if !strings.Contains(got, "Calibration: 0x1062") {
		t.Errorf("missing diagnostics in %q", got)
	}
}
