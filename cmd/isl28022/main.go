// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// isl28022 samples an ISL28022 power monitor at a fixed interval and prints
// bus voltage, shunt voltage, current and power.
//
// Settings come from an optional YAML file (-config) and are overridden by
// the flags set on the command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/GermanBionicSystems/powermon/isl28022"
	"github.com/mattn/go-colorable"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Conversion results are not refreshed faster than this.
const minInterval = 100 * time.Millisecond

func mainImpl() error {
	cfgPath := flag.String("config", "", "YAML node configuration file")
	busName := flag.String("b", "", "I²C bus to use")
	addr := flag.Uint("a", uint(isl28022.DefaultAddress), "I²C address")
	busRange := flag.Int("bus-range", 16, "bus full scale range in volts: 16, 32 or 60")
	shuntRange := flag.Int("shunt-range", 320, "shunt full scale range in millivolts: 40, 80, 160 or 320")
	shunt := flag.Float64("shunt", 5, "shunt resistor in milliohms")
	maxCurrent := flag.Float64("max-current", 0, "largest expected current in milliamperes, 0 for the shunt full scale")
	bavg := flag.Int("bavg", 0, "bus voltage samples averaged, 0 for none")
	savg := flag.Int("savg", 0, "shunt voltage samples averaged, 0 for none")
	interval := flag.Duration("i", 5*time.Second, "sampling interval")
	samples := flag.Int("n", 0, "number of samples, 0 for no limit")
	diag := flag.Bool("diag", false, "dump the auxiliary registers after each sample")
	bar := flag.Int("gauge", 0, "draw the current as a colored bar of this width instead of printing lines")
	plotPath := flag.String("plot", "", "write a PNG plot of the samples to this file on exit")
	verbose := flag.Bool("v", false, "verbose mode")
	flag.Parse()
	if !*verbose {
		log.SetOutput(io.Discard)
	}
	log.SetFlags(log.Lmicroseconds)
	if flag.NArg() != 0 {
		return fmt.Errorf("unexpected argument: %s", flag.Args())
	}

	flagAddr, err := checkAddress(*addr)
	if err != nil {
		return err
	}
	cfg := defaultNodeConfig()
	cfg.ShuntMilliOhm = *shunt
	if *cfgPath != "" {
		if err := loadConfig(*cfgPath, &cfg); err != nil {
			return err
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "b":
			cfg.Bus = *busName
		case "a":
			cfg.Address = flagAddr
		case "bus-range":
			cfg.BusRange = *busRange
		case "shunt-range":
			cfg.ShuntRange = *shuntRange
		case "shunt":
			cfg.ShuntMilliOhm = *shunt
		case "max-current":
			cfg.MaxMilliAmpere = *maxCurrent
		case "bavg":
			cfg.BusAveraging = *bavg
		case "savg":
			cfg.ShuntAveraging = *savg
		case "i":
			cfg.Interval = *interval
		case "n":
			cfg.Samples = *samples
		}
	})
	opts, err := cfg.opts()
	if err != nil {
		return err
	}

	if _, err := host.Init(); err != nil {
		return err
	}
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return err
	}
	defer bus.Close()

	dev, err := isl28022.NewI2C(bus, cfg.Address, &opts)
	if err != nil {
		return err
	}
	log.Printf("%s configuration %s", dev, dev.Config())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	p := &poller{dev: dev, out: colorable.NewColorableStdout(), diag: *diag}
	if *bar > 0 {
		p.gauge = newGauge(p.out, *bar, opts.CalibrationCurrent())
	}
	if *plotPath != "" {
		p.plot = &plot{}
	}
	err = p.run(ctx, cfg.Interval, cfg.Samples)
	if p.gauge != nil {
		_ = p.gauge.Halt()
	}
	if p.plot != nil && len(p.plot.samples) != 0 {
		if err2 := p.plot.save(*plotPath, 800, 400); err == nil {
			err = err2
		}
	}
	if err2 := dev.Halt(); err == nil {
		err = err2
	}
	return err
}

// poller reads the device periodically and reports each sample.
type poller struct {
	dev   *isl28022.Dev
	out   io.Writer
	diag  bool
	gauge *gauge
	plot  *plot
}

// run reports n samples, or until ctx is done when n is 0. A failed read
// skips the sample and does not count toward n.
func (p *poller) run(ctx context.Context, interval time.Duration, n int) error {
	dev := p.dev
	interval = max(interval, dev.BusConversionTime(), dev.ShuntConversionTime(), minInterval)
	time.Sleep(dev.InitializationDelay())
	t := time.NewTicker(interval)
	defer t.Stop()
	start := time.Now()
	for taken, first := 0, true; n == 0 || taken < n; first = false {
		if !first {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
			}
		}
		s, err := dev.Read()
		if err != nil {
			log.Printf("sample skipped: %v", err)
			continue
		}
		taken++
		if err := p.report(time.Since(start), s); err != nil {
			return err
		}
	}
	return nil
}

// report prints one sample. A failed diagnostics read is logged and
// skipped.
func (p *poller) report(at time.Duration, s isl28022.Sample) error {
	if p.plot != nil {
		p.plot.add(at, s)
	}
	if p.gauge != nil {
		label := s.String()
		if s.Overflow {
			label += " overflow"
		}
		if err := p.gauge.write(s.Current, label); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(p.out, "Bus: %-10s Shunt: %-10s Current: %-10s Power: %s\n", s.BusVoltage, s.ShuntVoltage, s.Current, s.Power)
		if s.Overflow {
			fmt.Fprintln(p.out, "Bus voltage overflow")
		}
	}
	if !p.diag {
		return nil
	}
	d, err := p.dev.Diagnostics()
	if err != nil {
		log.Printf("diagnostics skipped: %v", err)
		return nil
	}
	if p.gauge != nil {
		// Keep the bar on its own line.
		fmt.Fprintln(p.out)
	}
	_, err = fmt.Fprintf(p.out, "Calibration: 0x%04x Shunt threshold: 0x%04x Bus threshold: 0x%04x DCS interrupt status: 0x%04x AUX control: 0x%04x\n",
		d.Calibration, d.ShuntVoltageThreshold, d.BusVoltageThreshold, d.DCSInterruptStatus, d.AuxControl)
	return err
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "isl28022: %s.\n", err)
		os.Exit(1)
	}
}
