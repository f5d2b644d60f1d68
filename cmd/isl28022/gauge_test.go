// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"strings"
	"testing"

	"periph.io/x/conn/v3/physic"
)

func TestGaugeLevel(t *testing.T) {
	g := newGauge(nil, 10, 2*physic.Ampere)
	data := []struct {
		c    physic.ElectricCurrent
		want int
	}{
		{0, 0},
		{physic.Ampere, 5},
		{-physic.Ampere, 5},
		{2 * physic.Ampere, 10},
		{5 * physic.Ampere, 10},
		{90 * physic.MilliAmpere, 0},
		{110 * physic.MilliAmpere, 1},
	}
	for _, line := range data {
		if got := g.level(line.c); got != line.want {
			t.Errorf("level(%s)=%d expected %d", line.c, got, line.want)
		}
	}
	if n := newGauge(nil, 10, 0).level(physic.Ampere); n != 0 {
		t.Errorf("level() without full scale=%d expected 0", n)
	}
}

func TestGaugeCellColor(t *testing.T) {
	g := newGauge(nil, 6, physic.Ampere)
	if c := g.cellColor(0); c.R != 0 || c.G != 255 {
		t.Errorf("first cell %v expected green", c)
	}
	if c := g.cellColor(5); c.R != 255 || c.G != 0 {
		t.Errorf("last cell %v expected red", c)
	}
}

func TestGaugeWrite(t *testing.T) {
	var buf bytes.Buffer
	g := newGauge(&buf, 4, physic.Ampere)
	if err := g.write(500*physic.MilliAmpere, "label"); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "\r\033[0m") {
		t.Errorf("missing line rewind in %q", out)
	}
	if !strings.HasSuffix(out, "\033[0m label") {
		t.Errorf("missing label in %q", out)
	}
	want := g.palette.Block(g.cellColor(0)) + g.palette.Block(g.cellColor(1)) + "  "
	if !strings.Contains(out, want) {
		t.Errorf("%q does not contain two lit blocks", out)
	}
	buf.Reset()
	if err := g.Halt(); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "\n\033[0m" {
		t.Errorf("Halt() wrote %q", buf.String())
	}
}
