// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"image/color"
	"io"
	"math"

	"github.com/maruel/ansi256"
	"periph.io/x/conn/v3/physic"
)

// gauge draws the shunt current as a bar of ANSI colored blocks, green at
// no load and red at full scale.
type gauge struct {
	w       io.Writer
	width   int
	full    physic.ElectricCurrent
	palette *ansi256.Palette
	buf     bytes.Buffer
}

func newGauge(w io.Writer, width int, full physic.ElectricCurrent) *gauge {
	return &gauge{w: w, width: width, full: full, palette: ansi256.Default}
}

// level returns the number of lit blocks for current c.
func (g *gauge) level(c physic.ElectricCurrent) int {
	if g.full <= 0 {
		return 0
	}
	n := int(math.Round(math.Abs(float64(c)) / float64(g.full) * float64(g.width)))
	if n > g.width {
		n = g.width
	}
	return n
}

func (g *gauge) cellColor(i int) color.NRGBA {
	r := uint8(255)
	if g.width > 1 {
		r = uint8(255 * i / (g.width - 1))
	}
	return color.NRGBA{R: r, G: 255 - r, A: 255}
}

// render returns the bar for current c followed by label, rewinding the
// cursor to the start of the line.
func (g *gauge) render(c physic.ElectricCurrent, label string) []byte {
	g.buf.Reset()
	_, _ = g.buf.WriteString("\r\033[0m")
	n := g.level(c)
	for i := 0; i < g.width; i++ {
		if i < n {
			_, _ = g.buf.WriteString(g.palette.Block(g.cellColor(i)))
		} else {
			_ = g.buf.WriteByte(' ')
		}
	}
	_, _ = g.buf.WriteString("\033[0m ")
	_, _ = g.buf.WriteString(label)
	return g.buf.Bytes()
}

func (g *gauge) write(c physic.ElectricCurrent, label string) error {
	_, err := g.w.Write(g.render(c, label))
	return err
}

// Halt resets the terminal attributes and ends the line.
func (g *gauge) Halt() error {
	_, err := g.w.Write([]byte("\n\033[0m"))
	return err
}
