// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/GermanBionicSystems/powermon/isl28022"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
	"periph.io/x/conn/v3/physic"
)

const plotMargin = 40

// plot records samples and renders bus voltage and current over time.
type plot struct {
	at      []time.Duration
	samples []isl28022.Sample
}

func (p *plot) add(at time.Duration, s isl28022.Sample) {
	p.at = append(p.at, at)
	p.samples = append(p.samples, s)
}

type point struct{ x, y float64 }

// series maps one quantity into the plot area. Values are scaled so that
// the largest magnitude touches the top of the area. A series with negative
// values is centered on its zero line, otherwise zero is the bottom edge.
type series struct {
	points []point
	zero   float64
	peak   float64
	signed bool
}

func (p *plot) scale(w, h int, value func(isl28022.Sample) float64) series {
	var sr series
	for _, s := range p.samples {
		v := value(s)
		if v < 0 {
			sr.signed = true
			v = -v
		}
		sr.peak = max(sr.peak, v)
	}
	last := p.at[len(p.at)-1]
	pw := float64(w - 2*plotMargin)
	ph := float64(h - 2*plotMargin)
	sr.zero = float64(h - plotMargin)
	if sr.signed {
		ph /= 2
		sr.zero -= ph
	}
	for i, s := range p.samples {
		pt := point{x: plotMargin, y: sr.zero}
		if last > 0 {
			pt.x += pw * float64(p.at[i]) / float64(last)
		}
		if sr.peak > 0 {
			pt.y -= ph * value(s) / sr.peak
		}
		sr.points = append(sr.points, pt)
	}
	return sr
}

// trace draws the series, with a dashed zero line when it is signed.
func (p *plot) trace(dc *gg.Context, w, h int, value func(isl28022.Sample) float64) float64 {
	sr := p.scale(w, h, value)
	if sr.signed {
		dc.Push()
		dc.SetLineWidth(1)
		dc.SetDash(4, 4)
		dc.DrawLine(plotMargin, sr.zero, float64(w-plotMargin), sr.zero)
		dc.Stroke()
		dc.Pop()
	}
	for i, pt := range sr.points {
		if i == 0 {
			dc.MoveTo(pt.x, pt.y)
		} else {
			dc.LineTo(pt.x, pt.y)
		}
	}
	dc.Stroke()
	return sr.peak
}

// render draws the recorded samples on a w×h canvas.
func (p *plot) render(w, h int) (*gg.Context, error) {
	if len(p.samples) == 0 {
		return nil, errors.New("plot: no samples")
	}
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, err
	}
	dc := gg.NewContext(w, h)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.SetFontFace(truetype.NewFace(f, &truetype.Options{Size: 12}))

	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(1)
	dc.DrawLine(plotMargin, float64(h-plotMargin), float64(w-plotMargin), float64(h-plotMargin))
	dc.DrawLine(plotMargin, plotMargin, plotMargin, float64(h-plotMargin))
	dc.Stroke()
	dc.DrawStringAnchored(p.at[len(p.at)-1].String(), float64(w-plotMargin), float64(h-plotMargin/2), 1, 0.5)

	dc.SetLineWidth(2)
	dc.SetRGB(0, 0, 0.8)
	vPeak := p.trace(dc, w, h, func(s isl28022.Sample) float64 { return float64(s.BusVoltage) })
	dc.DrawStringAnchored(fmt.Sprintf("bus %s", physic.ElectricPotential(vPeak)), plotMargin, plotMargin/2, 0, 0.5)
	dc.SetRGB(0.8, 0, 0)
	iPeak := p.trace(dc, w, h, func(s isl28022.Sample) float64 { return float64(s.Current) })
	dc.DrawStringAnchored(fmt.Sprintf("current %s", physic.ElectricCurrent(iPeak)), float64(w-plotMargin), plotMargin/2, 1, 0.5)
	return dc, nil
}

func (p *plot) save(path string, w, h int) error {
	dc, err := p.render(w, h)
	if err != nil {
		return err
	}
	return dc.SavePNG(path)
}
