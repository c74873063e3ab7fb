// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mcp320x

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spitest"
)

const vRef = 3300 * physic.MilliVolt

func TestNew(t *testing.T) {
	if _, err := New(&spitest.Playback{}, Variant("MCP3008"), vRef); err == nil {
		t.Error("New() accepted an invalid variant")
	}
	d, err := New(&spitest.Playback{}, MCP3204, vRef)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.PinADC(4); err == nil {
		t.Error("PinADC(4) accepted on a 4 channel device")
	}
	if _, err := d.PinADC(-1); err == nil {
		t.Error("PinADC(-1) accepted")
	}
}

func TestRead(t *testing.T) {
	for _, tc := range []struct {
		name string
		ch   int
		w    []byte
		r    []byte
		want analog.Sample
	}{
		{
			name: "ch0 zero",
			ch:   0,
			w:    []byte{0x06, 0x00, 0x00},
			r:    []byte{0xff, 0xe0, 0x00},
			want: analog.Sample{},
		},
		{
			name: "ch5 mid scale",
			ch:   5,
			w:    []byte{0x07, 0x40, 0x00},
			r:    []byte{0x00, 0x08, 0x00},
			want: analog.Sample{Raw: 2048, V: physic.ElectricPotential(2048 * int64(vRef) / MaxCount)},
		},
		{
			name: "ch7 full scale",
			ch:   7,
			w:    []byte{0x07, 0xc0, 0x00},
			r:    []byte{0x00, 0x0f, 0xff},
			want: analog.Sample{Raw: 4095, V: vRef},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			pb := &spitest.Playback{Playback: conntest.Playback{
				Ops:       []conntest.IO{{W: tc.w, R: tc.r}},
				DontPanic: true,
			}}
			d, err := New(pb, MCP3208, vRef)
			if err != nil {
				t.Fatal(err)
			}
			p, err := d.PinADC(tc.ch)
			if err != nil {
				t.Fatal(err)
			}
			got, err := p.Read()
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(got, tc.want); diff != "" {
				t.Errorf("Read() difference (-got +want):\n%s", diff)
			}
			if err := pb.Close(); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestRange(t *testing.T) {
	d, err := New(&spitest.Playback{}, MCP3208, vRef)
	if err != nil {
		t.Fatal(err)
	}
	p, _ := d.PinADC(1)
	lo, hi := p.Range()
	if lo.V != 0 || hi.V != vRef || hi.Raw != MaxCount {
		t.Errorf("Range()=%v,%v", lo, hi)
	}
	if p.Name() != "MCP3208_CH1" || p.Number() != 1 {
		t.Errorf("unexpected pin identity %s %d", p.Name(), p.Number())
	}
}

func TestReadError(t *testing.T) {
	pb := &spitest.Playback{Playback: conntest.Playback{DontPanic: true}}
	d, err := New(pb, MCP3208, vRef)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.ReadRaw(0); err == nil {
		t.Error("ReadRaw() expected error")
	}
}
