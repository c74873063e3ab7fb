// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package st7735

import (
	"periph.io/x/conn/v3/gpio"
)

// errorHandler is a wrapper for error management.
type errorHandler struct {
	d   *Dev
	err error
}

func (eh *errorHandler) rstOut(l gpio.Level) {
	if eh.err != nil {
		return
	}
	eh.err = eh.d.rst.Out(l)
}

func (eh *errorHandler) dcOut(l gpio.Level) {
	if eh.err != nil {
		return
	}
	eh.err = eh.d.dc.Out(l)
}

func (eh *errorHandler) csOut(l gpio.Level) {
	if eh.err != nil || eh.d.cs == nil {
		return
	}
	eh.err = eh.d.cs.Out(l)
}

func (eh *errorHandler) cTx(w []byte) {
	if eh.err != nil {
		return
	}
	eh.err = eh.d.c.Tx(w, nil)
}

// command sends cmd followed by its parameters. A halted panel is woken up
// first, unless cmd is part of the wake up itself.
func (eh *errorHandler) command(cmd byte, params ...byte) {
	if eh.err != nil {
		return
	}
	if eh.d.halted && cmd != slpOut && cmd != dispOn {
		eh.err = eh.d.wake()
	}
	eh.dcOut(gpio.Low)
	eh.csOut(gpio.Low)
	eh.cTx([]byte{cmd})
	eh.csOut(gpio.High)
	if len(params) != 0 {
		eh.data(params)
	}
}

func (eh *errorHandler) data(b []byte) {
	if eh.err != nil {
		return
	}
	eh.dcOut(gpio.High)
	eh.csOut(gpio.Low)
	eh.cTx(b)
	eh.csOut(gpio.High)
}
