// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mirror

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
)

// ServeHTTP implements http.Handler.
func (d *Dev) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	f, err := ParseFormat(q.Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if q.Get("stream") == "" {
		b, _, _, err := d.frame(f, false)
		if err != nil {
			d.log.Error("snapshot failed", "err", err)
			http.Error(w, "", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", f.contentType())
		w.Header().Set("Content-Length", strconv.Itoa(len(b)))
		w.Header().Set("Cache-Control", "no-store")
		if r.Method == http.MethodGet {
			_, _ = w.Write(b)
		}
		return
	}
	d.stream(w, r, f)
}

func (d *Dev) stream(w http.ResponseWriter, r *http.Request, f Format) {
	pw := newPartWriter(w)
	w.Header().Set("Content-Type", mime.FormatMediaType("multipart/x-mixed-replace", map[string]string{"boundary": pw.boundary}))
	w.Header().Set("Cache-Control", "no-store")
	flusher, _ := w.(http.Flusher)
	sent := ^uint64(0)
	for {
		b, gen, next, err := d.frame(f, true)
		if err != nil {
			d.log.Error("stream frame failed", "err", err)
			return
		}
		if gen != sent {
			if err := pw.writePart(f.contentType(), b); err != nil {
				d.log.Debug("stream client gone", "err", err)
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
			sent = gen
		}
		if d.isHalted() {
			return
		}
		select {
		case <-r.Context().Done():
			return
		case <-next:
		}
	}
}

// partWriter writes an unbounded sequence of MIME parts. mime/multipart
// cannot be used since every part must end with its closing boundary line
// before the next frame is known.
type partWriter struct {
	w        io.Writer
	boundary string
	started  bool
}

func newPartWriter(w io.Writer) *partWriter {
	var b [24]byte
	_, _ = rand.Read(b[:])
	return &partWriter{w: w, boundary: hex.EncodeToString(b[:])}
}

func (p *partWriter) writePart(contentType string, body []byte) error {
	var buf bytes.Buffer
	if !p.started {
		fmt.Fprintf(&buf, "--%s\r\n", p.boundary)
		p.started = true
	}
	fmt.Fprintf(&buf, "Content-Type: %s\r\nContent-Length: %d\r\n\r\n", contentType, len(body))
	buf.Write(body)
	fmt.Fprintf(&buf, "\r\n--%s\r\n", p.boundary)
	_, err := buf.WriteTo(p.w)
	return err
}
