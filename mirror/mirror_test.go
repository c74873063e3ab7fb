// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mirror

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseFormat(t *testing.T) {
	for _, line := range []struct {
		in   string
		want Format
		err  bool
	}{
		{"", PNG, false},
		{"png", PNG, false},
		{"jpg", JPEG, false},
		{"jpeg", JPEG, false},
		{"gif", PNG, true},
	} {
		got, err := ParseFormat(line.in)
		if (err != nil) != line.err || got != line.want {
			t.Errorf("ParseFormat(%q) = %v, %v", line.in, got, err)
		}
	}
	if s := Format(7).String(); s != "Format(7)" {
		t.Error(s)
	}
}

func TestSnapshot(t *testing.T) {
	d := New(&Opts{W: 4, H: 2})
	red := color.RGBA{R: 0xff, A: 0xff}
	src := image.NewUniform(red)
	if err := d.Draw(image.Rect(1, 0, 2, 1), src, image.Point{}); err != nil {
		t.Fatal(err)
	}
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/display", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("code %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("Content-Type %q", ct)
	}
	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	if got := color.RGBAModel.Convert(img.At(1, 0)); got != red {
		t.Errorf("pixel (1,0) = %v", got)
	}
	if got := color.RGBAModel.Convert(img.At(0, 0)); got != (color.RGBA{A: 0xff}) {
		t.Errorf("pixel (0,0) = %v", got)
	}
}

func TestServeHTTP_errors(t *testing.T) {
	d := New(&Opts{W: 1, H: 1})
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/display", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST: code %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	d.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/display?format=bmp", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bmp: code %d", rec.Code)
	}
}

func TestStream(t *testing.T) {
	d := New(&Opts{W: 2, H: 2})
	s := httptest.NewServer(d)
	defer s.Close()

	resp, err := http.Get(s.URL + "/?stream=1&format=jpeg")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	mt, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mt != "multipart/x-mixed-replace" {
		t.Fatalf("Content-Type %q: %v", resp.Header.Get("Content-Type"), err)
	}
	mr := multipart.NewReader(resp.Body, params["boundary"])
	readPart := func() []byte {
		p, err := mr.NextPart()
		if err != nil {
			t.Fatal(err)
		}
		if ct := p.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Fatalf("part Content-Type %q", ct)
		}
		b, err := io.ReadAll(p)
		if err != nil {
			t.Fatal(err)
		}
		return b
	}
	first := readPart()
	if err := d.Draw(d.Bounds(), image.White, image.Point{}); err != nil {
		t.Fatal(err)
	}
	second := readPart()
	if bytes.Equal(first, second) {
		t.Fatal("second frame identical to the first")
	}
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	if _, err := mr.NextPart(); err == nil {
		t.Fatal("stream continued after Halt")
	}
}
