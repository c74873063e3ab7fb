// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package thingspeak writes channel updates to a ThingSpeak compatible
// telemetry endpoint.
//
// Results are reported as integer status codes compatible with the ones used
// by the ThingSpeak embedded client libraries: 200 on success, the HTTP
// status for any other server answer and negative values for local or
// transport failures. The client never retries.
package thingspeak

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Code is the result of a write.
type Code int

// Result codes.
const (
	OK             Code = 200
	BadAPIKey      Code = 400
	BadURL         Code = 404
	OutOfRange     Code = -101
	InvalidField   Code = -201
	NoFieldSet     Code = -210
	ConnectFailed  Code = -301
	UnexpectedFail Code = -302
	BadResponse    Code = -303
	Timeout        Code = -304
	NotInserted    Code = -401
)

func (c Code) String() string {
	switch c {
	case OK:
		return "ok"
	case BadAPIKey:
		return "incorrect API key"
	case BadURL:
		return "incorrect API URL"
	case OutOfRange:
		return "value out of range or string too long"
	case InvalidField:
		return "invalid field number"
	case NoFieldSet:
		return "no field set"
	case ConnectFailed:
		return "failed to connect"
	case UnexpectedFail:
		return "unexpected failure during write"
	case BadResponse:
		return "unable to parse response"
	case Timeout:
		return "timeout waiting for server"
	case NotInserted:
		return "point not inserted"
	}
	if c > 0 {
		return "HTTP " + strconv.Itoa(int(c))
	}
	return "code " + strconv.Itoa(int(c))
}

// FieldCount is the number of fields of a channel.
const FieldCount = 8

// MaxValue is the largest magnitude a numeric field accepts.
const MaxValue = 999999999999999

// Record is one channel update.
type Record struct {
	fields    [FieldCount]string
	set       [FieldCount]bool
	CreatedAt time.Time
	Status    string
}

// SetField sets field n (1 based) to v.
//
// NaN and infinities are sent as the strings "NaN", "INF" and "-INF"; finite
// values are sent with 5 decimals.
func (r *Record) SetField(n int, v float64) Code {
	if n < 1 || n > FieldCount {
		return InvalidField
	}
	if v > MaxValue || v < -MaxValue {
		return OutOfRange
	}
	r.fields[n-1] = formatValue(v)
	r.set[n-1] = true
	return OK
}

// Field returns the encoded value of field n and whether it was set.
func (r *Record) Field(n int) (string, bool) {
	if n < 1 || n > FieldCount {
		return "", false
	}
	return r.fields[n-1], r.set[n-1]
}

func (r *Record) empty() bool {
	for _, s := range r.set {
		if s {
			return false
		}
	}
	return r.Status == ""
}

func formatValue(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "INF"
	case math.IsInf(v, -1):
		return "-INF"
	}
	return strconv.FormatFloat(v, 'f', 5, 64)
}

// DefaultServer is the public ThingSpeak API.
const DefaultServer = "https://api.thingspeak.com"

// Opts configures a Client.
type Opts struct {
	// Server is the base URL, DefaultServer when empty.
	Server   string
	Channel  uint64
	WriteKey string
	// Timeout bounds a write. Defaults to 5s.
	Timeout time.Duration
	// Client defaults to a new http.Client.
	Client *http.Client
}

// Client writes to a single channel.
type Client struct {
	endpoint string
	opts     Opts
	hc       *http.Client
}

// New returns a Client.
func New(opts *Opts) (*Client, error) {
	o := *opts
	if o.Server == "" {
		o.Server = DefaultServer
	}
	if o.WriteKey == "" {
		return nil, errors.New("thingspeak: write key is required")
	}
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	u, err := url.Parse(o.Server)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("thingspeak: invalid server %q", o.Server)
	}
	hc := o.Client
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		endpoint: strings.TrimSuffix(o.Server, "/") + "/update",
		opts:     o,
		hc:       hc,
	}, nil
}

func (c *Client) String() string {
	return fmt.Sprintf("thingspeak{channel=%d}", c.opts.Channel)
}

// WriteFields posts r as one channel update and returns the result code.
func (c *Client) WriteFields(ctx context.Context, r *Record) Code {
	if r.empty() {
		return NoFieldSet
	}
	form := url.Values{"api_key": {c.opts.WriteKey}}
	for i := range r.fields {
		if r.set[i] {
			form.Set("field"+strconv.Itoa(i+1), r.fields[i])
		}
	}
	if !r.CreatedAt.IsZero() {
		form.Set("created_at", r.CreatedAt.UTC().Format(time.RFC3339))
	}
	if r.Status != "" {
		form.Set("status", r.Status)
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return UnexpectedFail
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.hc.Do(req)
	if err != nil {
		return transportCode(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return transportCode(err)
	}
	if resp.StatusCode != http.StatusOK {
		return Code(resp.StatusCode)
	}
	id, err := strconv.ParseInt(strings.TrimSpace(string(body)), 10, 64)
	if err != nil {
		return BadResponse
	}
	if id == 0 {
		return NotInserted
	}
	return OK
}

func transportCode(err error) Code {
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return Timeout
	}
	if errors.Is(err, context.Canceled) {
		return UnexpectedFail
	}
	return ConnectFailed
}
