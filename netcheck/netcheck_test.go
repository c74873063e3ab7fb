// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package netcheck

import (
	"net"
	"testing"
)

func ipNet(s string) net.Addr {
	ip, n, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	n.IP = ip
	return n
}

func TestUsable(t *testing.T) {
	for _, line := range []struct {
		name  string
		flags net.Flags
		addrs []net.Addr
		want  bool
	}{
		{"up with address", net.FlagUp, []net.Addr{ipNet("192.168.1.20/24")}, true},
		{"up with ipv6", net.FlagUp, []net.Addr{ipNet("fe80::1/64"), ipNet("2001:db8::2/64")}, true},
		{"link local only", net.FlagUp, []net.Addr{ipNet("fe80::1/64"), ipNet("169.254.3.4/16")}, false},
		{"down", 0, []net.Addr{ipNet("192.168.1.20/24")}, false},
		{"loopback", net.FlagUp | net.FlagLoopback, []net.Addr{ipNet("127.0.0.1/8")}, false},
		{"no address", net.FlagUp, nil, false},
		{"ip addr", net.FlagUp, []net.Addr{&net.IPAddr{IP: net.ParseIP("10.0.0.1")}}, true},
	} {
		if got := usable(line.flags, line.addrs); got != line.want {
			t.Errorf("%s: usable() = %t", line.name, got)
		}
	}
}

func TestConnected_unknown(t *testing.T) {
	i := &Interface{Name: "does-not-exist0"}
	if i.Connected() {
		t.Fatal("unknown interface reported connected")
	}
	if s := i.String(); s != "netcheck{does-not-exist0}" {
		t.Fatal(s)
	}
	if s := (&Interface{}).String(); s != "netcheck{any}" {
		t.Fatal(s)
	}
}
