// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package netcheck reports whether the host has network connectivity.
package netcheck

import (
	"fmt"
	"net"
)

// Interface checks a network interface of the host.
type Interface struct {
	// Name of the interface; empty checks every interface.
	Name string
}

// Connected returns true when the interface is up and has a non loopback
// unicast address.
func (i *Interface) Connected() bool {
	ifaces, err := i.interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		if usable(iface.Flags, addrs) {
			return true
		}
	}
	return false
}

func (i *Interface) String() string {
	if i.Name == "" {
		return "netcheck{any}"
	}
	return fmt.Sprintf("netcheck{%s}", i.Name)
}

func (i *Interface) interfaces() ([]net.Interface, error) {
	if i.Name == "" {
		return net.Interfaces()
	}
	iface, err := net.InterfaceByName(i.Name)
	if err != nil {
		return nil, err
	}
	return []net.Interface{*iface}, nil
}

func usable(flags net.Flags, addrs []net.Addr) bool {
	if flags&net.FlagUp == 0 || flags&net.FlagLoopback != 0 {
		return false
	}
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip != nil && ip.IsGlobalUnicast() {
			return true
		}
	}
	return false
}
