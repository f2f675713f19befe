// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package network

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseListen(t *testing.T) {
	addr, err := ParseListen(":9000", 8554)
	require.NoError(t, err)
	assert.Equal(t, 9000, addr.Port)

	assert.Equal(t, []string{"127.0.0.1:8554"},
		Advertised(&net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 8554}))
}

func TestAdvertised_Unspecified(t *testing.T) {
	list := Advertised(&net.TCPAddr{Port: 8554})
	require.NotEmpty(t, list)
	for _, a := range list {
		_, port, err := net.SplitHostPort(a)
		require.NoError(t, err)
		assert.Equal(t, "8554", port)
	}
}

func TestIsLocalhostIP(t *testing.T) {
	tests := []struct {
		remote string
		want   bool
	}{
		{"127.0.0.1:5000", true},
		{"[::1]:5000", true},
		{"127.0.0.1", true},
		{"8.8.8.8:53", false},
		{"not-an-ip", false},
	}
	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			assert.Equal(t, tt.want, IsLocalhostIP(RemoteIP(tt.remote)))
		})
	}
}
