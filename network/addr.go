// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package network

import (
	"fmt"
	"net"
	"strconv"

	"github.com/emitter-io/address"
)

// ParseListen 解析侦听地址，缺省端口取 defaultPort
func ParseListen(addr string, defaultPort int) (*net.TCPAddr, error) {
	return address.Parse(addr, defaultPort)
}

// Advertised 对外可访问的地址；侦听地址未指定 IP 时列出本机非回环 IPv4 地址
func Advertised(addr *net.TCPAddr) []string {
	port := strconv.Itoa(addr.Port)
	if addr.IP != nil && !addr.IP.IsUnspecified() {
		return []string{net.JoinHostPort(addr.IP.String(), port)}
	}

	var list []string
	for _, ip := range localIPs() {
		list = append(list, net.JoinHostPort(ip, port))
	}
	if len(list) == 0 {
		list = append(list, net.JoinHostPort("127.0.0.1", port))
	}
	return list
}

// localIPs 获取本地IP
func localIPs() []string {
	addrs, _ := net.InterfaceAddrs()
	ips := []string{}
	for _, a := range addrs {
		// 检查ip地址判断是否回环地址
		if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil {
				ips = append(ips, ipnet.IP.String())
			}
		}
	}
	return ips
}

// RemoteIP 从 host:port 形式的远端地址中提取 IP
func RemoteIP(remoteAddr string) net.IP {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	return net.ParseIP(host)
}

// IsLocalhostIP 判断是否为本机IP
func IsLocalhostIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, localhost := range loopbackBlocks {
		if localhost.Contains(ip) {
			return true
		}
	}
	privs, err := address.GetPrivate()
	if err != nil {
		return false
	}

	for _, priv := range privs {
		if priv.IP.Equal(ip) {
			return true
		}
	}

	return false
}

var loopbackBlocks = []*net.IPNet{
	parseCIDR("0.0.0.0/8"),   // RFC 1918 IPv4 loopback address
	parseCIDR("127.0.0.0/8"), // RFC 1122 IPv4 loopback address
	parseCIDR("::1/128"),     // RFC 1884 IPv6 loopback address
}

func parseCIDR(s string) *net.IPNet {
	_, block, err := net.ParseCIDR(s)
	if err != nil {
		panic(fmt.Sprintf("Bad CIDR %s: %s", s, err))
	}
	return block
}
