// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"crypto/tls"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// TLSConfig 状态服务的 https 侦听配置.
type TLSConfig struct {
	ListenAddr  string `json:"listen"`
	Certificate string `json:"cert"`
	PrivateKey  string `json:"key"`
}

// Load 加载证书；证书或私钥可以是文件路径，也可以是 PEM 文本
func (c *TLSConfig) Load() (*tls.Config, error) {
	if c.PrivateKey == "" || c.Certificate == "" {
		return nil, errors.New("no certificate or private key configured")
	}

	cert, err := pemFile(c.Certificate, Name+".crt")
	if err != nil {
		return nil, err
	}
	key, err := pemFile(c.PrivateKey, Name+".key")
	if err != nil {
		return nil, err
	}

	cer, err := tls.LoadX509KeyPair(cert, key)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cer},
	}, nil
}

// pemFile PEM 文本写入 name 后返回其绝对路径
func pemFile(v, name string) (string, error) {
	if strings.HasPrefix(v, "---") {
		if err := os.WriteFile(name, []byte(v), 0600); err != nil {
			return "", err
		}
		v = name
	}
	return filepath.Abs(v)
}
