// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package utils

import (
	"encoding/json"
	"os"
)

// EncodeJSONFile 以缩进格式写 JSON 文件，已存在时覆盖
func EncodeJSONFile(path string, obj interface{}) error {
	body, err := json.MarshalIndent(obj, "", "\t")
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err = f.Write(append(body, '\n')); err != nil {
		return err
	}
	return f.Sync()
}
