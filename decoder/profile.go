// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package decoder

import (
	"fmt"
	"strings"
)

// Profile 编码 profile，取值与 VAProfile 一致
type Profile int

// 支持或可探测的 profile
const (
	ProfileNone                    Profile = -1
	ProfileMPEG2Main               Profile = 1
	ProfileMPEG4AdvancedSimple     Profile = 3
	ProfileH264Main                Profile = 6
	ProfileH264High                Profile = 7
	ProfileH264ConstrainedBaseline Profile = 13
	ProfileVP8Version0_3           Profile = 14
	ProfileHEVCMain                Profile = 17
	ProfileHEVCMain10              Profile = 18
	ProfileVP9Profile0             Profile = 19
	ProfileVP9Profile2             Profile = 21
	ProfileAV1Profile0             Profile = 32
)

var profileNames = map[Profile]string{
	ProfileNone:                    "None",
	ProfileMPEG2Main:               "MPEG2Main",
	ProfileMPEG4AdvancedSimple:     "MPEG4AdvancedSimple",
	ProfileH264Main:                "H264Main",
	ProfileH264High:                "H264High",
	ProfileH264ConstrainedBaseline: "H264ConstrainedBaseline",
	ProfileVP8Version0_3:           "VP8Version0_3",
	ProfileHEVCMain:                "HEVCMain",
	ProfileHEVCMain10:              "HEVCMain10",
	ProfileVP9Profile0:             "VP9Profile0",
	ProfileVP9Profile2:             "VP9Profile2",
	ProfileAV1Profile0:             "AV1Profile0",
}

func (p Profile) String() string {
	if name, ok := profileNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Profile(%d)", int(p))
}

// HighBitDepth 是否为 10 位输出的 profile
func (p Profile) HighBitDepth() bool {
	return p == ProfileHEVCMain10 || p == ProfileVP9Profile2 || p == ProfileAV1Profile0
}

// MarshalText .
func (p Profile) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText .
func (p *Profile) UnmarshalText(text []byte) error {
	v, err := ParseProfile(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ParseProfile 按名称解析 profile，忽略大小写
func ParseProfile(s string) (Profile, error) {
	for p, name := range profileNames {
		if strings.EqualFold(name, s) {
			return p, nil
		}
	}
	return ProfileNone, fmt.Errorf("%w: %q", ErrUnsupportedProfile, s)
}
