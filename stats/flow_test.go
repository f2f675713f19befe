// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlow(t *testing.T) {
	total := NewFlow()
	sub1 := NewChildFlow(total)
	sub2 := NewChildFlow(total)

	sub1.AddIn(100)
	sub1.AddOut(460800)
	sub2.AddIn(200)
	sub2.AddTryAgain()
	sub2.AddDropped()

	s1 := sub1.GetSample()
	assert.Equal(t, int64(100), s1.InBytes)
	assert.Equal(t, int64(1), s1.InPictures)
	assert.Equal(t, int64(1), s1.OutFrames)

	ts := total.GetSample()
	assert.Equal(t, int64(300), ts.InBytes)
	assert.Equal(t, int64(2), ts.InPictures)
	assert.Equal(t, int64(460800), ts.OutBytes)
	assert.Equal(t, int64(1), ts.TryAgain)
	assert.Equal(t, int64(1), ts.Dropped)

	var sum FlowSample
	sum.Add(s1)
	sum.Add(sub2.GetSample())
	assert.Equal(t, ts, sum)
}

func TestCounter(t *testing.T) {
	c := NewCounter()
	assert.Equal(t, int64(1), c.Add())
	assert.Equal(t, int64(2), c.Add())
	assert.Equal(t, int64(1), c.Release())
	assert.Equal(t, CounterSample{Total: 2, Active: 1}, c.GetSample())
}
