// Copyright 2025 The go-perfmeasure Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package measure

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatCount(t *testing.T) {
	tests := []struct {
		name  string
		v     Count
		label string
		tp    Throughput
		want  FormattedReading
	}{
		{"bare", 1000, "events", Throughput{}, FormattedReading{1000, "events"}},
		{"per byte", 1000, "events", PerByte(100), FormattedReading{10, "events/byte"}},
		{"per element", 1000, "cache-misses", PerElement(4), FormattedReading{250, "cache-misses/element"}},
		{"fractional", 1, "instructions", PerByte(8), FormattedReading{0.125, "instructions/byte"}},
		{"zero basis ignored", 1000, "events", PerByte(0), FormattedReading{1000, "events"}},
		{"zero count", 0, "events", PerElement(10), FormattedReading{0, "events/element"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatCount(tt.v, tt.label, tt.tp))
		})
	}
}

func TestFormattedReadingString(t *testing.T) {
	assert.Equal(t, "10.0000 events/byte", FormattedReading{10, "events/byte"}.String())
	assert.Equal(t, "0.1250 instructions", FormattedReading{0.125, "instructions"}.String())
}
