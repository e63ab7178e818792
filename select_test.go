// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package ses

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFind(t *testing.T) {
	s := joinPages(t, Pages{
		Configuration: buildConfig(1,
			header(ElementPowerSupply, 2),
			header(ElementDeviceSlot, 4),
		),
		EnclosureStatus:   buildStatus(1, 8),
		ElementDescriptor: buildDescriptors(1, "", "PSU A", "PSU B", "", "Disk 0", "Disk 1", "Disk 2", "Disk 3"),
		AdditionalStatus: buildAES(1,
			sasDevice(0, 0, 20, 0x5000c50000000a00),
			sasDevice(0, 1, 21, 0x5000c50000000a01),
			sasDevice(0, 2, 22, 0x5000c50000000a02),
			sasDevice(0, 3, 23, 0x5000c50000000a03),
		),
	}, quietOptions())

	tests := []struct {
		sel  string
		want []int // EiIOE of the selected rows
	}{
		{"0", []int{1}},
		{"3", []int{5}},
		{"1,2", []int{6}},
		{"1,-1", []int{3}},
		{"dev,0", []int{4}},
		{"ps,0-1", []int{1, 2}},
		{"1,1-3", []int{5, 6, 7}},
		{"dsn=22", []int{6}},
		{"sas=0x5000c50000000a03", []int{7}},
		{"desc=PSU B", []int{2}},
	}

	for _, tt := range tests {
		sel, err := ParseSelector(tt.sel)
		require.NoError(t, err, tt.sel)

		rows, err := s.Find(sel)
		require.NoError(t, err, tt.sel)

		var got []int
		for _, r := range rows {
			got = append(got, r.EiIOE)
		}
		assert.Equal(t, tt.want, got, tt.sel)
	}

	for _, in := range []string{"dsn=99", "desc=nope", "5,0", "sse,0", "1,9"} {
		sel, err := ParseSelector(in)
		require.NoError(t, err, in)

		_, err = s.Find(sel)
		assert.ErrorIs(t, err, ErrNoSuchElement, in)
	}

	for _, in := range []string{"x", "1,a", "1,3-1", "dsn=-1", "sas=zz", "foo=1", "nosuchtype,1"} {
		_, err := ParseSelector(in)
		assert.Error(t, err, in)
	}
}
