// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRangeInt(t *testing.T) {
	assert.Equal(t, []int{0, 1, 2, 3}, RangeInt(4))
	assert.Empty(t, RangeInt(0))
}

func TestCheckPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		defer CheckPanic()
		panic("boom")
	})
}

func TestParse(t *testing.T) {
	f, err := ParseFloat[float64](" 4.5")
	assert.NoError(t, err)
	assert.Equal(t, 4.5, f)
	_, err = ParseFloat[float64]("four")
	assert.Error(t, err)

	i, err := ParseInt[int64]("42 ")
	assert.NoError(t, err)
	assert.Equal(t, int64(42), i)
	_, err = ParseInt[int32]("4.2")
	assert.Error(t, err)

	assert.Equal(t, "-7", FormatInt(int64(-7)))
}
