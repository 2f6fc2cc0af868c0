// Copyright The Statline Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package emf

import (
	"math"
	"testing"

	"encoding/json"

	"github.com/stretchr/testify/require"
)

func TestAppendJSONString(t *testing.T) {
	cases := []string{
		"",
		"plain",
		`with "quotes"`,
		`back\slash`,
		"line\nbreak\r\ttab",
		"ctrl\x01\x1f",
		"unicode éøβ日本語",
		"emoji \U0001F680",
	}
	for _, s := range cases {
		b := appendJSONString(nil, s)
		var back string
		require.NoError(t, json.Unmarshal(b, &back), "encoded: %s", b)
		require.Equal(t, s, back)
	}
}

func TestAppendFloat(t *testing.T) {
	require.Equal(t, "42", string(appendFloat(nil, 42)))
	require.Equal(t, "0.5", string(appendFloat(nil, 0.5)))

	var f float64
	require.NoError(t, json.Unmarshal(appendFloat(nil, math.Inf(1)), &f))
	require.Equal(t, math.MaxFloat64, f)
	require.NoError(t, json.Unmarshal(appendFloat(nil, math.Inf(-1)), &f))
	require.Equal(t, -math.MaxFloat64, f)
}
