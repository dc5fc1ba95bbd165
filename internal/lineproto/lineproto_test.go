package lineproto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeValue(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"22.5", "22.5"},
		{"-3", "-3"},
		{"1e3", "1e3"},
		{" 7 ", "7"},
		{"OK", `"OK"`},
		{"NaN", `"NaN"`},
		{"Inf", `"Inf"`},
		{"0x1p-2", `"0x1p-2"`},
		{`say "hi"`, `"say \"hi\""`},
		{`C:\temp`, `"C:\\temp"`},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			require.Equal(t, tc.want, EncodeValue(tc.raw))
		})
	}
}

func TestEscapeKey(t *testing.T) {
	require.Equal(t, `Temp\ C`, EscapeKey("Temp C"))
	require.Equal(t, `a\,b\=c`, EscapeKey("a,b=c"))
	require.Equal(t, "TempC", EscapeKey("TempC"))
}

func TestEscapeMeasurement(t *testing.T) {
	require.Equal(t, `lab\ env\,1`, EscapeMeasurement("lab env,1"))
	require.Equal(t, "a=b", EscapeMeasurement("a=b"))
}

func TestLine(t *testing.T) {
	fields := []Field{NewField("TempC", "22.5"), NewField("Humidity", "OK")}
	require.Equal(t, `env TempC=22.5,Humidity="OK" 1717243200`, Line("env", fields, 1717243200))
	require.Empty(t, Line("env", nil, 1))
}

func TestJoin(t *testing.T) {
	require.Equal(t, "a 1\nb 2", Join([]string{"a 1", "b 2"}))
}
