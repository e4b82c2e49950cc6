package serialmux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func TestPortOptions_NormalizeDefaults(t *testing.T) {
	got, err := PortOptions{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, PortOptions{BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: "N"}, got)
}

func TestPortOptions_NormalizeErrors(t *testing.T) {
	tests := []struct {
		name string
		opts PortOptions
	}{
		{"negative baud", PortOptions{BaudRate: -1}},
		{"data bits too small", PortOptions{DataBits: 4}},
		{"data bits too large", PortOptions{DataBits: 9}},
		{"stop bits", PortOptions{StopBits: 3}},
		{"parity", PortOptions{Parity: "mark"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.opts.Normalize()
			assert.Error(t, err)
		})
	}
}

func TestPortOptions_ParityAliases(t *testing.T) {
	for in, want := range map[string]string{"none": "N", " even ": "E", "odd": "O", "e": "E"} {
		got, err := PortOptions{Parity: in}.Normalize()
		require.NoError(t, err, in)
		assert.Equal(t, want, got.Parity, in)
	}
}

func TestPortOptions_Equal(t *testing.T) {
	assert.True(t, PortOptions{}.Equal(PortOptions{BaudRate: 9600, Parity: "none"}))
	assert.False(t, PortOptions{}.Equal(PortOptions{BaudRate: 115200}))
	assert.False(t, PortOptions{Parity: "x"}.Equal(PortOptions{Parity: "x"}))
}

func TestPortOptions_String(t *testing.T) {
	assert.Equal(t, "9600 8N1", PortOptions{}.String())
	assert.Equal(t, "115200 7E2", PortOptions{BaudRate: 115200, DataBits: 7, StopBits: 2, Parity: "even"}.String())
}

func TestPortOptions_SerialMode(t *testing.T) {
	mode, err := PortOptions{BaudRate: 19200, StopBits: 2, Parity: "O"}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, &serial.Mode{BaudRate: 19200, DataBits: 8, StopBits: serial.TwoStopBits, Parity: serial.OddParity}, mode)

	_, err = PortOptions{DataBits: 12}.SerialMode()
	assert.Error(t, err)
}
