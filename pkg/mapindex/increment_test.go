package mapindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIncrementBytes(t *testing.T) {
	cases := []struct {
		name     string
		input    []byte
		expected []byte
		ok       bool
	}{
		{"simple increment", []byte{0x05, 0x00}, []byte{0x06, 0x00}, true},
		{"last byte untouched", []byte{0x05, 0x42}, []byte{0x06, 0x42}, true},
		{"carry over one byte", []byte{0x05, 0x7f, 0x00}, []byte{0x06, 0x00, 0x00}, true},
		{"carry over several bytes", []byte{0x05, 0x7f, 0x7f, 0x00}, []byte{0x06, 0x00, 0x00, 0x00}, true},
		{"boundary below threshold", []byte{0x7e, 0x00}, []byte{0x7f, 0x00}, true},
		{"overflow single position", []byte{0x7f, 0x00}, []byte{0x00, 0x00}, false},
		{"overflow all positions", []byte{0x80, 0x90, 0x00}, []byte{0x00, 0x00, 0x00}, false},
		{"high bytes reset on the way", []byte{0x10, 0xff, 0x80, 0x00}, []byte{0x11, 0x00, 0x00, 0x00}, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			buf := append([]byte{}, c.input...)
			ok := incrementBytes(buf)
			assert.Equal(t, c.ok, ok)
			assert.Equal(t, c.expected, buf)
		})
	}
}

func TestIncrementBytesTooShort(t *testing.T) {
	assert.False(t, incrementBytes(nil))
	assert.False(t, incrementBytes([]byte{}))
	assert.False(t, incrementBytes([]byte{0x05}))
}
