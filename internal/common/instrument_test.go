package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseInstrument(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		code     string
		exchange string
	}{
		{name: "shanghai qualified", input: "510050.SH", code: "510050", exchange: "SH"},
		{name: "shenzhen qualified", input: "159915.SZ", code: "159915", exchange: "SZ"},
		{name: "beijing qualified", input: "830799.BJ", code: "830799", exchange: "BJ"},
		{name: "lowercase suffix", input: "510050.sh", code: "510050", exchange: "SH"},
		{name: "bare code", input: "510050", code: "510050", exchange: ""},
		{name: "unknown suffix kept in code", input: "510050.XX", code: "510050.XX", exchange: ""},
		{name: "surrounding whitespace", input: " 510050.SH ", code: "510050", exchange: "SH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseInstrument(tt.input)
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, tt.exchange, got.Exchange)
		})
	}
}

func TestInstrumentString(t *testing.T) {
	assert.Equal(t, "510050.SH", ParseInstrument("510050.SH").String())
	assert.Equal(t, "510050", ParseInstrument("510050").String())
}

func TestParseInstrumentsDropsEmpty(t *testing.T) {
	got := ParseInstruments([]string{"510050.SH", "", "  ", "159915.SZ"})
	assert.Len(t, got, 2)
	assert.Equal(t, "510050", got[0].Code)
	assert.Equal(t, "159915", got[1].Code)
}
