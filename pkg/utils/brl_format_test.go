package utils

import "testing"

func TestFormatBRL(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{0, "R$ 0,00"},
		{30.5, "R$ 30,50"},
		{1234.5, "R$ 1.234,50"},
		{1234567.891, "R$ 1.234.567,89"},
		{-0.5, "-R$ 0,50"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := FormatBRL(tt.input); got != tt.expected {
				t.Errorf("FormatBRL(%f) = %s, want %s", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFormatPct(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{1.67, "1,67%"},
		{-2.5, "-2,50%"},
		{0, "0,00%"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := FormatPct(tt.input); got != tt.expected {
				t.Errorf("FormatPct(%f) = %s, want %s", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFormatVolume(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1.000"},
		{45678900, "45.678.900"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := FormatVolume(tt.input); got != tt.expected {
				t.Errorf("FormatVolume(%d) = %s, want %s", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFormatDecimal(t *testing.T) {
	if got := FormatDecimal(0.654, 2); got != "0,65" {
		t.Errorf("FormatDecimal(0.654, 2) = %s, want 0,65", got)
	}
}
