package utils

import "testing"

func TestNormalizeTicker(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"petr4", "PETR4"},
		{"  vale3  ", "VALE3"},
		{"$ITUB4", "ITUB4"},
		{"PETR4.SA", "PETR4.SA"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeTicker(tt.input); got != tt.expected {
				t.Errorf("NormalizeTicker(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLooksLikeTicker(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"PETR4", true},
		{"petr4.sa", true},
		{"BRK-B", true},
		{"Petrobras", true},
		{"Banco do Brasil", false},
		{"Itaú", false},
		{"", false},
		{"ABCDEFGHIJK", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := LooksLikeTicker(tt.input); got != tt.expected {
				t.Errorf("LooksLikeTicker(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestToYahooTicker(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"PETR4", "PETR4.SA"},
		{"petr4", "PETR4.SA"},
		{"PETR4.SA", "PETR4.SA"},
		{"TAEE11", "TAEE11.SA"},
		{"PETROBRAS", "PETROBRAS"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ToYahooTicker(tt.input); got != tt.expected {
				t.Errorf("ToYahooTicker(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
