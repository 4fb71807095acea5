package errors

import (
	"math"
	"testing"
)

func TestValidateOutputStem(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "board", false},
		{"valid nested", "output/pcb_model", false},
		{"valid absolute", "/tmp/out/board", false},

		{"empty", "", true},
		{"too long", string(make([]byte, 2000)), true},
		{"null byte", "foo\x00bar", true},
		{"control char", "foo\x01bar", true},
		{"newline", "foo\nbar", true},
		{"directory", "output/", true},
		{"dot", ".", true},
		{"dotdot", "out/..", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutputStem(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateOutputStem(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateUploadName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid kicad", "board-F_Cu.gbr", false},
		{"valid protel", "board.GTL", false},

		{"empty", "", true},
		{"with path /", "path/to/file.gbr", true},
		{"with path \\", "path\\to\\file.gbr", true},
		{"traversal", "..gbr", true},
		{"control", "a\tb.gbr", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUploadName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUploadName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateThickness(t *testing.T) {
	tests := []struct {
		in      float64
		wantErr bool
	}{
		{1.6, false},
		{0.2, false},
		{0, true},
		{-1, true},
		{math.NaN(), true},
		{math.Inf(1), true},
	}

	for _, tt := range tests {
		if err := ValidateThickness(tt.in); (err != nil) != tt.wantErr {
			t.Errorf("ValidateThickness(%v) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
	}
}
