package domain

import (
	"errors"
	"testing"
)

func TestParseSourceType(t *testing.T) {
	cases := []struct {
		in      string
		want    SourceType
		wantErr bool
	}{
		{"upload", SourceUpload, false},
		{"camera", SourceCamera, false},
		{"digital", SourceDigital, false},
		{"", SourceUpload, false},
		{"scanner", "", true},
	}
	for _, tc := range cases {
		got, err := ParseSourceType(tc.in)
		if tc.wantErr {
			if !IsKind(err, ErrInvalidInput) {
				t.Fatalf("%q: expected ErrInvalidInput, got %v", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: unexpected error %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("%q: got %s want %s", tc.in, got, tc.want)
		}
	}
}

func TestClampConfidence(t *testing.T) {
	if got := ClampConfidence(-0.2); got != 0 {
		t.Fatalf("expected negative clamped to 0, got %f", got)
	}
	if got := ClampConfidence(1.7); got != 1 {
		t.Fatalf("expected over-range clamped to 1, got %f", got)
	}
	if got := ClampConfidence(0.42); got != 0.42 {
		t.Fatalf("expected in-range value unchanged, got %f", got)
	}
}

func TestMeanConfidence(t *testing.T) {
	if got := MeanConfidence(nil); got != 0 {
		t.Fatalf("expected 0 for no blocks, got %f", got)
	}
	blocks := []TextBlock{
		{Confidence: 0.5},
		{Confidence: 1.5},
		{Confidence: -0.5},
	}
	if got := MeanConfidence(blocks); got != 0.5 {
		t.Fatalf("expected clamped mean 0.5, got %f", got)
	}
}

func TestWrapErrorKeepsKindAndCause(t *testing.T) {
	cause := errors.New("disk gone")
	err := WrapError(ErrStorage, "persist", cause)
	if !IsKind(err, ErrStorage) {
		t.Fatalf("expected ErrStorage kind")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause preserved")
	}
	if WrapError(ErrStorage, "persist", nil) != nil {
		t.Fatalf("expected nil passthrough for nil cause")
	}
}
