package tools_test

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/agentdeck/agentdeck/internal/tools"
)

func convert(t *testing.T, value float64, from, to string) tools.Result {
	t.Helper()
	result, err := tools.Convert(context.Background(), tools.ConvertInput{
		Value:    value,
		FromUnit: from,
		ToUnit:   to,
	})
	if err != nil {
		t.Fatalf("Convert(%v, %q, %q) unexpected error: %v", value, from, to, err)
	}
	return result
}

func TestConvert(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value float64
		from  string
		to    string
		want  float64
	}{
		{name: "km to mile", value: 10, from: "km", to: "mile", want: 10000 / 1609.34},
		{name: "inch to cm", value: 1, from: "inch", to: "cm", want: 2.54},
		{name: "lb to kg", value: 10, from: "lb", to: "kg", want: 4.53592},
		{name: "kg to oz", value: 1, from: "kg", to: "oz", want: 1 / 0.0283495},
		{name: "gallon-us to l", value: 2, from: "gallon-us", to: "l", want: 7.57082},
		{name: "cup-us to ml", value: 1, from: "cup-us", to: "ml", want: 236.588},
		{name: "h to min", value: 1.5, from: "h", to: "min", want: 90},
		{name: "w to d", value: 2, from: "w", to: "d", want: 14},
		{name: "same unit", value: 42, from: "m", to: "m", want: 42},
		{name: "case insensitive", value: 1, from: "KM", to: "M", want: 1000},
		{name: "celsius to fahrenheit", value: 100, from: "c", to: "f", want: 212},
		{name: "fahrenheit to celsius", value: 32, from: "f", to: "c", want: 0},
		{name: "kelvin to celsius", value: 273.15, from: "k", to: "c", want: 0},
		{name: "fahrenheit to kelvin", value: 32, from: "f", to: "k", want: 273.15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := convert(t, tt.value, tt.from, tt.to)
			if result.Status != tools.StatusSuccess {
				t.Fatalf("status = %q (error: %v), want success", result.Status, result.Error)
			}
			out, ok := result.Data.(tools.ConvertOutput)
			if !ok {
				t.Fatalf("data type = %T, want ConvertOutput", result.Data)
			}
			if math.Abs(out.Result-tt.want) > 1e-6 {
				t.Errorf("result = %v, want %v", out.Result, tt.want)
			}
			if out.Expression == "" {
				t.Error("expression summary is empty")
			}
		})
	}
}

func TestConvertFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		from        string
		to          string
		wantType    string
		wantMention string
	}{
		{
			name:        "unknown from unit names the from side",
			from:        "furlong",
			to:          "m",
			wantType:    tools.ErrTypeUnknownUnit,
			wantMention: "furlong",
		},
		{
			name:        "unknown to unit names the to side",
			from:        "m",
			to:          "parsec",
			wantType:    tools.ErrTypeUnknownUnit,
			wantMention: "parsec",
		},
		{
			name:        "cross category",
			from:        "kg",
			to:          "m",
			wantType:    tools.ErrTypeCategoryMismatch,
			wantMention: "weight",
		},
		{
			name:        "temperature to time",
			from:        "c",
			to:          "s",
			wantType:    tools.ErrTypeCategoryMismatch,
			wantMention: "temperature",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := convert(t, 1, tt.from, tt.to)
			if result.Status != tools.StatusError {
				t.Fatalf("status = %q, want error (data: %v)", result.Status, result.Data)
			}
			if result.Error == nil {
				t.Fatal("error payload missing")
			}
			if result.Error.ErrorType != tt.wantType {
				t.Errorf("error type = %q, want %q", result.Error.ErrorType, tt.wantType)
			}
			if !strings.Contains(result.Error.Message, tt.wantMention) {
				t.Errorf("error message %q does not mention %q", result.Error.Message, tt.wantMention)
			}
		})
	}
}

// TestConvertRoundTrip converts a value out and back for every ordered
// unit pair within each category and requires the result to land on the
// original within floating-point tolerance.
func TestConvertRoundTrip(t *testing.T) {
	t.Parallel()

	categories := map[string][]string{
		"length":      {"mm", "cm", "m", "km", "inch", "foot", "yard", "mile"},
		"weight":      {"mg", "g", "kg", "oz", "lb", "ton"},
		"volume":      {"ml", "l", "gallon-us", "gallon-uk", "cup-us", "fl-oz-us"},
		"temperature": {"c", "f", "k"},
		"time":        {"ms", "s", "min", "h", "d", "w", "month", "y"},
	}
	values := []float64{0.5, 1, 42, 1234.5678}

	for name, units := range categories {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			for _, from := range units {
				for _, to := range units {
					if from == to {
						continue
					}
					for _, value := range values {
						forward := convert(t, value, from, to)
						if forward.Status != tools.StatusSuccess {
							t.Fatalf("%v %s -> %s: status = %q (error: %v)",
								value, from, to, forward.Status, forward.Error)
						}
						out, ok := forward.Data.(tools.ConvertOutput)
						if !ok {
							t.Fatalf("data type = %T, want ConvertOutput", forward.Data)
						}

						back := convert(t, out.Result, to, from)
						if back.Status != tools.StatusSuccess {
							t.Fatalf("%v %s -> %s: status = %q (error: %v)",
								out.Result, to, from, back.Status, back.Error)
						}
						got := back.Data.(tools.ConvertOutput).Result

						// Relative tolerance, with an absolute floor for
						// values near zero (temperatures cross zero).
						tolerance := 1e-9 * math.Max(math.Abs(value), 1)
						if math.Abs(got-value) > tolerance {
							t.Errorf("%v %s -> %s -> back = %v, want %v",
								value, from, to, got, value)
						}
					}
				}
			}
		})
	}
}
