package tools

import (
	"context"
	"fmt"
	"strings"
)

// UnitConverterName is the tool name the model calls for unit conversion.
const UnitConverterName = "unitConverter"

// ConvertInput defines input for the unitConverter tool.
type ConvertInput struct {
	Value    float64 `json:"value" jsonschema_description:"The numerical value to convert"`
	FromUnit string  `json:"fromUnit" jsonschema_description:"The unit to convert from (e.g., 'km', 'lb', 'c', 'h')"`
	ToUnit   string  `json:"toUnit" jsonschema_description:"The unit to convert to (e.g., 'mile', 'kg', 'f')"`
}

// ConvertOutput is the success payload for the unitConverter tool.
type ConvertOutput struct {
	Value      float64 `json:"value"`
	FromUnit   string  `json:"fromUnit"`
	ToUnit     string  `json:"toUnit"`
	Result     float64 `json:"result"`
	Expression string  `json:"expression"`
}

// unitCategory groups units that can convert into each other.
type unitCategory string

const (
	categoryLength      unitCategory = "length"
	categoryWeight      unitCategory = "weight"
	categoryVolume      unitCategory = "volume"
	categoryTemperature unitCategory = "temperature"
	categoryTime        unitCategory = "time"
)

// unitFactor converts a unit to its category's base unit by multiplication.
// Temperature is the exception and is handled separately (affine, not linear).
type unitFactor struct {
	toBase float64
	symbol string
}

// conversionTables maps each category to its units. Base units: meters,
// kilograms, liters, seconds. Factors follow the usual reference values
// (1 inch = 0.0254 m, 1 lb = 0.453592 kg, 1 US gallon = 3.78541 l, ...).
var conversionTables = map[unitCategory]map[string]unitFactor{
	categoryLength: {
		"mm":   {0.001, "mm"},
		"cm":   {0.01, "cm"},
		"m":    {1, "m"},
		"km":   {1000, "km"},
		"inch": {0.0254, "in"},
		"foot": {0.3048, "ft"},
		"yard": {0.9144, "yd"},
		"mile": {1609.34, "mi"},
	},
	categoryWeight: {
		"mg":  {0.000001, "mg"},
		"g":   {0.001, "g"},
		"kg":  {1, "kg"},
		"oz":  {0.0283495, "oz"},
		"lb":  {0.453592, "lb"},
		"ton": {1000, "ton"},
	},
	categoryVolume: {
		"ml":        {0.001, "ml"},
		"l":         {1, "l"},
		"gallon-us": {3.78541, "gal (US)"},
		"gallon-uk": {4.54609, "gal (UK)"},
		"cup-us":    {0.236588, "cup (US)"},
		"fl-oz-us":  {0.0295735, "fl oz (US)"},
	},
	categoryTemperature: {
		"c": {1, "°C"},
		"f": {1, "°F"},
		"k": {1, "K"},
	},
	categoryTime: {
		"ms":    {0.001, "ms"},
		"s":     {1, "s"},
		"min":   {60, "min"},
		"h":     {3600, "h"},
		"d":     {86400, "d"},
		"w":     {604800, "w"},
		"month": {2592000, "month"},
		"y":     {31536000, "y"},
	},
}

// NewUnitConverter builds the unitConverter tool.
func NewUnitConverter() *Tool {
	return NewTool(UnitConverterName,
		"Convert between different units of measurement. Supports length (m, km, foot, mile, etc.), "+
			"weight (kg, lb, oz, etc.), volume (l, gallon-us, cup-us, etc.), "+
			"temperature (c, f, k), and time (s, min, h, d, etc.).",
		WithEvents(UnitConverterName, Convert))
}

// Convert performs a single unit conversion.
func Convert(_ context.Context, input ConvertInput) (Result, error) {
	from := normalizeUnit(input.FromUnit)
	to := normalizeUnit(input.ToUnit)

	fromCat, fromOK := categoryOf(from)
	if !fromOK {
		return Failure(ErrTypeUnknownUnit, "unknown unit: %s", input.FromUnit), nil
	}
	toCat, toOK := categoryOf(to)
	if !toOK {
		return Failure(ErrTypeUnknownUnit, "unknown unit: %s", input.ToUnit), nil
	}
	if fromCat != toCat {
		return Failure(ErrTypeCategoryMismatch,
			"cannot convert between different unit types: %s and %s", fromCat, toCat), nil
	}

	var result float64
	if fromCat == categoryTemperature {
		result = convertTemperature(input.Value, from, to)
	} else {
		table := conversionTables[fromCat]
		inBase := input.Value * table[from].toBase
		result = inBase / table[to].toBase
	}

	fromSymbol := conversionTables[fromCat][from].symbol
	toSymbol := conversionTables[toCat][to].symbol

	return Success(ConvertOutput{
		Value:      input.Value,
		FromUnit:   fromSymbol,
		ToUnit:     toSymbol,
		Result:     result,
		Expression: fmt.Sprintf("%v %s = %.6f %s", input.Value, fromSymbol, result, toSymbol),
	}), nil
}

func normalizeUnit(unit string) string {
	return strings.ToLower(strings.TrimSpace(unit))
}

func categoryOf(unit string) (unitCategory, bool) {
	for category, table := range conversionTables {
		if _, ok := table[unit]; ok {
			return category, true
		}
	}
	return "", false
}

// convertTemperature handles the affine temperature scales by pivoting
// through Celsius. Both units are already validated as temperature units.
func convertTemperature(value float64, from, to string) float64 {
	var celsius float64
	switch from {
	case "c":
		celsius = value
	case "f":
		celsius = (value - 32) * 5 / 9
	case "k":
		celsius = value - 273.15
	}

	switch to {
	case "f":
		return celsius*9/5 + 32
	case "k":
		return celsius + 273.15
	default:
		return celsius
	}
}
