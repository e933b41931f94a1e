package form

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/priceoptima/internal/model"
	"github.com/sells-group/priceoptima/pkg/optima"
)

// Messages shown next to a field that failed validation.
const (
	MsgPrice      = "Enter a valid price (> 0)"
	MsgStockLevel = "Stock level cannot be negative"
	MsgDayOfWeek  = "Day must be between 0 and 6"
	MsgIsWeekend  = "Enter 1 (Yes) or 0 (No)"
	MsgMonth      = "Month must be between 1 and 12"
)

// Validate checks every field and returns one message per failing field.
// An empty result means the values can be submitted.
//
// Numbers are parsed strictly: empty, non-numeric, NaN and infinite text
// fails every bound rather than being read as zero.
func Validate(values model.Values) model.Errors {
	errs := make(model.Errors)

	if p, ok := parseNumber(values[model.FieldPrice]); !ok || p <= 0 {
		errs[model.FieldPrice] = MsgPrice
	}

	if n, ok := parseWhole(values[model.FieldStockLevel]); !ok || n < 0 {
		errs[model.FieldStockLevel] = MsgStockLevel
	}

	if d, ok := parseWhole(values[model.FieldDayOfWeek]); !ok || d < 0 || d > 6 {
		errs[model.FieldDayOfWeek] = MsgDayOfWeek
	}

	// Literal comparison: " 1", "true" and "01" are all rejected.
	if w := values[model.FieldIsWeekend]; w != "0" && w != "1" {
		errs[model.FieldIsWeekend] = MsgIsWeekend
	}

	if m, ok := parseWhole(values[model.FieldMonth]); !ok || m < 1 || m > 12 {
		errs[model.FieldMonth] = MsgMonth
	}

	return errs
}

// Payload coerces validated values into the request body.
func Payload(values model.Values) (optima.PriceRequest, error) {
	if errs := Validate(values); len(errs) > 0 {
		return optima.PriceRequest{}, eris.Errorf("form: %d invalid field(s)", len(errs))
	}

	price, _ := parseNumber(values[model.FieldPrice])
	stock, _ := parseWhole(values[model.FieldStockLevel])
	day, _ := parseWhole(values[model.FieldDayOfWeek])
	month, _ := parseWhole(values[model.FieldMonth])

	weekend := 0
	if values[model.FieldIsWeekend] == "1" {
		weekend = 1
	}

	return optima.PriceRequest{
		Price:      price,
		StockLevel: int64(stock),
		DayOfWeek:  int(day),
		IsWeekend:  weekend,
		Month:      int(month),
	}, nil
}

func parseNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parseWhole accepts "12" and "12.0" but not "12.5".
func parseWhole(raw string) (float64, bool) {
	f, ok := parseNumber(raw)
	if !ok || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return f, true
}
