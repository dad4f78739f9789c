// Package moneypkg provides common money amount related functionality for apps.
package moneypkg

import (
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits stored for every amount.
const Scale = 4

// IsPositive returns true if the amount is greater than zero and fits the stored scale.
func IsPositive(amount decimal.Decimal) bool {
	return amount.IsPositive() && fitsScale(amount)
}

// IsValidBalance returns true if the amount is zero or positive and fits the stored scale.
func IsValidBalance(amount decimal.Decimal) bool {
	return !amount.IsNegative() && fitsScale(amount)
}

func fitsScale(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(Scale))
}

// DecimalValue lets the validator see decimal.Decimal fields as their string form.
func DecimalValue(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		return d.String()
	}

	return nil
}

// ValidAmount validates whether the field holds a non negative amount.
var ValidAmount validator.Func = func(fl validator.FieldLevel) bool {
	d, ok := parse(fl)
	return ok && IsValidBalance(d)
}

// ValidPositiveAmount validates whether the field holds a positive amount.
var ValidPositiveAmount validator.Func = func(fl validator.FieldLevel) bool {
	d, ok := parse(fl)
	return ok && IsPositive(d)
}

func parse(fl validator.FieldLevel) (decimal.Decimal, bool) {
	s, ok := fl.Field().Interface().(string)
	if !ok {
		return decimal.Decimal{}, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}

	return d, true
}

// Register adds the amount validators to v.
func Register(v *validator.Validate) error {
	v.RegisterCustomTypeFunc(DecimalValue, decimal.Decimal{})

	if err := v.RegisterValidation("amount", ValidAmount); err != nil {
		return err
	}

	return v.RegisterValidation("positive_amount", ValidPositiveAmount)
}
