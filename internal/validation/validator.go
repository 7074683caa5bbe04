package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/V4T54L/barber-pos/internal/domain"
)

// Field rules live in the `validate` tags of the domain types. This package
// registers the shop-specific tags and turns the first failure into a
// *domain.ValidationError named by the JSON path of the field.

// Kenyan mobile numbers: optional +254 or 0 prefix, then 7xx or 1xx.
var phonePattern = regexp.MustCompile(`^(?:\+254|0)?[17]\d{8}$`)

func isKenyanPhone(phone string) bool {
	return phonePattern.MatchString(strings.ReplaceAll(phone, " ", ""))
}

// engine is built once; a validator.Validate caches struct metadata and is
// safe for concurrent use.
var engine = sync.OnceValue(newEngine)

func newEngine() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})

	mustRegister(v, "notblank", validators.NotBlank)
	mustRegister(v, "kephone", func(fl validator.FieldLevel) bool {
		return isKenyanPhone(fl.Field().String())
	})
	mustRegister(v, "role", func(fl validator.FieldLevel) bool {
		return domain.Role(fl.Field().String()).Valid()
	})
	mustRegister(v, "payment_method", func(fl validator.FieldLevel) bool {
		return domain.PaymentMethod(fl.Field().String()).Valid()
	})
	mustRegister(v, "tx_status", func(fl validator.FieldLevel) bool {
		return domain.TransactionStatus(fl.Field().String()).Valid()
	})
	mustRegister(v, "appt_status", func(fl validator.FieldLevel) bool {
		return domain.AppointmentStatus(fl.Field().String()).Valid()
	})
	mustRegister(v, "business_status", func(fl validator.FieldLevel) bool {
		return domain.BusinessStatus(fl.Field().String()).Valid()
	})

	v.RegisterStructValidation(cartItemRules, domain.CartItem{})
	v.RegisterStructValidation(transactionRules, domain.Transaction{})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: register %s: %v", tag, err))
	}
}

// cartItemRules checks the commission splits of one line as a whole.
func cartItemRules(sl validator.StructLevel) {
	item := sl.Current().Interface().(domain.CartItem)
	var total float64
	for _, split := range item.CommissionSplits {
		if split.Percentage < 0 || split.Percentage > 100 {
			sl.ReportError(item.CommissionSplits, "commissionSplits", "CommissionSplits", "splits", "percentage must be between 0 and 100")
			return
		}
		total += split.Percentage
	}
	if total > 100.0001 {
		sl.ReportError(item.CommissionSplits, "commissionSplits", "CommissionSplits", "splits", "percentages add up to more than 100")
	}
}

// transactionRules checks the M-Pesa number only for M-Pesa sales.
func transactionRules(sl validator.StructLevel) {
	t := sl.Current().Interface().(domain.Transaction)
	if t.PaymentMethod == domain.PaymentMpesa && t.MpesaPhoneNumber != "" && !isKenyanPhone(t.MpesaPhoneNumber) {
		sl.ReportError(t.MpesaPhoneNumber, "mpesaPhoneNumber", "MpesaPhoneNumber", "kephone", "")
	}
}

// Validator checks payloads before they reach a store.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{v: engine()}
}

func (v *Validator) check(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validation could not run: %w", err)
	}
	fe := fieldErrs[0]
	return &domain.ValidationError{Field: fieldPath(fe), Reason: reason(fe)}
}

// fieldPath drops the root type from the namespace:
// "Transaction.items[1].type" becomes "items[1].type".
func fieldPath(fe validator.FieldError) string {
	if _, rest, ok := strings.Cut(fe.Namespace(), "."); ok {
		return rest
	}
	return fe.Field()
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("exceeds %s entries", fe.Param())
		}
		return fmt.Sprintf("exceeds %s characters", fe.Param())
	case "gte", "min":
		if fe.Param() == "0" {
			return "cannot be negative"
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("%q is not one of %s", fe.Value(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "kephone":
		return "must be a valid Kenyan phone number"
	case "role":
		return fmt.Sprintf("%q is not a known role", fe.Value())
	case "payment_method":
		return fmt.Sprintf("%q is not one of Cash, M-Pesa, Card, Split", fe.Value())
	case "tx_status":
		return fmt.Sprintf("%q is not one of Pending, Completed, Failed, Refunded", fe.Value())
	case "appt_status":
		return fmt.Sprintf("%q is not a known appointment status", fe.Value())
	case "business_status":
		return "must be active or suspended"
	case "splits":
		return fe.Param()
	}
	return fmt.Sprintf("failed the %s rule", fe.Tag())
}

// ValidatePhone accepts an empty phone; otherwise it must be a Kenyan mobile number.
func (v *Validator) ValidatePhone(field, phone string) error {
	if err := v.v.Var(phone, "omitempty,kephone"); err != nil {
		return &domain.ValidationError{Field: field, Reason: "must be a valid Kenyan phone number"}
	}
	return nil
}

// ValidateTransaction checks a sale before it is recorded.
func (v *Validator) ValidateTransaction(t domain.Transaction) error { return v.check(t) }

func (v *Validator) ValidateStaff(s domain.Staff) error { return v.check(s) }

func (v *Validator) ValidateService(s domain.Service) error { return v.check(s) }

func (v *Validator) ValidateProduct(p domain.Product) error { return v.check(p) }

func (v *Validator) ValidateCustomer(c domain.Customer) error { return v.check(c) }

func (v *Validator) ValidateAppointment(a domain.Appointment) error { return v.check(a) }

// ValidateBusiness checks a shop being provisioned.
func (v *Validator) ValidateBusiness(b domain.Business) error { return v.check(b) }
