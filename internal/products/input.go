package products

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxNameLength is the longest product name, in characters, every backend can store.
const MaxNameLength = 255

// ValidationError describes invalid user input in a human-readable way.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

const (
	FieldName           = "name"
	FieldProductionDate = "production_date"
	FieldShelfLifeDays  = "shelf_life_days"
)

// Input carries the user-editable fields of a product.
type Input struct {
	Name           string
	ProductionDate Date
	ShelfLifeDays  int
}

func (in Input) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return NewValidationError(FieldName, "product name is required")
	}
	if utf8.RuneCountInString(in.Name) > MaxNameLength {
		return NewValidationError(FieldName, fmt.Sprintf("product name must be at most %d characters", MaxNameLength))
	}
	if in.ProductionDate.IsZero() {
		return NewValidationError(FieldProductionDate, "production date is required")
	}
	if in.ShelfLifeDays <= 0 {
		return NewValidationError(FieldShelfLifeDays, "shelf life must be a positive number of days")
	}
	if in.ShelfLifeDays > MaxDate.DaysSince(in.ProductionDate) {
		return NewValidationError(FieldShelfLifeDays, fmt.Sprintf("shelf life puts the expiry date after %s", MaxDate))
	}
	return nil
}

// ParseInput converts raw form values into a validated Input.
func ParseInput(name, productionDate, shelfLifeDays string) (Input, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Input{}, NewValidationError(FieldName, "product name is required")
	}

	shelfLifeDays = strings.TrimSpace(shelfLifeDays)
	if shelfLifeDays == "" {
		return Input{}, NewValidationError(FieldShelfLifeDays, "shelf life is required")
	}

	date, err := ParseDate(productionDate)
	if err != nil {
		return Input{}, NewValidationError(FieldProductionDate, "production date must use yyyy-MM-dd format")
	}

	days, err := strconv.Atoi(shelfLifeDays)
	if err != nil || days <= 0 {
		return Input{}, NewValidationError(FieldShelfLifeDays, "shelf life must be a positive number of days")
	}

	in := Input{Name: name, ProductionDate: date, ShelfLifeDays: days}
	return in, in.Validate()
}

// Validate checks a product record before it is persisted.
func Validate(p Product) error {
	in := Input{Name: p.Name, ProductionDate: p.ProductionDate, ShelfLifeDays: p.ShelfLifeDays}
	if err := in.Validate(); err != nil {
		return err
	}
	if !p.Consistent() {
		return NewValidationError("expiry_date", "expiry date must equal production date plus shelf life")
	}
	return nil
}
