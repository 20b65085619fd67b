package discharge

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	registerValidations(validate)
}

func registerValidations(v *validator.Validate) {
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return Category(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("discharge_type", func(fl validator.FieldLevel) bool {
		return DischargeType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("change_type", func(fl validator.FieldLevel) bool {
		return ChangeType(fl.Field().String()).Valid()
	})
}

// generationInput holds the fields a record must carry before outputs can be
// generated from it.
type generationInput struct {
	CircleID      string `validate:"required,uuid"`
	PatientID     string `validate:"required,uuid"`
	FacilityName  string `validate:"required,max=200"`
	DischargeDate string `validate:"required,datetime=2006-01-02"`
}

func validateForGeneration(r *Record) error {
	in := generationInput{
		FacilityName:  strings.TrimSpace(r.FacilityName),
		DischargeDate: r.DischargeDate,
	}
	if r.CircleID != uuid.Nil {
		in.CircleID = r.CircleID.String()
	}
	if r.PatientID != uuid.Nil {
		in.PatientID = r.PatientID.String()
	}
	return ValidateStruct(in)
}

// ValidateStruct validates s and flattens the result into one error naming
// each failing field.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid fields: %s", strings.Join(fields, ", "))
}
