package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

// Validator checks a single decoded request value.
type Validator interface {
	Validate(value interface{}) error
}

// Form validates the fields of a request struct, keyed by json/schema tag name.
type Form struct {
	validators map[string]Validator
}

func MustForm(validators map[string]Validator) *Form {
	if len(validators) == 0 {
		panic("form has no validators")
	}
	return &Form{validators: validators}
}

func (f *Form) Validate(value interface{}) error {
	v := reflect.ValueOf(value)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return errors.New("request is nil")
		}
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return errors.New("expect a struct")
	}

	fields := make(map[string]reflect.Value)
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		name := fieldName(t.Field(i))
		if name == "" {
			continue
		}
		fields[name] = v.Field(i)
	}

	for name, validator := range f.validators {
		fv, ok := fields[name]
		if !ok {
			return fmt.Errorf("field %s not found", name)
		}
		if err := validator.Validate(fv.Interface()); err != nil {
			return fmt.Errorf("%s: %v", name, err)
		}
	}

	return nil
}

func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "schema"} {
		if v, ok := f.Tag.Lookup(tag); ok {
			return strings.Split(v, ",")[0]
		}
	}
	return ""
}

type String struct {
	Optional  bool
	UnsetZero bool
	MinLen    int
	MaxLen    int
	Regex     *regexp.Regexp
	In        []string
}

func (v *String) Validate(value interface{}) error {
	s, ok := value.(*string)
	if !ok {
		return errors.New("expect a string")
	}

	if s == nil {
		if v.Optional {
			return nil
		}
		return errors.New("is required")
	}

	if v.UnsetZero && *s == "" {
		if v.Optional {
			return nil
		}
		return errors.New("cannot be empty")
	}

	if len(*s) < v.MinLen {
		return fmt.Errorf("must have at least %d characters", v.MinLen)
	}

	if v.MaxLen > 0 && len(*s) > v.MaxLen {
		return fmt.Errorf("must have at most %d characters", v.MaxLen)
	}

	if v.Regex != nil && !v.Regex.MatchString(*s) {
		return errors.New("has invalid characters")
	}

	if len(v.In) > 0 {
		for _, allowed := range v.In {
			if *s == allowed {
				return nil
			}
		}
		return fmt.Errorf("must be one of %v", v.In)
	}

	return nil
}

type UInt64 struct {
	Optional bool
	Min      *uint64
	Max      *uint64
}

func (v *UInt64) Validate(value interface{}) error {
	ui, ok := value.(*uint64)
	if !ok {
		return errors.New("expect an uint64")
	}

	if ui == nil {
		if v.Optional {
			return nil
		}
		return errors.New("is required")
	}

	if v.Min != nil && *ui < *v.Min {
		return fmt.Errorf("must be at least %d", *v.Min)
	}

	if v.Max != nil && *ui > *v.Max {
		return fmt.Errorf("must be at most %d", *v.Max)
	}

	return nil
}

type Float64 struct {
	Optional bool
	Min      *float64
	Max      *float64
}

func (v *Float64) Validate(value interface{}) error {
	f, ok := value.(*float64)
	if !ok {
		return errors.New("expect a float64")
	}

	if f == nil {
		if v.Optional {
			return nil
		}
		return errors.New("is required")
	}

	if v.Min != nil && *f < *v.Min {
		return fmt.Errorf("must be at least %v", *v.Min)
	}

	if v.Max != nil && *f > *v.Max {
		return fmt.Errorf("must be at most %v", *v.Max)
	}

	return nil
}

type Slice struct {
	Optional  bool
	MinLen    int
	MaxLen    int
	Validator Validator
}

func (v *Slice) Validate(value interface{}) error {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice {
		return errors.New("expect a slice")
	}

	if rv.Len() == 0 && v.Optional {
		return nil
	}

	if rv.Len() < v.MinLen {
		return fmt.Errorf("must have at least %d elements", v.MinLen)
	}

	if v.MaxLen > 0 && rv.Len() > v.MaxLen {
		return fmt.Errorf("must have at most %d elements", v.MaxLen)
	}

	if v.Validator != nil {
		for i := 0; i < rv.Len(); i++ {
			if err := v.Validator.Validate(rv.Index(i).Interface()); err != nil {
				return fmt.Errorf("[%d] %v", i, err)
			}
		}
	}

	return nil
}
