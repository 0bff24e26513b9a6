package utils

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// Minimal internal validator for request bodies. Supports:
// - required
// - email
// - max=N (max length in bytes)
// - oneof=a|b|c

var reEmail = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidateStruct inspects struct tags `validate:"..."` and returns the first error encountered.
// Pointer-to-string fields are checked only when set.
func ValidateStruct(s interface{}) error {
	v := reflect.ValueOf(s)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return errors.New("ValidateStruct expects a struct or pointer to struct")
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("validate")
		if tag == "" {
			continue
		}
		name := jsonName(field)
		fv := v.Field(i)
		present := true
		if fv.Kind() == reflect.Ptr {
			present = !fv.IsNil()
			if present {
				fv = fv.Elem()
			}
		}
		var sval string
		if present && fv.Kind() == reflect.String {
			sval = strings.TrimSpace(fv.String())
		}
		for _, p := range strings.Split(tag, ",") {
			p = strings.TrimSpace(p)
			switch {
			case p == "required":
				if !present || (fv.Kind() == reflect.String && sval == "") || (fv.Kind() != reflect.String && fv.IsZero()) {
					return fmt.Errorf("%s is required", name)
				}
			case p == "email":
				if sval != "" && !reEmail.MatchString(sval) {
					return fmt.Errorf("%s must be a valid email address", name)
				}
			case strings.HasPrefix(p, "max="):
				n, err := strconv.Atoi(strings.TrimPrefix(p, "max="))
				if err == nil && len(sval) > n {
					return fmt.Errorf("%s must be at most %d characters", name, n)
				}
			case strings.HasPrefix(p, "oneof="):
				if sval == "" {
					continue
				}
				allowed := strings.Split(strings.TrimPrefix(p, "oneof="), "|")
				ok := false
				for _, a := range allowed {
					if strings.EqualFold(sval, a) {
						ok = true
						break
					}
				}
				if !ok {
					return fmt.Errorf("%s must be one of %s", name, strings.Join(allowed, ", "))
				}
			}
		}
	}
	return nil
}

func jsonName(f reflect.StructField) string {
	if tag := f.Tag.Get("json"); tag != "" {
		if n := strings.Split(tag, ",")[0]; n != "" && n != "-" {
			return n
		}
	}
	return f.Name
}
