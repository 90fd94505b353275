package validation

import (
	"errors"
	"testing"
)

type form struct {
	Name  string `json:"first_name" validate:"required,min=2"`
	Phone string `json:"phone_number" validate:"required,phone"`
	Date  string `json:"date" validate:"omitempty,date"`
	Clock string `json:"clock" validate:"omitempty,clock"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name      string
		in        form
		wantField string
	}{
		{"valid", form{Name: "Ann", Phone: "+79991234567", Date: "2024-05-10", Clock: "09:30"}, ""},
		{"short name", form{Name: "A", Phone: "+79991234567"}, "first_name"},
		{"bad phone", form{Name: "Ann", Phone: "12-34"}, "phone_number"},
		{"bad date", form{Name: "Ann", Phone: "79991234567", Date: "10.05.2024"}, "date"},
		{"bad clock", form{Name: "Ann", Phone: "79991234567", Clock: "25:00"}, "clock"},
	}

	v := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.in)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Struct() error = %v", err)
				}
				return
			}
			var ve ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Struct() error = %v, want ValidationError", err)
			}
			if ve.Field != tt.wantField || ve.Key != "validation_"+tt.wantField {
				t.Errorf("ValidationError = %+v", ve)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if got := NormalizeName("  анна   мария "); got != "Анна мария" {
		t.Errorf("NormalizeName() = %q", got)
	}
	if got := NormalizePhone("+7 (999) 123-45-67"); got != "+79991234567" {
		t.Errorf("NormalizePhone() = %q", got)
	}
	if got := NormalizePhone("8 999+123"); got != "8999123" {
		t.Errorf("NormalizePhone() = %q", got)
	}
}
