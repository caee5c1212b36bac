package validation

import (
	"strings"
	"testing"
)

func TestGetValidator_Singleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()
	if v1 == nil {
		t.Fatal("GetValidator() returned nil")
	}
	if v1 != v2 {
		t.Error("GetValidator() should return the same instance")
	}
}

type sample struct {
	Name   string `json:"name" validate:"required,min=2,max=10"`
	Email  string `json:"email,omitempty" validate:"omitempty,email"`
	Rating int    `json:"rating" validate:"gte=1,lte=5"`
	Kind   string `json:"kind,omitempty" validate:"omitempty,oneof=a b"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name      string
		input     sample
		wantField string
		wantMsg   string
	}{
		{name: "valid", input: sample{Name: "Ann", Rating: 3}},
		{name: "valid with email", input: sample{Name: "Ann", Email: "ann@example.edu", Rating: 5}},
		{name: "missing name", input: sample{Rating: 1}, wantField: "name", wantMsg: "name is required"},
		{name: "short name", input: sample{Name: "A", Rating: 1}, wantField: "name", wantMsg: "name must be at least 2 characters"},
		{name: "bad email", input: sample{Name: "Ann", Email: "nope", Rating: 1}, wantField: "email", wantMsg: "email must be a valid email address"},
		{name: "rating too low", input: sample{Name: "Ann", Rating: 0}, wantField: "rating", wantMsg: "rating must be greater than or equal to 1"},
		{name: "rating too high", input: sample{Name: "Ann", Rating: 6}, wantField: "rating", wantMsg: "rating must be less than or equal to 5"},
		{name: "bad enum", input: sample{Name: "Ann", Rating: 2, Kind: "c"}, wantField: "kind", wantMsg: "kind must be one of: a b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.input)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("ValidateStruct() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("ValidateStruct() expected error, got nil")
			}
			errs := err.Errors()
			if len(errs) != 1 {
				t.Fatalf("got %d field errors, want 1: %v", len(errs), err)
			}
			if errs[0].Field() != tt.wantField {
				t.Errorf("Field() = %q, want %q", errs[0].Field(), tt.wantField)
			}
			if errs[0].Error() != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", errs[0].Error(), tt.wantMsg)
			}
		})
	}
}

func TestValidateStruct_MultipleErrorsJoined(t *testing.T) {
	err := ValidateStruct(&sample{Rating: 9})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(err.Errors()) != 2 {
		t.Fatalf("got %d errors, want 2", len(err.Errors()))
	}
	if !strings.Contains(err.Error(), "; ") {
		t.Errorf("Error() = %q, want messages joined with '; '", err.Error())
	}
}
