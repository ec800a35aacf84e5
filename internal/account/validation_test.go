package account

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateEmail(t *testing.T) {
	cases := []struct {
		email string
		want  bool
	}{
		{"john@gmail.com", true},
		{"a.b+c@shop.example.io", true},
		{"a@b.c", true},
		{"a@b", false},
		{"John@gmail.com", false},
		{"john..doe@gmail.com", false},
		{"john@gmail..com", false},
		{"john@@gmail.com", false},
		{"@gmail.com", false},
		{"x@y", false},
		{strings.Repeat("a", 250) + "@b.co", false},
	}
	for _, tc := range cases {
		if got := ValidateEmail(tc.email); got != tc.want {
			t.Fatalf("ValidateEmail(%q) = %v, want %v", tc.email, got, tc.want)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		password string
		want     bool
	}{
		{"Abc1@x", true},
		{"Passw0rd-", true},
		{"abc1@x", false},
		{"ABC1@X", false},
		{"Abcd@x", false},
		{"Abc1xx", false},
		{"Ab1@", false},
		{"Abc1@x with space", false},
		{"Abc1_x", false},
	}
	for _, tc := range cases {
		if got := ValidatePassword(tc.password); got != tc.want {
			t.Fatalf("ValidatePassword(%q) = %v, want %v", tc.password, got, tc.want)
		}
	}
}

func TestSignupFormValidate(t *testing.T) {
	form := SignupForm{
		Email:    "john@gmail.com",
		Username: "johnd",
		Password: "Secr3t!",
		City:     "kilcoole",
		Street:   "7835 new road",
		Phone:    "1570236498",
	}
	if err := form.Validate(); err != nil {
		t.Fatalf("valid form rejected: %v", err)
	}

	bad := SignupForm{Email: "nope", Password: "weak", Phone: "123"}
	err := bad.Validate()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := map[string]string{
		"username": "Username is required",
		"city":     "City is required",
		"street":   "Street is required",
		"phone":    MsgInvalidPhone,
		"password": MsgInvalidPassword,
		"email":    MsgInvalidEmail,
	}
	for field, msg := range want {
		if got := verr.Message(field); got != msg {
			t.Fatalf("field %s = %q, want %q", field, got, msg)
		}
	}
}

func TestValidateCredentials(t *testing.T) {
	if err := ValidateCredentials(Credentials{Username: "mor_2314", Password: "83r5^_"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := ValidateCredentials(Credentials{Username: "  "})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Message("username") != MsgUsernameMissing || verr.Message("password") != MsgPasswordMissing {
		t.Fatalf("unexpected validation result %v", err)
	}
}
