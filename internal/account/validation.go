package account

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	emailPattern    = regexp.MustCompile(`^[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]+$`)
	passwordCharset = regexp.MustCompile(`^[A-Za-z\d\-()@$!%*?&#^]{6,}$`)
	phonePattern    = regexp.MustCompile(`^\d{10}$`)
)

const passwordSpecials = "-()@$!%*?&#^"

// Field error messages shown next to form inputs.
const (
	MsgInvalidEmail    = "Invalid email address"
	MsgInvalidPassword = "Password must be at least 6 characters and contain upper and lower case letters, a digit and a special character."
	MsgInvalidPhone    = "Phone number must be 10 digits"
	MsgUsernameMissing = "Invalid User Name"
	MsgPasswordMissing = "Invalid Password."
)

// ValidateEmail checks a lower-case address of 5 to 254 characters with a
// single @ and no empty labels.
func ValidateEmail(email string) bool {
	if len(email) < 5 || len(email) > 254 {
		return false
	}
	if !emailPattern.MatchString(email) {
		return false
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return false
	}
	return !strings.Contains(parts[0], "..") && !strings.Contains(parts[1], "..")
}

// ValidatePassword requires six or more characters from the allowed set with
// at least one upper-case letter, lower-case letter, digit and special.
func ValidatePassword(password string) bool {
	if !passwordCharset.MatchString(password) {
		return false
	}
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	return upper && lower && digit && special
}

// ValidatePhone requires exactly ten digits.
func ValidatePhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// ValidationError maps form fields to messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", k, e.Fields[k])
	}
	return "account: invalid form: " + strings.Join(parts, "; ")
}

// Message returns the message for field, or "".
func (e *ValidationError) Message(field string) string {
	return e.Fields[field]
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// ValidateCredentials only checks that both fields are filled in.
func ValidateCredentials(c Credentials) error {
	verr := &ValidationError{}
	if strings.TrimSpace(c.Username) == "" {
		verr.add("username", MsgUsernameMissing)
	}
	if strings.TrimSpace(c.Password) == "" {
		verr.add("password", MsgPasswordMissing)
	}
	return verr.orNil()
}

// Validate checks required fields, phone, password and email.
func (f SignupForm) Validate() error {
	return f.validate(true)
}

// ValidateProfile is Validate for the profile editor, which never carries a
// password.
func (f SignupForm) ValidateProfile() error {
	return f.validate(false)
}

func (f SignupForm) validate(withPassword bool) error {
	t := f.trimmed()
	verr := &ValidationError{}
	required := []struct {
		field, value string
	}{
		{"username", t.Username},
		{"email", t.Email},
		{"password", t.Password},
		{"city", t.City},
		{"street", t.Street},
		{"phone", t.Phone},
	}
	for _, r := range required {
		if r.field == "password" && !withPassword {
			continue
		}
		if r.value == "" {
			verr.add(r.field, strings.ToUpper(r.field[:1])+r.field[1:]+" is required")
		}
	}
	if t.Phone != "" && !ValidatePhone(t.Phone) {
		verr.add("phone", MsgInvalidPhone)
	}
	if withPassword && t.Password != "" && !ValidatePassword(t.Password) {
		verr.add("password", MsgInvalidPassword)
	}
	if t.Email != "" && !ValidateEmail(t.Email) {
		verr.add("email", MsgInvalidEmail)
	}
	return verr.orNil()
}
