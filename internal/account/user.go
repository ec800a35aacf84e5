package account

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Credentials are sent to the login endpoint.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Name is a user's first and last name.
type Name struct {
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
}

// Geolocation is carried through as strings.
type Geolocation struct {
	Lat  string `json:"lat"`
	Long string `json:"long"`
}

// HouseNumber accepts both the string form sent at signup and the numeric
// form the users endpoint returns.
type HouseNumber string

func (n *HouseNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = HouseNumber(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*n = HouseNumber(num.String())
	return nil
}

// Address is a postal address.
type Address struct {
	Geolocation Geolocation `json:"geolocation"`
	City        string      `json:"city"`
	Street      string      `json:"street"`
	Number      HouseNumber `json:"number"`
	Zipcode     string      `json:"zipcode"`
}

// User is a profile as returned by the users endpoint.
type User struct {
	ID       int     `json:"id"`
	Email    string  `json:"email"`
	Username string  `json:"username"`
	Password string  `json:"password,omitempty"`
	Name     Name    `json:"name"`
	Address  Address `json:"address"`
	Phone    string  `json:"phone"`
}

// DisplayName is "First Last", falling back to the username.
func (u User) DisplayName() string {
	full := strings.TrimSpace(u.Name.Firstname + " " + u.Name.Lastname)
	if full == "" {
		return u.Username
	}
	return full
}

// SignupForm is what the signup and profile screens collect.
type SignupForm struct {
	Email    string
	Username string
	Password string
	City     string
	Street   string
	Phone    string
}

// trimmed returns a copy with surrounding whitespace removed.
func (f SignupForm) trimmed() SignupForm {
	return SignupForm{
		Email:    strings.TrimSpace(f.Email),
		Username: strings.TrimSpace(f.Username),
		Password: strings.TrimSpace(f.Password),
		City:     strings.TrimSpace(f.City),
		Street:   strings.TrimSpace(f.Street),
		Phone:    strings.TrimSpace(f.Phone),
	}
}

// User builds the request body. The username doubles as the first name.
func (f SignupForm) User() User {
	t := f.trimmed()
	return User{
		Email:    t.Email,
		Username: t.Username,
		Password: t.Password,
		Name:     Name{Firstname: t.Username},
		Address:  Address{City: t.City, Street: t.Street},
		Phone:    t.Phone,
	}
}
