package core

import (
	"encoding/json"
	"net/mail"
	"strings"
)

const maxPasswordBytes = 1024

// SignUpInput contains the data needed to register a new user
type SignUpInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the input before any storage access.
func (in SignUpInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrNameRequired
	}
	if err := ValidateEmail(in.Email); err != nil {
		return err
	}
	return validatePassword(in.Password)
}

// SignInInput contains the credentials for authentication
type SignInInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in SignInInput) Validate() error {
	if err := ValidateEmail(in.Email); err != nil {
		return err
	}
	return validatePassword(in.Password)
}

// GoogleSignInInput carries the ID token obtained by the client from Google.
type GoogleSignInInput struct {
	IDToken string `json:"idToken"`
}

// AppleSignInInput carries Apple's identity token and the optional profile
// fields Apple hands to the client on first consent.
type AppleSignInInput struct {
	IdentityToken string `json:"identityToken"`
	Email         string `json:"email,omitempty"`
	Name          string `json:"name,omitempty"`
}

// Assertion converts the input into a provider-neutral assertion.
func (in AppleSignInInput) Assertion() Assertion {
	return Assertion{
		Token: in.IdentityToken,
		Email: strings.TrimSpace(in.Email),
		Name:  strings.TrimSpace(in.Name),
	}
}

// AppleCallbackForm is the form Apple posts to a web redirect URI when the
// response mode is form_post. User is a JSON document sent on first consent
// only.
type AppleCallbackForm struct {
	IDToken string
	User    string
}

type appleCallbackUser struct {
	Email string `json:"email"`
	Name  struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	} `json:"name"`
}

// Input joins the first and last name from User. A User document that does
// not parse is ignored.
func (f AppleCallbackForm) Input() AppleSignInInput {
	in := AppleSignInInput{IdentityToken: strings.TrimSpace(f.IDToken)}
	if strings.TrimSpace(f.User) == "" {
		return in
	}
	var u appleCallbackUser
	if err := json.Unmarshal([]byte(f.User), &u); err != nil {
		return in
	}
	in.Email = strings.TrimSpace(u.Email)
	var parts []string
	for _, p := range []string{u.Name.FirstName, u.Name.LastName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	in.Name = strings.Join(parts, " ")
	return in
}

// ValidateEmail rejects empty and malformed addresses. The stored address is
// the caller's string as given; no normalization is applied.
func ValidateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return ErrEmailRequired
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return ErrInvalidEmail
	}
	return nil
}

func validatePassword(password string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	if len(password) > maxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}
