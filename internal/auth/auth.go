// Package auth holds account primitives shared by the HTTP layer:
// bcrypt password hashing, HS256 tokens and credential validation.
package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// CookieName is the auth cookie read alongside the Authorization header.
const CookieName = "mindmaster_token"

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrCredentialsMissing = errors.New("email and password required")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
	ErrEmailRequired      = errors.New("new email is required")
	ErrPasswordRequired   = errors.New("new password is required")
)

// ------------------------------- passwords ---------------------------------

// HashPassword returns a bcrypt hash (cost 10).
func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

// CheckPassword is a bcrypt verifier.
func CheckPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// -------------------------------- tokens -----------------------------------

// Claims identifies the holder of a valid token.
type Claims struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
}

// Tokens signs and verifies HS256 tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens returns a signer valid for ttl per token.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign creates a token for the user and returns it with its expiry.
func (t *Tokens) Sign(userID, email string) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":    userID,
		"email": email,
		"exp":   exp.Unix(),
		"iat":   now.Unix(),
	})
	ss, err := tok.SignedString(t.secret)
	return ss, exp, err
}

// Parse verifies a token and returns its claims.
func (t *Tokens) Parse(tokenStr string) (Claims, error) {
	if tokenStr == "" {
		return Claims{}, ErrInvalidToken
	}
	claims := jwt.MapClaims{}
	tok, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil || !tok.Valid {
		return Claims{}, ErrInvalidToken
	}
	id, _ := claims["id"].(string)
	email, _ := claims["email"].(string)
	if id == "" || email == "" {
		return Claims{}, ErrInvalidToken
	}
	return Claims{UserID: id, Email: email}, nil
}

// TokenFromRequest extracts a bearer token from the Authorization header,
// falling back to the auth cookie.
func TokenFromRequest(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

// ------------------------------ validation ---------------------------------

var validate = validator.New()

type registration struct {
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required,min=6,max=100"`
}

type login struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// ValidateRegistration checks a new account's credentials.
func ValidateRegistration(email, pw string) error {
	return translate(validate.Struct(registration{Email: email, Password: pw}))
}

// ValidateLogin only requires both fields to be present.
func ValidateLogin(email, pw string) error {
	return translate(validate.Struct(login{Email: email, Password: pw}))
}

// ValidateEmail checks a replacement email address.
func ValidateEmail(email string) error {
	if email == "" {
		return ErrEmailRequired
	}
	if err := validate.Var(email, "email,max=254"); err != nil {
		return ErrInvalidEmail
	}
	return nil
}

// ValidatePassword checks a replacement password.
func ValidatePassword(pw string) error {
	if pw == "" {
		return ErrPasswordRequired
	}
	if err := validate.Var(pw, "min=6,max=100"); err != nil {
		return ErrPasswordTooShort
	}
	return nil
}

// translate maps validator failures onto user-facing errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	switch {
	case fe.Tag() == "required":
		return ErrCredentialsMissing
	case fe.Field() == "Email":
		return ErrInvalidEmail
	case fe.Field() == "Password" && fe.Tag() == "min":
		return ErrPasswordTooShort
	}
	return errors.New(strings.ToLower(fe.Field()) + " is invalid")
}
