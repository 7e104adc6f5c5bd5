package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenPurpose scopes a signed token to the single flow it was issued for.
type TokenPurpose string

const (
	PurposeAccess            TokenPurpose = "access"
	PurposeEmailVerification TokenPurpose = "email-verification"
	PurposeMagicLink         TokenPurpose = "magic-link"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Claims carries the subject identity plus the purpose tag. UserID and
// Email are each optional depending on the purpose: access tokens carry the
// user id, magic-link tokens carry the email.
type Claims struct {
	jwt.RegisteredClaims
	UserID  string       `json:"uid,omitempty"`
	Email   string       `json:"email,omitempty"`
	Purpose TokenPurpose `json:"purpose"`
}

// TokenIssuer creates and verifies signed, self-expiring bearer tokens.
// The signing secret is fixed for the process lifetime and injected at
// construction.
type TokenIssuer struct {
	secret       []byte
	issuer       string
	accessTTL    time.Duration
	magicLinkTTL time.Duration
	now          func() time.Time
}

func NewTokenIssuer(secret []byte, issuer string, accessTTL, magicLinkTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:       secret,
		issuer:       issuer,
		accessTTL:    accessTTL,
		magicLinkTTL: magicLinkTTL,
		now:          time.Now,
	}
}

func (t *TokenIssuer) IssueAccess(userID string) (string, error) {
	return t.sign(Claims{UserID: userID, Purpose: PurposeAccess}, t.accessTTL)
}

func (t *TokenIssuer) IssueEmailVerification(userID string) (string, error) {
	return t.sign(Claims{UserID: userID, Purpose: PurposeEmailVerification}, t.magicLinkTTL)
}

func (t *TokenIssuer) IssueMagicLink(email string) (string, error) {
	return t.sign(Claims{Email: email, Purpose: PurposeMagicLink}, t.magicLinkTTL)
}

func (t *TokenIssuer) sign(claims Claims, ttl time.Duration) (string, error) {
	now := t.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    t.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify parses the token, checks the signature and expiry, and rejects
// tokens issued for a different purpose.
func (t *TokenIssuer) Verify(tokenString string, purpose TokenPurpose) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || claims.Purpose != purpose {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
