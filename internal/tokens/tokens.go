// Package tokens turns stored token rows into signed bearer strings and back.
//
// A bearer string is an HS256 JWT whose jti is the stored key and whose sub is the
// owner's user ID. Revocation is done by deleting the stored key, so the JWT carries
// no expiry. Signing the same row always yields the same string.
package tokens

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"

	"github.com/alumnijourney/apiserver/types"
	"github.com/golang-jwt/jwt/v5"
)

// KeyBytes is the amount of randomness in a token key. Keys are hex encoded.
const KeyBytes = 20

// ErrInvalid is returned for any bearer string that does not verify.
var ErrInvalid = errors.New("invalid token")

// NewKey returns a fresh random token key.
func NewKey() (string, error) {
	buf := make([]byte, KeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Signer signs and verifies bearer strings with a shared secret.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign encodes token as a bearer string.
func (s *Signer) Sign(token types.Token) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:  strconv.Itoa(token.UserID),
		ID:       token.Key,
		IssuedAt: jwt.NewNumericDate(token.CreatedAt),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Claims is what a verified bearer string says about its token.
type Claims struct {
	UserID int
	Key    string
}

// Parse verifies raw and returns the token key and user it names.
func (s *Signer) Parse(raw string) (Claims, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalid
	}

	userID, err := strconv.Atoi(strings.TrimSpace(claims.Subject))
	if err != nil || userID < 1 || claims.ID == "" {
		return Claims{}, ErrInvalid
	}
	return Claims{UserID: userID, Key: claims.ID}, nil
}
