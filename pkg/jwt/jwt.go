// Package jwt firma y valida los tokens de acceso a la API de emisión.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Grant lo que autoriza un token: quién opera, sobre qué emisor y con qué rol.
type Grant struct {
	Operator string // sub: usuario o integración que llama
	IssuerID string // emisor (tenant) sobre el que actúa
	Role     string // "admin" | "emissor" | "consulta"
}

// Claims claims firmados. El operador viaja en el "sub" estándar.
type Claims struct {
	jwt.RegisteredClaims
	IssuerID string `json:"issuer_id"`
	Role     string `json:"role"`
}

var errNoIssuer = errors.New("jwt: el token no identifica al emisor")

// Generate firma un token HS256 para el grant. authority va en "iss".
func Generate(secret, authority string, g Grant, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("jwt: secret vacío")
	}
	if g.IssuerID == "" {
		return "", errNoIssuer
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    authority,
			Subject:   g.Operator,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		IssuerID: g.IssuerID,
		Role:     g.Role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Parse valida firma, algoritmo y expiración, y devuelve el grant.
// Un rol vacío no es error aquí; lo decide el middleware de roles.
func Parse(secret, tokenString string) (Grant, error) {
	if secret == "" {
		return Grant{}, fmt.Errorf("jwt: secret vacío")
	}
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return Grant{}, err
	}
	if !token.Valid {
		return Grant{}, fmt.Errorf("jwt: claims inválidos")
	}
	if claims.IssuerID == "" {
		return Grant{}, errNoIssuer
	}
	return Grant{Operator: claims.Subject, IssuerID: claims.IssuerID, Role: claims.Role}, nil
}
