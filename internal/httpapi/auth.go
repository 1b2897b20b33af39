package httpapi

import (
	"context"
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/LightDreamhs/MyPetShop3.0/internal/domain"
	"github.com/LightDreamhs/MyPetShop3.0/internal/upstream"
)

var errInvalidToken = errors.New("invalid or expired token")

// Authenticator performs the upstream login for a console operator.
type Authenticator interface {
	Login(ctx context.Context, username string) (upstream.LoginResult, error)
}

type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	login    Authenticator
	now      func() time.Time
}

type consoleClaims struct {
	jwtlib.RegisteredClaims
	Role          string `json:"role"`
	UpstreamToken string `json:"upt"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, login Authenticator) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		login:    login,
		now:      time.Now,
	}
}

// Login forwards the username to the upstream and wraps the upstream
// access token in a console session token. The session never outlives the
// upstream token.
func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	result, err := a.login.Login(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		return domain.LoginResponse{}, err
	}

	ttl := a.tokenTTL
	if result.ExpiresIn > 0 {
		if upstreamTTL := time.Duration(result.ExpiresIn) * time.Second; upstreamTTL < ttl {
			ttl = upstreamTTL
		}
	}
	role := result.User.Role
	if role == "" {
		role = domain.RoleStaff
	}
	username := result.User.Username
	if username == "" {
		username = strings.TrimSpace(req.Username)
	}

	expiresAt := a.now().UTC().Add(ttl)
	token, err := a.sign(domain.Actor{Username: username, Role: role, UpstreamToken: result.AccessToken}, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		Role:        role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
		User:        result.User,
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &consoleClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithIssuer(tokenIssuer), jwtlib.WithTimeFunc(a.now))
	if err != nil || !token.Valid {
		return domain.Actor{}, errInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	if claims.UpstreamToken == "" {
		return domain.Actor{}, errInvalidToken
	}
	return domain.Actor{Username: sub, Role: claims.Role, UpstreamToken: claims.UpstreamToken}, nil
}

const tokenIssuer = "petshop-console"

func (a *AuthManager) sign(actor domain.Actor, expiresAt time.Time) (string, error) {
	claims := consoleClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   actor.Username,
			IssuedAt:  jwtlib.NewNumericDate(a.now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    tokenIssuer,
		},
		Role:          actor.Role,
		UpstreamToken: actor.UpstreamToken,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}
