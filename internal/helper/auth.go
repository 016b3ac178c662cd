package helper

import (
	"strings"
	"time"

	"github.com/ShixuDing/32933-project-match/internal/dto"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/juju/errors"
	"golang.org/x/crypto/bcrypt"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
	TokenTypeBearer  = "bearer"
)

// Claims is the signed payload of both token types. Subject carries the email.
type Claims struct {
	UserID uint   `json:"id"`
	Role   string `json:"role"`
	Type   string `json:"type"`
	jwt.RegisteredClaims
}

type Auth struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func SetupAuth(secret string, accessTTL, refreshTTL time.Duration) Auth {
	return Auth{
		Secret:     secret,
		AccessTTL:  accessTTL,
		RefreshTTL: refreshTTL,
	}
}

func (a Auth) GenerateAccessToken(userID uint, email, role string) (string, error) {
	return a.generate(userID, email, role, TokenTypeAccess, a.AccessTTL)
}

func (a Auth) GenerateRefreshToken(userID uint, email, role string) (string, error) {
	return a.generate(userID, email, role, TokenTypeRefresh, a.RefreshTTL)
}

func (a Auth) generate(userID uint, email, role, typ string, ttl time.Duration) (string, error) {
	if userID == 0 || email == "" || role == "" {
		return "", errors.New("required inputs are missing to generate token")
	}

	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(a.Secret))
	if err != nil {
		return "", errors.Annotate(err, "unable to sign the token")
	}
	return signed, nil
}

// VerifyToken decodes a token of the expected type. Any failure yields the
// zero identity and an Unauthorized error.
func (a Auth) VerifyToken(tokenString, expectedType string) (dto.AuthUser, error) {
	tokenString = strings.TrimSpace(tokenString)

	// accept both "Bearer <token>" and "<token>"
	if len(tokenString) > 7 && strings.EqualFold(tokenString[:7], "bearer ") {
		tokenString = strings.TrimSpace(tokenString[7:])
	}
	if tokenString == "" {
		return dto.AuthUser{}, errors.NewUnauthorized(nil, "missing token")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(a.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return dto.AuthUser{}, errors.NewUnauthorized(nil, "invalid or expired token")
	}
	if claims.Type != expectedType {
		return dto.AuthUser{}, errors.NewUnauthorized(nil, "expected "+expectedType+" token")
	}
	if claims.UserID == 0 || claims.Subject == "" || claims.Role == "" {
		return dto.AuthUser{}, errors.NewUnauthorized(nil, "invalid token claims")
	}

	user := dto.AuthUser{
		UserID:    claims.UserID,
		Email:     claims.Subject,
		Role:      claims.Role,
		Type:      claims.Type,
		ExpiresAt: claims.ExpiresAt.Unix(),
	}
	if claims.IssuedAt != nil {
		user.IssuedAt = claims.IssuedAt.Unix()
	}
	return user, nil
}

// Refresh mints a new access token from a valid refresh token. The refresh
// token itself is not renewed.
func (a Auth) Refresh(refreshToken string) (string, error) {
	user, err := a.VerifyToken(refreshToken, TokenTypeRefresh)
	if err != nil {
		return "", err
	}
	return a.GenerateAccessToken(user.UserID, user.Email, user.Role)
}

func (a Auth) GetCurrentUser(ctx *fiber.Ctx) (dto.AuthUser, error) {
	user, ok := ctx.Locals("user").(dto.AuthUser)
	if !ok || user.UserID == 0 {
		return dto.AuthUser{}, errors.NewUnauthorized(nil, "missing auth user in context")
	}
	return user, nil
}

func HashPassword(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Annotate(err, "failed to hash password")
	}
	return string(hashed), nil
}

func (a Auth) VerifyPassword(plain, hashed string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)); err != nil {
		return errors.NewUnauthorized(nil, "invalid email or password")
	}
	return nil
}
