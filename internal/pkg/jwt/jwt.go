package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"galera-cd/internal/pkg/config"
	"galera-cd/pkg/constants"
	pkgErrors "galera-cd/pkg/errors"
)

// UserClaims 用户Claims
type UserClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	Type  string `json:"type"` // access or refresh
	jwt.RegisteredClaims
}

// GenerateAccessToken 生成访问Token
func GenerateAccessToken(email, name, role string) (string, error) {
	cfg := config.GlobalConfig.Auth.JWT
	return generate(cfg.Secret, email, name, role, constants.JWTTypeAccess, time.Duration(cfg.AccessTokenExpire)*time.Second)
}

// GenerateRefreshToken 生成刷新Token
func GenerateRefreshToken(email, name, role string) (string, error) {
	cfg := config.GlobalConfig.Auth.JWT
	return generate(cfg.Secret, email, name, role, constants.JWTTypeRefresh, time.Duration(cfg.RefreshTokenExpire)*time.Second)
}

func generate(secret, email, name, role, typ string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", pkgErrors.New(pkgErrors.CodeInternalError, "auth.jwt.secret 未配置")
	}

	now := time.Now()
	claims := UserClaims{
		Email: email,
		Name:  name,
		Role:  role,
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken 解析Token
func ParseToken(tokenString string) (*UserClaims, error) {
	cfg := config.GlobalConfig.Auth.JWT

	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		// 验证签名方法
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, pkgErrors.ErrTokenExpired
		}
		return nil, pkgErrors.Wrap(pkgErrors.CodeUnauthorized, "解析Token失败", err)
	}

	if claims, ok := token.Claims.(*UserClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, pkgErrors.ErrInvalidToken
}

// ValidateAccessToken 验证访问Token, 拒绝 refresh token
func ValidateAccessToken(tokenString string) (*UserClaims, error) {
	claims, err := ParseToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != constants.JWTTypeAccess {
		return nil, pkgErrors.ErrInvalidToken
	}
	if claims.Email == "" {
		return nil, pkgErrors.ErrInvalidToken
	}
	return claims, nil
}

// ValidateRefreshToken 验证刷新Token
func ValidateRefreshToken(tokenString string) (*UserClaims, error) {
	claims, err := ParseToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != constants.JWTTypeRefresh || claims.Email == "" {
		return nil, pkgErrors.ErrInvalidToken
	}
	return claims, nil
}
