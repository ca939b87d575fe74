// Package auth は外部IdPが発行するセッショントークンとWebhook署名の検証を提供する。
//
// ユーザー認証そのものはIdPが担い、本サービスは署名済みトークンの
// subクレームを呼び出し元ユーザーIDとして信頼する。
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken はトークンの形式・署名・有効期限のいずれかが不正な場合のエラー。
var ErrInvalidToken = errors.New("invalid session token")

// Claims はIdPセッショントークンのクレーム。
type Claims struct {
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifierConfig はトークン検証の設定。
// PublicKeyPEMが指定された場合はRS256、そうでなければSecretによるHS256で検証する。
type TokenVerifierConfig struct {
	PublicKeyPEM string
	Secret       string
	Issuer       string
	Leeway       time.Duration
}

// TokenVerifier はIdPセッショントークンを検証する。
type TokenVerifier struct {
	key    any
	parser *jwt.Parser
}

// NewTokenVerifier はTokenVerifierを生成する。
// 公開鍵のパースに失敗した場合、または鍵が1つも指定されていない場合はエラーを返す。
func NewTokenVerifier(cfg TokenVerifierConfig) (*TokenVerifier, error) {
	var key any
	var method string

	switch {
	case cfg.PublicKeyPEM != "":
		// 環境変数経由では改行が \n のリテラルで渡されることがある
		pem := strings.ReplaceAll(cfg.PublicKeyPEM, `\n`, "\n")
		pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
		if err != nil {
			return nil, fmt.Errorf("failed to parse IdP public key: %w", err)
		}
		key = pub
		method = jwt.SigningMethodRS256.Alg()
	case cfg.Secret != "":
		key = []byte(cfg.Secret)
		method = jwt.SigningMethodHS256.Alg()
	default:
		return nil, errors.New("either a public key or a secret is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{method}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return &TokenVerifier{
		key:    key,
		parser: jwt.NewParser(opts...),
	}, nil
}

// Verify はトークンを検証し、subクレームのユーザーIDを返す。
// 検証に失敗した場合は常にErrInvalidTokenをラップしたエラーを返す。
func (v *TokenVerifier) Verify(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrInvalidToken
	}

	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return claims.Subject, nil
}
