package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/recordgate/internal/model"
)

// ErrInvalidToken はトークン検証の失敗を表す。
// 形式不正・署名不一致・期限切れ等の原因は区別しない。
var ErrInvalidToken = errors.New("invalid token")

// DefaultTokenTTL はトークンの既定の有効期間（7日間）。
const DefaultTokenTTL = 7 * 24 * time.Hour

// Claims はセッショントークンのクレーム。
// subject にアカウントIDを格納する。
type Claims struct {
	jwt.RegisteredClaims
	Role model.Role `json:"role"`
}

// AccountID はトークンが示すアカウントIDを返す。
func (c *Claims) AccountID() string {
	return c.Subject
}

// TokenIssuer はHS256署名のセッショントークンを発行・検証する。
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// TokenIssuerOption はTokenIssuerの設定オプション。
type TokenIssuerOption func(*TokenIssuer)

// WithClock は現在時刻の取得関数を差し替える。
func WithClock(now func() time.Time) TokenIssuerOption {
	return func(ti *TokenIssuer) {
		ti.now = now
	}
}

// NewTokenIssuer はTokenIssuerを生成する。ttlが0以下の場合はDefaultTokenTTLを使用する。
func NewTokenIssuer(secret []byte, ttl time.Duration, opts ...TokenIssuerOption) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	ti := &TokenIssuer{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(ti)
	}
	return ti
}

// TTL はトークンの有効期間を返す。
func (ti *TokenIssuer) TTL() time.Duration {
	return ti.ttl
}

// Issue はアカウントIDとロールを含むトークンを発行し、有効期限とともに返す。
func (ti *TokenIssuer) Issue(accountID string, role model.Role) (string, time.Time, error) {
	issuedAt := ti.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(ti.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role: role,
	})

	signed, err := token.SignedString(ti.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Validate はトークンを検証し、クレームを返す。
// 検証に失敗した場合は原因によらずErrInvalidTokenを返す。
func (ti *TokenIssuer) Validate(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ti.now),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return ti.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
