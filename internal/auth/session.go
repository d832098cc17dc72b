// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// Session tokens are ed25519-signed JWTs with the player id in "sub".
var (
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// TokenExpireSeconds is the token lifetime in seconds; 0 means no exp claim.
	TokenExpireSeconds int
)

// parseTokenExpire reads TOKEN_EXPIRE_TIME (a Go duration, or "never"/"0"/"")
// into TokenExpireSeconds.
func parseTokenExpire() {
	duration := os.Getenv("TOKEN_EXPIRE_TIME")
	if duration == "never" || duration == "0" || duration == "" {
		TokenExpireSeconds = 0
		return
	}
	d, err := time.ParseDuration(duration)
	if err != nil {
		logrus.Fatalf("failed to parse TOKEN_EXPIRE_TIME: %v", err)
	}
	TokenExpireSeconds = int(d.Seconds())
}

// Init generates a fresh ed25519 key pair at runtime. Tokens do not survive a
// restart; clients re-login.
func Init() {
	var err error
	publicKey, privateKey, err = ed25519.GenerateKey(nil)
	if err != nil {
		logrus.Fatalf("failed to generate ed25519 key pair: %v", err)
	}
	parseTokenExpire()
}

// InitFromPath loads a persistent ed25519 key pair from disk, so tokens stay
// valid across deploys.
func InitFromPath(privatePath, publicPath string) error {
	priv, err := os.ReadFile(privatePath)
	if err != nil {
		return fmt.Errorf("failed to read private key file: %w", err)
	}
	pub, err := os.ReadFile(publicPath)
	if err != nil {
		return fmt.Errorf("failed to read public key file: %w", err)
	}

	privateKey = ed25519.PrivateKey(priv)
	publicKey = ed25519.PublicKey(pub)
	parseTokenExpire()
	return nil
}

// CreateJWT signs a token for the given player id.
func CreateJWT(playerID string) (string, error) {
	claims := jwt.MapClaims{
		"sub": playerID,
	}
	if TokenExpireSeconds > 0 {
		claims["exp"] = time.Now().Add(time.Duration(TokenExpireSeconds) * time.Second).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(privateKey)
}

// AuthenticateJWT verifies a token string and returns the player id it was
// issued for.
func AuthenticateJWT(tokenString string) (string, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid jwt claims")
	}
	playerID, ok := claims["sub"].(string)
	if !ok {
		return "", fmt.Errorf("missing sub in jwt")
	}
	return playerID, nil
}
