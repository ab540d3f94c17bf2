package security

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned when a token is malformed or invalid.
	ErrInvalidToken = errors.New("invalid token")
	// ErrNoSigningKey is returned when issuing without a private key (verify-only provider).
	ErrNoSigningKey = errors.New("no signing key configured")
)

// ServiceClaims holds JWT claims for a worker calling the sync gateway.
type ServiceClaims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope"`
}

// GatewayScope is the scope carried by worker tokens.
const GatewayScope = "sync-gateway"

// TokenProvider issues and validates service JWTs using RS256 or ES256.
// The worker holds the private key; the gateway server only needs the public key.
type TokenProvider struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
	ttl        time.Duration
}

// NewTokenProvider returns a TokenProvider. privateKey may be nil for a verify-only provider;
// publicKey may be nil when it can be derived from privateKey.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, ttl time.Duration) *TokenProvider {
	if publicKey == nil && privateKey != nil {
		publicKey = privateKey.Public()
	}
	return &TokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		ttl:        ttl,
	}
}

// IssueService issues a short-lived token for workerID. Returns the token and its expiry.
func (p *TokenProvider) IssueService(workerID string) (token string, expiresAt time.Time, err error) {
	if p.privateKey == nil {
		return "", time.Time{}, ErrNoSigningKey
	}
	if workerID == "" {
		return "", time.Time{}, ErrInvalidToken
	}
	now := time.Now().UTC()
	expiresAt = now.Add(p.ttl)
	claims := ServiceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   workerID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Scope: GatewayScope,
	}
	token, err = p.sign(claims)
	return token, expiresAt, err
}

func (p *TokenProvider) sign(claims jwt.Claims) (string, error) {
	var method jwt.SigningMethod
	switch p.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", ErrInvalidToken
	}
	t := jwt.NewWithClaims(method, claims)
	return t.SignedString(p.privateKey)
}

// ValidateService parses and validates a service token (signature, exp, iss, aud, scope).
// Returns the worker id from the subject.
func (p *TokenProvider) ValidateService(tokenString string) (workerID string, err error) {
	if p.publicKey == nil {
		return "", ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(tokenString, &ServiceClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); ok {
			return p.publicKey, nil
		}
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); ok {
			return p.publicKey, nil
		}
		return nil, ErrInvalidToken
	}, jwt.WithIssuer(p.issuer), jwt.WithAudience(p.audience), jwt.WithExpirationRequired())
	if err != nil {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*ServiceClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.Scope != GatewayScope || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// refreshMargin is how long before expiry a cached token is replaced.
const refreshMargin = 30 * time.Second

// ServiceCredentials attaches a service token to every gRPC call (credentials.PerRPCCredentials).
// Tokens are cached and reissued shortly before they expire.
type ServiceCredentials struct {
	provider   *TokenProvider
	workerID   string
	requireTLS bool

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewServiceCredentials returns per-RPC credentials for workerID.
func NewServiceCredentials(provider *TokenProvider, workerID string, requireTLS bool) *ServiceCredentials {
	return &ServiceCredentials{provider: provider, workerID: workerID, requireTLS: requireTLS}
}

// GetRequestMetadata implements credentials.PerRPCCredentials.
func (c *ServiceCredentials) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" || time.Until(c.expiresAt) < refreshMargin {
		token, exp, err := c.provider.IssueService(c.workerID)
		if err != nil {
			return nil, err
		}
		c.token, c.expiresAt = token, exp
	}
	return map[string]string{"authorization": "Bearer " + c.token}, nil
}

// RequireTransportSecurity implements credentials.PerRPCCredentials.
func (c *ServiceCredentials) RequireTransportSecurity() bool {
	return c.requireTLS
}
