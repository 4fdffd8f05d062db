// Package google verifies Google Sign-In ID tokens against the JWKS
// published at the issuer's OpenID discovery document.
package google

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"
)

const keyCacheTTL = time.Hour

type jwkSet struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// Verifier checks ID token signatures with RSA keys cached from the JWKS
// endpoint. Keys refresh after keyCacheTTL, or immediately when a token
// arrives signed with an unknown kid.
type Verifier struct {
	issuer   string
	clientID string
	client   *http.Client

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

func NewVerifier(issuer, clientID string) *Verifier {
	return &Verifier{
		issuer:   issuer,
		clientID: clientID,
		client:   &http.Client{Timeout: 10 * time.Second},
		keys:     make(map[string]*rsa.PublicKey),
	}
}

// VerifyIDToken validates the signature, issuer, audience and expiry of a
// Google ID token and returns its claims.
func (v *Verifier) VerifyIDToken(ctx context.Context, token string) (map[string]any, error) {
	header, claims, signature, signingInput, err := splitToken(token)
	if err != nil {
		return nil, err
	}
	if alg, _ := header["alg"].(string); alg != "RS256" {
		return nil, fmt.Errorf("unexpected signing algorithm %q", alg)
	}

	kid, _ := header["kid"].(string)
	key, err := v.signingKey(ctx, kid)
	if err != nil {
		return nil, err
	}

	digest := sha256.Sum256([]byte(signingInput))
	if err := rsa.VerifyPKCS1v15(key, crypto.SHA256, digest[:], signature); err != nil {
		return nil, errors.New("invalid token signature")
	}

	iss, _ := claims["iss"].(string)
	if !issuerMatches(iss, v.issuer) {
		return nil, errors.New("invalid issuer")
	}
	if !audienceMatches(claims["aud"], v.clientID) {
		return nil, errors.New("invalid audience")
	}
	if exp, ok := claims["exp"].(float64); ok && time.Now().Unix() > int64(exp) {
		return nil, errors.New("token expired")
	}
	return claims, nil
}

// signingKey returns the cached key for kid, refetching the JWKS once when
// the kid is unknown so key rotation does not lock users out for an hour.
func (v *Verifier) signingKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key, ok := v.keys[kid]
	stale := time.Since(v.fetchedAt) >= keyCacheTTL
	v.mu.RUnlock()
	if ok && !stale {
		return key, nil
	}

	if err := v.refresh(ctx); err != nil {
		return nil, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	key, ok = v.keys[kid]
	if !ok {
		return nil, fmt.Errorf("no signing key for kid %q", kid)
	}
	return key, nil
}

func (v *Verifier) refresh(ctx context.Context) error {
	jwksURI, err := v.discoverJWKSURI(ctx)
	if err != nil {
		return err
	}

	var set jwkSet
	if err := v.getJSON(ctx, jwksURI, &set); err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := rsaKeyFromJWK(k)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return errors.New("jwks returned no usable keys")
	}

	v.mu.Lock()
	v.keys = keys
	v.fetchedAt = time.Now()
	v.mu.Unlock()
	return nil
}

func (v *Verifier) discoverJWKSURI(ctx context.Context) (string, error) {
	var doc struct {
		JWKSURI string `json:"jwks_uri"`
	}
	url := strings.TrimSuffix(v.issuer, "/") + "/.well-known/openid-configuration"
	if err := v.getJSON(ctx, url, &doc); err != nil {
		return "", fmt.Errorf("fetch openid configuration: %w", err)
	}
	if doc.JWKSURI == "" {
		return "", errors.New("openid configuration missing jwks_uri")
	}
	return doc.JWKSURI, nil
}

func (v *Verifier) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// issuerMatches tolerates the scheme-less issuer variant Google emits in
// older tokens.
func issuerMatches(iss, expected string) bool {
	if iss == expected {
		return true
	}
	return "https://"+iss == expected
}

// audienceMatches accepts the aud claim as a single string or a list.
func audienceMatches(aud any, clientID string) bool {
	switch v := aud.(type) {
	case string:
		return v == clientID
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == clientID {
				return true
			}
		}
	case []string:
		for _, s := range v {
			if s == clientID {
				return true
			}
		}
	}
	return false
}

func rsaKeyFromJWK(j jwk) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(j.N)
	if err != nil {
		return nil, err
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(j.E)
	if err != nil {
		return nil, err
	}
	e := 0
	for _, b := range eBytes {
		e = e<<8 + int(b)
	}
	if e == 0 {
		return nil, errors.New("invalid public exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: e}, nil
}

func splitToken(token string) (header, claims map[string]any, signature []byte, signingInput string, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, nil, nil, "", errors.New("malformed token")
	}
	headerJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, nil, nil, "", err
	}
	claimsJSON, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, nil, nil, "", err
	}
	signature, err = base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, nil, nil, "", err
	}
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, nil, nil, "", err
	}
	if err := json.Unmarshal(claimsJSON, &claims); err != nil {
		return nil, nil, nil, "", err
	}
	return header, claims, signature, parts[0] + "." + parts[1], nil
}
