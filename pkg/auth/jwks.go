package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"
)

const jwksTTL = 5 * time.Minute

// jwksCache holds fetched RSA key sets per issuer. Sets expire after five
// minutes; concurrent refreshes of the same issuer are coalesced behind the
// write lock.
type jwksCache struct {
	mu      sync.RWMutex
	sets    map[string]*cachedKeySet
	client  *http.Client
	timeout time.Duration
	apiKey  string
	now     func() time.Time
}

type cachedKeySet struct {
	keys      map[string]*rsa.PublicKey
	expiresAt time.Time
}

func newJWKSCache(apiKey string, timeout time.Duration) *jwksCache {
	return &jwksCache{
		sets:    map[string]*cachedKeySet{},
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		apiKey:  apiKey,
		now:     time.Now,
	}
}

// key returns the RSA public key for kid under issuer, refreshing the
// issuer's set when absent or expired.
func (c *jwksCache) key(ctx context.Context, issuer, kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	set, ok := c.sets[issuer]
	if ok && c.now().Before(set.expiresAt) {
		if k, found := set.keys[kid]; found {
			c.mu.RUnlock()
			return k, nil
		}
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok = c.sets[issuer]
	if !ok || !c.now().Before(set.expiresAt) {
		keys, err := c.fetch(ctx, issuer)
		if err != nil {
			return nil, err
		}
		set = &cachedKeySet{keys: keys, expiresAt: c.now().Add(jwksTTL)}
		c.sets[issuer] = set
	}
	k, found := set.keys[kid]
	if !found {
		return nil, fmt.Errorf("no key %q in key set for %s", kid, issuer)
	}
	return k, nil
}

func (c *jwksCache) fetch(ctx context.Context, issuer string) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, issuer+"/.well-known/jwks.json", nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("key set fetch returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var doc struct {
		Keys []struct {
			Kty string `json:"kty"`
			Kid string `json:"kid"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	keys := map[string]*rsa.PublicKey{}
	for _, k := range doc.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := rsaFromJWK(k.N, k.E)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return nil, errors.New("key set has no usable RSA keys")
	}
	return keys, nil
}

func rsaFromJWK(n, e string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, err
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, err
	}
	if len(nb) == 0 || len(eb) == 0 {
		return nil, errors.New("empty modulus or exponent")
	}
	exp := 0
	for _, b := range eb {
		exp = exp<<8 | int(b)
	}
	if exp <= 0 {
		return nil, errors.New("invalid exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: exp}, nil
}
