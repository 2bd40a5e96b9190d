package payment

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/repository"
)

type cachedClient struct {
	fingerprint string
	gateway     any
}

// ClientCache builds provider clients lazily and reuses them while the
// stored settings fingerprint is unchanged. PayPal construction performs a
// token round trip, so concurrent checkouts for the same settings collapse
// into one build via singleflight.
type ClientCache struct {
	mu      sync.RWMutex
	clients map[string]cachedClient // keyed by provider name
	group   singleflight.Group
}

func NewClientCache() *ClientCache {
	return &ClientCache{clients: make(map[string]cachedClient)}
}

func (c *ClientCache) get(provider, fingerprint string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cached, ok := c.clients[provider]
	if !ok || cached.fingerprint != fingerprint {
		return nil, false
	}
	return cached.gateway, true
}

func (c *ClientCache) put(provider, fingerprint string, gateway any) {
	c.mu.Lock()
	c.clients[provider] = cachedClient{fingerprint: fingerprint, gateway: gateway}
	c.mu.Unlock()
}

func (c *ClientCache) PayPal(ctx context.Context, s *repository.ProviderSettings) (PayPalGateway, error) {
	fp := s.Fingerprint()
	if gw, ok := c.get(ProviderPayPal, fp); ok {
		return gw.(PayPalGateway), nil
	}

	gw, err, _ := c.group.Do(ProviderPayPal+":"+fp, func() (any, error) {
		if cached, ok := c.get(ProviderPayPal, fp); ok {
			return cached, nil
		}
		gateway, err := newPayPalGateway(ctx, s.ClientID, s.ClientSecret, s.Sandbox())
		if err != nil {
			return nil, err
		}
		c.put(ProviderPayPal, fp, gateway)
		return gateway, nil
	})
	if err != nil {
		return nil, err
	}
	return gw.(PayPalGateway), nil
}

func (c *ClientCache) Stripe(s *repository.ProviderSettings) StripeGateway {
	fp := s.Fingerprint()
	if gw, ok := c.get(ProviderStripe, fp); ok {
		return gw.(StripeGateway)
	}
	gateway := newStripeGateway(s.APIKey)
	c.put(ProviderStripe, fp, gateway)
	return gateway
}

func (c *ClientCache) EuPago(s *repository.ProviderSettings) EuPagoGateway {
	fp := s.Fingerprint()
	if gw, ok := c.get(ProviderEuPago, fp); ok {
		return gw.(EuPagoGateway)
	}
	gateway := newEuPagoClient(s.APIKey, s.Sandbox())
	c.put(ProviderEuPago, fp, gateway)
	return gateway
}

func (c *ClientCache) Invalidate(provider string) {
	c.mu.Lock()
	delete(c.clients, provider)
	c.mu.Unlock()
}
