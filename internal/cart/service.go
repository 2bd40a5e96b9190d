package cart

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/domain"
)

// Service fronts the persisted cart with a read-through cache. It is the
// "server cart" side of checkout; guest/international shoppers bypass it with
// client-supplied items.
type Service struct {
	repo  Repository
	cache Cache
	sfg   singleflight.Group // collapses concurrent misses for the same user
}

func NewService(repo Repository, cache Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

func (s *Service) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			log.Printf("cart cache get error: %v", err)
		}

		cart, err = s.repo.GetCart(ctx, userID)
		if errors.Is(err, ErrCartNotFound) {
			return &domain.Cart{
				UserID:    userID,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}, nil
		}
		if err != nil {
			return nil, err
		}

		go func() {
			if err := s.cache.Set(context.Background(), userID, cart); err != nil {
				log.Printf("cart cache set error: %v", err)
			}
		}()

		return cart, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Cart), nil
}

func (s *Service) AddItem(ctx context.Context, userID string, item domain.CartItem) error {
	if err := s.repo.AddItem(ctx, userID, item); err != nil {
		return err
	}
	s.invalidate(userID)
	return nil
}

// ClearCart consumes the server cart. Called by the payment create-phase
// after a provider intent succeeds; a missing cart is not an error.
func (s *Service) ClearCart(ctx context.Context, userID string) error {
	err := s.repo.DeleteCart(ctx, userID)
	if err != nil && !errors.Is(err, ErrCartNotFound) {
		return err
	}
	s.invalidate(userID)
	return nil
}

func (s *Service) invalidate(userID string) {
	if err := s.cache.Delete(context.Background(), userID); err != nil {
		log.Printf("cart cache delete error: %v", err)
	}
}
