package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/singleflight"

	"github.com/joao-fontenele/momo-checkout/internal/domain"
)

// CachedRepository puts a short-TTL redis cache in front of product reads.
// Stock read through the cache is advisory only: the authoritative guard
// against overselling is the conditional UPDATE in Reserve, so a slightly
// stale cached stock value never corrupts a checkout. Reserve and Release
// invalidate the cached entry.
type CachedRepository struct {
	repo   *ProductRepository
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

func NewCachedRepository(repo *ProductRepository, client *redis.Client, ttl time.Duration) *CachedRepository {
	return &CachedRepository{
		repo:   repo,
		client: client,
		ttl:    ttl,
	}
}

func cacheKey(productID string) string {
	return "product:" + productID
}

func (c *CachedRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	if product, ok := c.lookup(ctx, id); ok {
		return product, nil
	}

	// singleflight collapses concurrent cache misses into one DB fetch.
	value, err, _ := c.group.Do(id, func() (interface{}, error) {
		if product, ok := c.lookup(ctx, id); ok {
			return product, nil
		}

		product, err := c.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if product != nil {
			c.store(ctx, product)
		}
		return product, nil
	})
	if err != nil {
		return nil, err
	}

	return value.(*domain.Product), nil
}

func (c *CachedRepository) Reserve(ctx context.Context, productID string, quantity int) error {
	if err := c.repo.Reserve(ctx, productID, quantity); err != nil {
		return err
	}
	c.invalidate(ctx, productID)
	return nil
}

func (c *CachedRepository) Release(ctx context.Context, productID string, quantity int) error {
	if err := c.repo.Release(ctx, productID, quantity); err != nil {
		return err
	}
	c.invalidate(ctx, productID)
	return nil
}

func (c *CachedRepository) lookup(ctx context.Context, id string) (*domain.Product, bool) {
	value, err := c.client.Get(ctx, cacheKey(id)).Result()
	if err != nil {
		// redis.Nil is a miss; anything else degrades to the DB.
		return nil, false
	}

	var product domain.Product
	if err := json.Unmarshal([]byte(value), &product); err != nil {
		return nil, false
	}
	return &product, true
}

func (c *CachedRepository) store(ctx context.Context, product *domain.Product) {
	payload, err := json.Marshal(product)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, cacheKey(product.ID), payload, c.ttl).Err()
}

func (c *CachedRepository) invalidate(ctx context.Context, productID string) {
	_ = c.client.Del(ctx, cacheKey(productID)).Err()
}
