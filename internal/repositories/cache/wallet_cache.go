package cache

import (
	"context"
	"encoding/json"
	"time"

	"payflow/internal/models"

	"github.com/redis/go-redis/v9"
)

const walletKeyPrefix = "wallet:customer:"

// WalletCache is a read-through cache for wallet lookups. Every balance
// mutation invalidates the customer's entry so stale balances are never
// served after a ledger write.
type WalletCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewWalletCache(client *redis.Client, ttl time.Duration) *WalletCache {
	return &WalletCache{client: client, ttl: ttl}
}

func (c *WalletCache) GetWallet(ctx context.Context, customerID string) (*models.Wallet, error) {
	val, err := c.client.Get(ctx, walletKeyPrefix+customerID).Result()
	if err != nil {
		return nil, err
	}
	var wallet models.Wallet
	if err := json.Unmarshal([]byte(val), &wallet); err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (c *WalletCache) SetWallet(ctx context.Context, wallet *models.Wallet) error {
	data, err := json.Marshal(wallet)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, walletKeyPrefix+wallet.CustomerID, data, c.ttl).Err()
}

func (c *WalletCache) InvalidateWallet(ctx context.Context, customerID string) error {
	return c.client.Del(ctx, walletKeyPrefix+customerID).Err()
}

func (c *WalletCache) Close() error {
	return c.client.Close()
}
