package redis

import (
	"context"
	"encoding/json"
	"time"

	"invoice-ai-extraction/internal/domain/model"
)

const dictionaryKey = "synonyms:snapshot"

// DictionaryCache holds the serialized synonym table so each job start does
// not hit Postgres. Invalidated on every synonym write.
type DictionaryCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewDictionaryCache(client RedisClient, ttl time.Duration) *DictionaryCache {
	return &DictionaryCache{client: client, ttl: ttl}
}

func (c *DictionaryCache) Get(ctx context.Context) ([]*model.Synonym, bool) {
	data, err := c.client.Get(ctx, dictionaryKey)
	if err != nil {
		return nil, false
	}
	var synonyms []*model.Synonym
	if err := json.Unmarshal([]byte(data), &synonyms); err != nil {
		return nil, false
	}
	return synonyms, true
}

func (c *DictionaryCache) Store(ctx context.Context, synonyms []*model.Synonym) error {
	data, err := json.Marshal(synonyms)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, dictionaryKey, data, c.ttl)
}

func (c *DictionaryCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, dictionaryKey)
}
