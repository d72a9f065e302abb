package store

import (
	"database/sql"

	"github.com/liamzebedee/noirbatch-go/core"
)

const vkKeyPrefix = "vk:"

// VKCache keeps verification keys in the datastores table so they survive
// restarts. It satisfies batching.VKCache.
type VKCache struct {
	db *sql.DB
}

func NewVKCache(db *sql.DB) *VKCache {
	return &VKCache{db: db}
}

func (c *VKCache) GetVK(key string) ([]core.Field, bool, error) {
	vk, err := LoadDataStore[VKStore](c.db, vkKeyPrefix+key)
	if err != nil {
		return nil, false, err
	}
	if len(vk.Fields) == 0 {
		return nil, false, nil
	}
	return vk.Fields, true, nil
}

func (c *VKCache) PutVK(key string, vk []core.Field) error {
	return SaveDataStore(c.db, vkKeyPrefix+key, VKStore{Fields: vk})
}
