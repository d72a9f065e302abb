package batching

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/liamzebedee/noirbatch-go/core"
	"github.com/liamzebedee/noirbatch-go/core/bb"
)

// VKCache memoises decoded verification keys by file path and content digest.
type VKCache interface {
	GetVK(key string) ([]core.Field, bool, error)
	PutVK(key string, vk []core.Field) error
}

type MemoryVKCache struct {
	mu      sync.RWMutex
	entries map[string][]core.Field
}

func NewMemoryVKCache() *MemoryVKCache {
	return &MemoryVKCache{entries: make(map[string][]core.Field)}
}

func (c *MemoryVKCache) GetVK(key string) ([]core.Field, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	vk, ok := c.entries[key]
	return core.CloneFields(vk), ok, nil
}

func (c *MemoryVKCache) PutVK(key string, vk []core.Field) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = core.CloneFields(vk)
	return nil
}

// LoadVK reads a vk_fields.json file, or the one inside a directory written
// by `bb write_vk`. Entries are keyed by the absolute path and the keccak256
// of the file contents, so a rewritten key is never served stale. A nil
// cache disables caching.
func LoadVK(cache VKCache, path string) ([]core.Field, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, bb.VKFieldsFile)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	key := vkCacheKey(abs, data)

	if cache != nil {
		vk, ok, err := cache.GetVK(key)
		if err != nil {
			return nil, err
		}
		if ok {
			return vk, nil
		}
	}

	vk, err := bb.DecodeFields(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if len(vk) == 0 {
		return nil, configErrorf("verification key %s is empty", path)
	}
	if cache != nil {
		if err := cache.PutVK(key, vk); err != nil {
			return nil, err
		}
	}
	return vk, nil
}

func vkCacheKey(path string, data []byte) string {
	return path + "@" + keccakHex(data)
}

// LoadKeys loads all three verification keys through cache.
func LoadKeys(cache VKCache, semaphorePath, leavesPath, nodesPath string) (Keys, error) {
	var keys Keys
	var err error
	if keys.Semaphore, err = LoadVK(cache, semaphorePath); err != nil {
		return Keys{}, err
	}
	if keys.Leaves, err = LoadVK(cache, leavesPath); err != nil {
		return Keys{}, err
	}
	if keys.Nodes, err = LoadVK(cache, nodesPath); err != nil {
		return Keys{}, err
	}
	return keys, nil
}
