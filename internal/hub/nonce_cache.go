package hub

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"viera/internal/device"
)

const (
	defaultNoncesPerDevice = 50
	defaultNonceExpiration = time.Hour
	nonceCleanupInterval   = 10 * time.Minute
)

// nonce format: unix milliseconds, a dash, 8 hex digits
var noncePattern = regexp.MustCompile(`^\d{13,}-[0-9a-fA-F]{8}$`)

type cachedResponse struct {
	response *device.ActionResponse
	stored   time.Time
}

// NonceStats summarizes the nonce cache
type NonceStats struct {
	Devices    int            `json:"devices"`
	Nonces     int            `json:"nonces"`
	MaxSize    int            `json:"max_size"`
	Expiration string         `json:"expiration"`
	PerDevice  map[string]int `json:"per_device"`
}

// NonceCache replays the response of an action when a client retries it with
// the same nonce, so a lost HTTP reply never turns into a second key press.
type NonceCache struct {
	mutex      sync.Mutex
	devices    map[string]*lru.Cache[string, cachedResponse]
	maxSize    int
	expiration time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewNonceCache creates a cache holding up to maxSize nonces per device
func NewNonceCache(maxSize int, expiration time.Duration) *NonceCache {
	if maxSize <= 0 {
		maxSize = defaultNoncesPerDevice
	}
	if expiration <= 0 {
		expiration = defaultNonceExpiration
	}

	nc := &NonceCache{
		devices:    make(map[string]*lru.Cache[string, cachedResponse]),
		maxSize:    maxSize,
		expiration: expiration,
		stop:       make(chan struct{}),
	}

	go nc.cleanupLoop()
	return nc
}

// GenerateNonce returns a fresh nonce in the accepted format
func GenerateNonce() string {
	random := make([]byte, 4)
	if _, err := rand.Read(random); err != nil {
		nanos := time.Now().UnixNano()
		random = []byte{byte(nanos >> 24), byte(nanos >> 16), byte(nanos >> 8), byte(nanos)}
	}
	return strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + hex.EncodeToString(random)
}

// ValidateNonce reports whether nonce has the timestamp-hex form
func ValidateNonce(nonce string) bool {
	return noncePattern.MatchString(nonce)
}

func (nc *NonceCache) deviceCache(deviceID string, create bool) *lru.Cache[string, cachedResponse] {
	nc.mutex.Lock()
	defer nc.mutex.Unlock()

	cache, exists := nc.devices[deviceID]
	if !exists && create {
		cache, _ = lru.New[string, cachedResponse](nc.maxSize)
		nc.devices[deviceID] = cache
	}
	return cache
}

// Lookup returns the stored response for nonce, if still fresh
func (nc *NonceCache) Lookup(deviceID, nonce string) (*device.ActionResponse, bool) {
	if nonce == "" {
		return nil, false
	}

	cache := nc.deviceCache(deviceID, false)
	if cache == nil {
		return nil, false
	}

	entry, found := cache.Get(nonce)
	if !found {
		return nil, false
	}
	if time.Since(entry.stored) > nc.expiration {
		cache.Remove(nonce)
		return nil, false
	}
	return entry.response, true
}

// Store remembers the response produced for nonce
func (nc *NonceCache) Store(deviceID, nonce string, response *device.ActionResponse) {
	if nonce == "" {
		return
	}
	nc.deviceCache(deviceID, true).Add(nonce, cachedResponse{response: response, stored: time.Now()})
}

// ClearDevice forgets every nonce of a device
func (nc *NonceCache) ClearDevice(deviceID string) {
	nc.mutex.Lock()
	defer nc.mutex.Unlock()
	delete(nc.devices, deviceID)
}

// Stats returns a snapshot of cache usage
func (nc *NonceCache) Stats() NonceStats {
	nc.mutex.Lock()
	defer nc.mutex.Unlock()

	stats := NonceStats{
		Devices:    len(nc.devices),
		MaxSize:    nc.maxSize,
		Expiration: nc.expiration.String(),
		PerDevice:  make(map[string]int, len(nc.devices)),
	}
	for deviceID, cache := range nc.devices {
		count := cache.Len()
		stats.Nonces += count
		stats.PerDevice[deviceID] = count
	}
	return stats
}

func (nc *NonceCache) cleanupLoop() {
	ticker := time.NewTicker(nonceCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			nc.removeExpired(time.Now())
		case <-nc.stop:
			return
		}
	}
}

func (nc *NonceCache) removeExpired(now time.Time) int {
	nc.mutex.Lock()
	defer nc.mutex.Unlock()

	removed := 0
	for deviceID, cache := range nc.devices {
		for _, nonce := range cache.Keys() {
			if entry, ok := cache.Peek(nonce); ok && now.Sub(entry.stored) > nc.expiration {
				cache.Remove(nonce)
				removed++
			}
		}
		if cache.Len() == 0 {
			delete(nc.devices, deviceID)
		}
	}
	return removed
}

// Close stops the cleanup loop and drops all entries
func (nc *NonceCache) Close() {
	nc.stopOnce.Do(func() {
		close(nc.stop)
	})

	nc.mutex.Lock()
	defer nc.mutex.Unlock()
	nc.devices = make(map[string]*lru.Cache[string, cachedResponse])
}
