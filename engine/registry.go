package engine

import "sync"

var (
	mu sync.RWMutex
	v1 Driver[Config1]
	v2 Driver[Config2]
)

// RegisterV1 installs the first generation driver. Bindings call it from init.
func RegisterV1(d Driver[Config1]) {
	mu.Lock()
	v1 = d
	mu.Unlock()
}

// RegisterV2 installs the second generation driver. Bindings call it from init.
func RegisterV2(d Driver[Config2]) {
	mu.Lock()
	v2 = d
	mu.Unlock()
}

// V1Driver returns the registered first generation driver, if any.
func V1Driver() (Driver[Config1], bool) {
	mu.RLock()
	defer mu.RUnlock()
	return v1, v1 != nil
}

// V2Driver returns the registered second generation driver, if any.
func V2Driver() (Driver[Config2], bool) {
	mu.RLock()
	defer mu.RUnlock()
	return v2, v2 != nil
}
