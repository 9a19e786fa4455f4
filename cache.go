package intesismqtt

import (
	"reflect"
	"sync"
)

type cacheMapType map[string]interface{}

// Cache remembers the last value published per source and forwards only
// changes to the broadcast function.
type Cache struct {
	broadcast  func(source string, data interface{})
	cacheMap   cacheMapType
	cacheMutex sync.Mutex
}

func newCache(broadcast func(source string, data interface{})) *Cache {
	return &Cache{
		broadcast: broadcast,
		cacheMap:  make(cacheMapType),
	}
}

func (c *Cache) update(name string, data interface{}) {
	c.cacheMutex.Lock()
	defer c.cacheMutex.Unlock()

	old := c.cacheMap[name]
	if !reflect.DeepEqual(old, data) {
		c.cacheMap[name] = data
		c.broadcast(name, data)
	}
}

func (c *Cache) get(name string) interface{} {
	c.cacheMutex.Lock()
	defer c.cacheMutex.Unlock()

	return c.cacheMap[name]
}

func (c *Cache) clear() {
	c.cacheMutex.Lock()
	defer c.cacheMutex.Unlock()

	c.cacheMap = make(cacheMapType)
}

func (c *Cache) dump() cacheMapType {
	c.cacheMutex.Lock()
	defer c.cacheMutex.Unlock()

	n := make(cacheMapType)
	for k, v := range c.cacheMap {
		n[k] = v
	}
	return n
}
