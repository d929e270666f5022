package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/badger-tutors-api/pkg/middleware/requestid"
)

const (
	responseMetaKey = "response_meta"
	cacheHitKey     = "cache_hit"
)

// WithResponseMeta attaches a metadata map to the request. Handlers add to it
// with SetMeta and the envelope carries it as "meta".
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		meta := map[string]interface{}{}
		if id := requestid.Value(c); id != "" {
			meta["request_id"] = id
		}
		c.Set(responseMetaKey, meta)
		c.Next()
		if _, ok := meta["processing_time_ms"]; !ok {
			meta["processing_time_ms"] = time.Since(start).Milliseconds()
		}
	}
}

// SetCacheHit flags whether the payload came from the rating cache.
func SetCacheHit(c *gin.Context, hit bool) {
	SetMeta(c, cacheHitKey, hit)
}

func SetMeta(c *gin.Context, key string, value interface{}) {
	if meta := metaFor(c, true); meta != nil {
		meta[key] = value
	}
}

// ExtractMeta returns the metadata collected so far, or nil outside WithResponseMeta.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	return metaFor(c, false)
}

func metaFor(c *gin.Context, create bool) map[string]interface{} {
	if c == nil {
		return nil
	}
	if v, ok := c.Get(responseMetaKey); ok {
		if meta, ok := v.(map[string]interface{}); ok {
			return meta
		}
	}
	if !create {
		return nil
	}
	meta := map[string]interface{}{}
	c.Set(responseMetaKey, meta)
	return meta
}
