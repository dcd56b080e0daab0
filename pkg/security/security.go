package security

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	corsAllowHeaders = "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With"
	corsAllowMethods = "POST, OPTIONS, GET, PUT, DELETE, PATCH"
)

// CORS 中间件 仅放行配置白名单内的Origin，命中时携带Credentials；
// 缓存按 Vary: Origin 区分，预检请求直接以204收尾
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}

	return func(c *gin.Context) {
		header := c.Writer.Header()
		header.Add("Vary", "Origin")

		if origin := c.GetHeader("Origin"); origin != "" {
			if _, ok := allowed[origin]; ok {
				header.Set("Access-Control-Allow-Origin", origin)
				header.Set("Access-Control-Allow-Credentials", "true")
			}
		}
		header.Set("Access-Control-Allow-Headers", corsAllowHeaders)
		header.Set("Access-Control-Allow-Methods", corsAllowMethods)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Secure 中间件 基础响应头加固
func Secure() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		}
		c.Next()
	}
}

// ipLimiterPool 按客户端IP维护限流器，闲置条目定期回收
type ipLimiterPool struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time

	limit rate.Limit
	burst int
}

func newIPLimiterPool(maxRequests int, window time.Duration) *ipLimiterPool {
	return &ipLimiterPool{
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		limit:    rate.Every(window / time.Duration(maxRequests)),
		burst:    maxRequests,
	}
}

func (p *ipLimiterPool) allow(ip string) bool {
	p.mu.Lock()
	limiter, ok := p.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(p.limit, p.burst)
		p.limiters[ip] = limiter
	}
	p.lastSeen[ip] = time.Now()
	p.mu.Unlock()
	return limiter.Allow()
}

func (p *ipLimiterPool) sweep(expiry time.Duration) {
	p.mu.Lock()
	for ip, seen := range p.lastSeen {
		if time.Since(seen) > expiry {
			delete(p.limiters, ip)
			delete(p.lastSeen, ip)
		}
	}
	p.mu.Unlock()
}

// RateLimiter 限流中间件 按IP限流；每分钟回收一轮闲置超过3个窗口的IP
func RateLimiter(maxRequests int, window time.Duration) gin.HandlerFunc {
	pool := newIPLimiterPool(maxRequests, window)

	expiry := window * 3
	if expiry < time.Minute {
		expiry = time.Minute
	}
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			pool.sweep(expiry)
		}
	}()

	return func(c *gin.Context) {
		if !pool.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
