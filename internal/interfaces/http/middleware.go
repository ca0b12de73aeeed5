package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"liveassist/internal/entities"
	"liveassist/internal/infrastructure"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

const callerKey = "caller"

type Middleware struct {
	jwtSecret []byte
	log       zerolog.Logger
}

func NewMiddleware(secret string, log zerolog.Logger) *Middleware {
	return &Middleware{
		jwtSecret: []byte(secret),
		log:       log,
	}
}

// AuthRequired validates the bearer token and stores the caller
// (tenant_id, sub, role claims) in the context.
func (m *Middleware) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required", "code": "UNAUTHORIZED"})
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.jwtSecret, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token", "code": "UNAUTHORIZED"})
			return
		}

		tenantID, _ := claims["tenant_id"].(string)
		agentID, _ := claims["sub"].(string)
		role, _ := claims["role"].(string)
		if tenantID == "" || agentID == "" || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Incomplete token claims", "code": "UNAUTHORIZED"})
			return
		}

		c.Set(callerKey, entities.Caller{TenantID: tenantID, AgentID: agentID, Role: role})
		c.Next()
	}
}

// SupervisorRequired must follow AuthRequired.
func (m *Middleware) SupervisorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !callerFrom(c).IsSupervisor() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Supervisor access required", "code": entities.CodeForbidden})
			return
		}
		c.Next()
	}
}

func callerFrom(c *gin.Context) entities.Caller {
	if v, ok := c.Get(callerKey); ok {
		if caller, ok := v.(entities.Caller); ok {
			return caller
		}
	}
	return entities.Caller{}
}

// RateLimitPerUser limits requests per authenticated agent (must follow AuthRequired).
func (m *Middleware) RateLimitPerUser(limiter *infrastructure.MessageRateLimiter) gin.HandlerFunc {
	return rateLimit(limiter, func(c *gin.Context) string {
		caller := callerFrom(c)
		return caller.TenantID + "/" + caller.AgentID
	})
}

// RateLimitPerIP limits anonymous clients by remote address.
func (m *Middleware) RateLimitPerIP(limiter *infrastructure.MessageRateLimiter) gin.HandlerFunc {
	return rateLimit(limiter, func(c *gin.Context) string {
		return c.ClientIP()
	})
}

func rateLimit(limiter *infrastructure.MessageRateLimiter, key func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		k := key(c)
		if !limiter.Allow(k) {
			wait := limiter.WaitTime(k)
			c.Header("Retry-After", fmt.Sprintf("%d", int(wait.Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded", "code": "RATE_LIMITED"})
			return
		}
		c.Next()
	}
}

// RequestLogger logs one line per request.
func (m *Middleware) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := m.log.Info()
		if status >= http.StatusInternalServerError {
			ev = m.log.Error()
		}
		caller := callerFrom(c)
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("tenant_id", caller.TenantID).
			Str("agent_id", caller.AgentID).
			Msg("http request")
	}
}

// CORSMiddleware allows Cross-Origin requests
func (m *Middleware) CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Tracking-Token, If-None-Match")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, PATCH, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "ETag, X-Poll-Interval, Retry-After")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// SecurityHeaders adds security headers to prevent common attacks
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("X-Content-Type-Options", "nosniff")
		c.Writer.Header().Set("X-Frame-Options", "DENY")
		c.Writer.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Writer.Header().Set("Content-Security-Policy", "default-src 'self'")

		c.Next()
	}
}

// RequestSizeLimiter limits request body size to prevent DoS
func RequestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
