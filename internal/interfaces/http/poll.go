package http

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zeebo/blake3"
)

// ETag is the strong validator of a poll body.
func ETag(body []byte) string {
	sum := blake3.Sum256(body)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

// writePoll renders a poll response. An unchanged body answers 304 to a
// client presenting the previous ETag.
func writePoll(c *gin.Context, interval time.Duration, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "code": "INTERNAL"})
		return
	}

	etag := ETag(body)
	c.Header("ETag", etag)
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Poll-Interval", strconv.Itoa(int(interval.Seconds())))

	if etagMatches(c.GetHeader("If-None-Match"), etag) {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}
