// Package cache lets clients revalidate read-only API responses with ETags
// instead of downloading unchanged lists again.
package cache

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/gin-gonic/gin"
)

// bufferedWriter holds the body back until the ETag is known.
type bufferedWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	return w.body.Write(b)
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	return w.body.WriteString(s)
}

// Tag returns the strong ETag for a response body.
func Tag(body []byte) string {
	return fmt.Sprintf(`"%016x"`, xxhash.Sum64(body))
}

// ETag tags successful GET responses and answers 304 Not Modified when the
// client already holds the current body.
func ETag() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		original := c.Writer
		writer := &bufferedWriter{ResponseWriter: original, body: bytes.NewBuffer(nil)}
		c.Writer = writer

		c.Next()

		c.Writer = original
		if original.Status() != http.StatusOK {
			original.Write(writer.body.Bytes())
			return
		}

		tag := Tag(writer.body.Bytes())
		original.Header().Set("ETag", tag)
		original.Header().Set("Cache-Control", "private, no-cache")
		if matches(c.GetHeader("If-None-Match"), tag) {
			original.Header().Del("Content-Type")
			original.WriteHeader(http.StatusNotModified)
			original.WriteHeaderNow()
			return
		}
		original.Write(writer.body.Bytes())
	}
}

func matches(header, tag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == tag || candidate == "*" {
			return true
		}
	}
	return false
}
