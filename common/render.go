package common

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// CustomEvent renders a raw SSE line. gin's sse render escapes payloads in ways
// upstream-compatible clients do not expect, so chunks are written verbatim.
type CustomEvent struct {
	Data string
}

func (e CustomEvent) Render(w http.ResponseWriter) error {
	e.WriteContentType(w)
	_, err := fmt.Fprintf(w, "%s\n\n", e.Data)
	return err
}

func (e CustomEvent) WriteContentType(w http.ResponseWriter) {
	header := w.Header()
	if _, ok := header["Content-Type"]; !ok {
		header["Content-Type"] = []string{"text/event-stream"}
	}
}

// SetEventStreamHeaders prepares the response for SSE streaming.
func SetEventStreamHeaders(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("Transfer-Encoding", "chunked")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
}

// Done writes the terminal SSE sentinel.
func Done(c *gin.Context) {
	c.Render(-1, CustomEvent{Data: "data: [DONE]"})
}
