package execution

import (
	"bytes"
	"sync"
	"unicode/utf8"
)

// DefaultOutputLimit caps what one run may print, stdout and stderr together
const DefaultOutputLimit = 1 << 20

// truncationMarker ends a transcript that hit the limit
const truncationMarker = "\n[output truncated]\n"

// limitedBuffer keeps the first limit bytes written to it and reports the
// overflow once through onLimit. Writes never fail, so pipe copies keep draining.
type limitedBuffer struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	limit    int
	exceeded bool
	onLimit  func()
}

func newLimitedBuffer(limit int, onLimit func()) *limitedBuffer {
	if limit <= 0 {
		limit = DefaultOutputLimit
	}
	return &limitedBuffer{limit: limit, onLimit: onLimit}
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	if b.exceeded {
		b.mu.Unlock()
		return len(p), nil
	}

	room := b.limit - b.buf.Len()
	if len(p) <= room {
		b.buf.Write(p)
		b.mu.Unlock()
		return len(p), nil
	}

	// Cut on a rune boundary so the transcript stays valid UTF-8
	for room > 0 && !utf8.RuneStart(p[room]) {
		room--
	}
	b.buf.Write(p[:room])
	b.exceeded = true
	onLimit := b.onLimit
	b.mu.Unlock()

	if onLimit != nil {
		onLimit()
	}
	return len(p), nil
}

func (b *limitedBuffer) WriteString(s string) (int, error) {
	return b.Write([]byte(s))
}

// Exceeded reports whether output was dropped
func (b *limitedBuffer) Exceeded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exceeded
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.exceeded {
		return b.buf.String() + truncationMarker
	}
	return b.buf.String()
}
