package livereload

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MaxInjectSize is the largest response buffered for injection; bigger bodies pass through.
const MaxInjectSize = 512 * 1024

// ScriptTag is inserted into HTML responses.
const ScriptTag = `<script async src="` + ScriptPath + `"></script>`

// Inject wraps next so HTML responses carry the client script before the closing body tag.
func Inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		if p != "" && !strings.HasSuffix(p, "/") && !strings.HasSuffix(p, ".html") && !strings.HasSuffix(p, ".htm") {
			next.ServeHTTP(w, r)
			return
		}
		iw := &injector{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(iw, r)
		iw.finalize()
	})
}

// InsertScript returns body with ScriptTag before the last closing body tag, or appended when
// the document has none.
func InsertScript(body []byte) []byte {
	at := closingBodyOffset(body)
	if at < 0 {
		return append(append([]byte{}, body...), ScriptTag...)
	}
	out := make([]byte, 0, len(body)+len(ScriptTag))
	out = append(out, body[:at]...)
	out = append(out, ScriptTag...)
	return append(out, body[at:]...)
}

func closingBodyOffset(body []byte) int {
	z := html.NewTokenizer(bytes.NewReader(body))
	offset, found := 0, -1
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return found
		}
		raw := len(z.Raw())
		if tt == html.EndTagToken {
			name, _ := z.TagName()
			if atom.Lookup(name) == atom.Body {
				found = offset
			}
		}
		offset += raw
	}
}

// injector buffers HTML bodies up to MaxInjectSize; anything else is passed through.
type injector struct {
	http.ResponseWriter
	status        int
	buffer        []byte
	buffering     bool
	passthrough   bool
	headerWritten bool
}

func (i *injector) WriteHeader(code int) {
	i.status = code
	if i.passthrough {
		i.ResponseWriter.WriteHeader(code)
		i.headerWritten = true
	}
}

func (i *injector) startPassthrough() {
	i.passthrough = true
	if !i.headerWritten {
		i.ResponseWriter.WriteHeader(i.status)
		i.headerWritten = true
	}
}

func (i *injector) Write(data []byte) (int, error) {
	if !i.passthrough && !i.buffering {
		ct := i.Header().Get("Content-Type")
		if (ct != "" && !strings.Contains(ct, "text/html")) || i.status != http.StatusOK {
			i.startPassthrough()
		} else {
			i.buffering = true
		}
	}
	if i.passthrough {
		return i.ResponseWriter.Write(data)
	}
	if len(i.buffer)+len(data) > MaxInjectSize {
		i.Header().Del("Content-Length")
		i.startPassthrough()
		if len(i.buffer) > 0 {
			if _, err := i.ResponseWriter.Write(i.buffer); err != nil {
				return 0, err
			}
			i.buffer = nil
		}
		return i.ResponseWriter.Write(data)
	}
	i.buffer = append(i.buffer, data...)
	return len(data), nil
}

func (i *injector) finalize() {
	if i.passthrough || !i.buffering {
		if !i.headerWritten {
			i.ResponseWriter.WriteHeader(i.status)
		}
		return
	}
	out := InsertScript(i.buffer)
	i.Header().Set("Content-Length", strconv.Itoa(len(out)))
	i.ResponseWriter.WriteHeader(i.status)
	_, _ = i.ResponseWriter.Write(out)
}
