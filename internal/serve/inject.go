package serve

import (
	"net/http"
	"strings"
)

// clientScript is the reload client served at /livereload.js. It keeps
// the build token from the first SSE message and reloads when a later
// message carries a different one.
const clientScript = `(() => {
  if (window.__SHELFBUILDER_LR__) return;
  window.__SHELFBUILDER_LR__ = true;
  function connect() {
    const es = new EventSource('/livereload');
    let first = true, current = null;
    es.onmessage = (e) => {
      try {
        const p = JSON.parse(e.data);
        if (first) { current = p.build; first = false; return; }
        if (p.build && p.build !== current) { location.reload(); }
      } catch (_) {}
    };
    es.onerror = () => { es.close(); setTimeout(connect, 2000); };
  }
  connect();
})();
`

const scriptTag = `<script async src="/livereload.js"></script>`

// maxInjectSize caps how much HTML the injector buffers before giving up
// and streaming the response unmodified.
const maxInjectSize = 512 * 1024

// injectReloadScript wraps a handler and splices the reload script tag
// into HTML responses just before </body>. Non-HTML responses and pages
// larger than maxInjectSize pass through untouched.
func injectReloadScript(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		htmlish := path == "" || strings.HasSuffix(path, "/") || strings.HasSuffix(path, ".html")
		if !htmlish {
			next.ServeHTTP(w, r)
			return
		}

		inj := &scriptInjector{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(inj, r)
		inj.finalize()
	})
}

// scriptInjector buffers an HTML response so the script tag can be
// inserted before the closing body tag.
type scriptInjector struct {
	http.ResponseWriter
	statusCode    int
	buffer        []byte
	started       bool
	headerWritten bool
	passthrough   bool
}

func (s *scriptInjector) WriteHeader(code int) {
	s.statusCode = code
	if s.passthrough {
		s.ResponseWriter.WriteHeader(code)
		s.headerWritten = true
	}
}

func (s *scriptInjector) Write(data []byte) (int, error) {
	if !s.started {
		s.started = true
		ct := s.ResponseWriter.Header().Get("Content-Type")
		if ct != "" && !strings.Contains(ct, "text/html") {
			s.passthrough = true
			s.ResponseWriter.WriteHeader(s.statusCode)
			s.headerWritten = true
			return s.ResponseWriter.Write(data)
		}
	}
	if s.passthrough {
		return s.ResponseWriter.Write(data)
	}

	if len(s.buffer)+len(data) > maxInjectSize {
		s.passthrough = true
		s.ResponseWriter.Header().Del("Content-Length")
		s.ResponseWriter.WriteHeader(s.statusCode)
		s.headerWritten = true
		if len(s.buffer) > 0 {
			if _, err := s.ResponseWriter.Write(s.buffer); err != nil {
				return 0, err
			}
			s.buffer = nil
		}
		return s.ResponseWriter.Write(data)
	}

	s.buffer = append(s.buffer, data...)
	return len(data), nil
}

func (s *scriptInjector) finalize() {
	if s.passthrough {
		return
	}
	if !s.headerWritten && len(s.buffer) == 0 {
		s.ResponseWriter.WriteHeader(s.statusCode)
		return
	}

	out := strings.Replace(string(s.buffer), "</body>", scriptTag+"</body>", 1)
	s.ResponseWriter.Header().Del("Content-Length")
	s.ResponseWriter.WriteHeader(s.statusCode)
	_, _ = s.ResponseWriter.Write([]byte(out))
}
