package livereload

import (
	"log/slog"
	"net/http"

	"git.home.luguber.info/inful/sitebuild/internal/logfields"
)

const (
	// EventsPath is the SSE endpoint.
	EventsPath = "/livereload"
	// ScriptPath serves the client script.
	ScriptPath = "/livereload.js"
)

// Script is the browser client. "css" events swap stylesheet hrefs with a cache-busting query,
// anything else reloads the page.
const Script = `(() => {
  if (window.__SITEBUILD_LR__) return;
  window.__SITEBUILD_LR__ = true;
  function refreshStyles() {
    document.querySelectorAll('link[rel="stylesheet"]').forEach((link) => {
      const url = new URL(link.href, location.href);
      if (url.origin !== location.origin) return;
      url.searchParams.set('livereload', Date.now().toString());
      link.href = url.toString();
    });
  }
  function connect() {
    const es = new EventSource('` + EventsPath + `');
    es.onmessage = (e) => {
      let ev;
      try { ev = JSON.parse(e.data); } catch (_) { return; }
      if (ev.kind === 'css') {
        console.log('[sitebuild] ' + (ev.task || 'styles') + ' changed, refreshing stylesheets');
        refreshStyles();
        return;
      }
      console.log('[sitebuild] ' + (ev.task || 'site') + ' changed, reloading');
      location.reload();
    };
    es.onerror = () => {
      console.warn('[sitebuild] livereload error - retrying');
      es.close();
      setTimeout(connect, 2000);
    };
  }
  connect();
})();
`

// ScriptHandler serves Script.
func ScriptHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		if _, err := w.Write([]byte(Script)); err != nil {
			slog.Error("failed to write livereload script", logfields.Error(err))
		}
	})
}
