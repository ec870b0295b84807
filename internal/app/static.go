package app

import (
	"log/slog"
	"mime"
	"net/http"

	"github.com/jurnal-press/jurnal/web"
)

// assetTypes covers the embedded assets; minimal containers ship without
// /etc/mime.types and would otherwise serve them as text/plain.
var assetTypes = map[string]string{
	".css": "text/css; charset=utf-8",
	".js":  "text/javascript; charset=utf-8",
	".svg": "image/svg+xml",
}

func init() {
	for ext, typ := range assetTypes {
		if mime.TypeByExtension(ext) != "" {
			continue
		}
		if err := mime.AddExtensionType(ext, typ); err != nil {
			slog.Warn("register mime type", slog.String("ext", ext), slog.Any("error", err))
		}
	}
}

// staticHandler serves web/static under /static/ with a one-hour browser cache.
func staticHandler() (http.Handler, error) {
	staticFS, err := web.StaticFiles()
	if err != nil {
		return nil, err
	}
	fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		fileServer.ServeHTTP(w, r)
	}), nil
}
