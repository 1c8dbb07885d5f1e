package runtime

import (
	"net/http"
	"strings"
	"time"

	"github.com/drblury/interactor/internal/runtime/jsoncodec"
	metricspkg "github.com/drblury/interactor/internal/runtime/metrics"
)

const defaultWebUIPort = 8081

type webUIInteractor struct {
	InteractorInfo
	Stats *InteractorStats `json:"stats"`
}

type webUIMetrics struct {
	Enabled  bool                `json:"enabled"`
	Snapshot metricspkg.Snapshot `json:"snapshot"`
}

// StartWebUIServer mounts the read-only introspection API when the web UI is enabled.
func (d *Dispatcher) StartWebUIServer() {
	if !d.Conf.WebUIEnabled {
		return
	}

	port := d.Conf.WebUIPort
	if port == 0 {
		port = defaultWebUIPort
	}

	d.RegisterHTTPHandler(port, "/api/interactors", http.HandlerFunc(d.handleGetInteractors))
	d.RegisterHTTPHandler(port, "/api/metrics", http.HandlerFunc(d.handleGetMetrics))
}

func (d *Dispatcher) handleGetInteractors(w http.ResponseWriter, r *http.Request) {
	if d.writeCORS(w, r) {
		return
	}

	infos := d.registry.Registrations()
	out := make([]webUIInteractor, 0, len(infos))
	for _, info := range infos {
		item := webUIInteractor{InteractorInfo: info}
		if info.Stats != nil {
			item.Stats = info.Stats.Snapshot()
		}
		out = append(out, item)
	}
	d.writeJSON(w, out)
}

func (d *Dispatcher) handleGetMetrics(w http.ResponseWriter, r *http.Request) {
	if d.writeCORS(w, r) {
		return
	}

	out := webUIMetrics{Enabled: d.metrics != nil}
	if d.metrics != nil {
		out.Snapshot = d.metrics.Snapshot()
	} else {
		out.Snapshot.CollectedAt = time.Now().UTC()
	}
	d.writeJSON(w, out)
}

// writeCORS sets the CORS headers and reports whether the request was a
// preflight that has been answered.
func (d *Dispatcher) writeCORS(w http.ResponseWriter, r *http.Request) bool {
	w.Header().Set("Content-Type", "application/json")

	if len(d.Conf.WebUICORSAllowedOrigins) > 0 {
		origin := r.Header.Get("Origin")
		if allowed := d.getAllowedCORSOrigin(origin); allowed != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
	}

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return true
	}
	return false
}

func (d *Dispatcher) writeJSON(w http.ResponseWriter, v any) {
	body, err := jsoncodec.Marshal(v)
	if err != nil {
		d.Logger.Error("Failed to encode web UI response", err, nil)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(body)
}

// getAllowedCORSOrigin checks if the request origin is allowed and returns the appropriate
// Access-Control-Allow-Origin value.
func (d *Dispatcher) getAllowedCORSOrigin(requestOrigin string) string {
	for _, allowed := range d.Conf.WebUICORSAllowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if strings.EqualFold(allowed, requestOrigin) {
			return requestOrigin
		}
	}
	return ""
}
