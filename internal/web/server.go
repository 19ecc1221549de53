// Package web serves the dashboard API. Presentation is a thin static page;
// every piece of state comes from /api/data or the /api/stream websocket.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"surveypos/internal/catalog"
	"surveypos/internal/engine"
	"surveypos/internal/ned"
	"surveypos/internal/relay"
	"surveypos/internal/wifi"
)

// StatusSources supplies the appliance-health pieces of /api/status that
// live outside the engine. Any field may be nil.
type StatusSources struct {
	Device string
	Relay  func() relay.Snapshot
	Wifi   func() wifi.Status
}

func Handler(eng *engine.Engine, stream *Broadcaster, st StatusSources) http.Handler {
	mux := http.NewServeMux()
	start := time.Now().UTC()

	mux.HandleFunc("/api/data", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		writeJSON(w, buildDataResponse(eng.Data(time.Now().UTC())))
	})

	mux.HandleFunc("/api/set_target", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		eng.SetTargetToCurrent()
		redirectHome(w, r)
	})

	mux.HandleFunc("/api/next_offset", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		cursorMove(w, r, eng.NextOffset)
	})

	mux.HandleFunc("/api/prev_offset", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		cursorMove(w, r, eng.PrevOffset)
	})

	mux.HandleFunc("/api/select_offset", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		index, err := strconv.Atoi(r.URL.Query().Get("index"))
		if err != nil {
			http.Error(w, "missing or invalid index parameter", http.StatusBadRequest)
			return
		}
		if err := eng.SelectOffset(index); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		redirectHome(w, r)
	})

	mux.HandleFunc("/api/add_offset", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		var v ned.Vector
		q := r.URL.Query()
		for _, p := range []struct {
			key string
			dst *float64
		}{{"n", &v.N}, {"e", &v.E}, {"d", &v.D}} {
			f, err := strconv.ParseFloat(q.Get(p.key), 64)
			if err != nil {
				http.Error(w, "missing or invalid "+p.key+" parameter", http.StatusBadRequest)
				return
			}
			*p.dst = f
		}
		if err := eng.AddOffset(v); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		redirectHome(w, r)
	})

	mux.HandleFunc("/api/upload_csv", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(string(body)) == "" {
			http.Error(w, "empty body", http.StatusBadRequest)
			return
		}
		added := eng.ImportOffsets(string(body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, "{\"added\":%d}\n", added)
	})

	mux.HandleFunc("/api/start_survey", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		if err := eng.StartSurvey(time.Now().UTC()); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		redirectHome(w, r)
	})

	mux.HandleFunc("/api/stop_survey", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		if err := eng.StopSurvey(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		redirectHome(w, r)
	})

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		resp := map[string]any{
			"service":    "surveypos",
			"now_utc":    time.Now().UTC().Format(time.RFC3339Nano),
			"uptime_sec": int64(time.Since(start).Seconds()),
			"device":     st.Device,
		}
		if st.Relay != nil {
			resp["relay"] = st.Relay()
		}
		if st.Wifi != nil {
			resp["wifi"] = st.Wifi()
		}
		writeJSON(w, resp)
	})

	if stream != nil {
		mux.HandleFunc("/api/stream", streamHandler(stream))
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprintf(w, "<!doctype html><html><head><meta charset=\"utf-8\"><title>surveypos</title></head><body>")
		_, _ = fmt.Fprintf(w, "<h1>surveypos</h1>")
		_, _ = fmt.Fprintf(w, "<p>Data: <a href=\"/api/data\">/api/data</a> &middot; Status: <a href=\"/api/status\">/api/status</a></p>")
		_, _ = fmt.Fprintf(w, "</body></html>")
	})

	return mux
}

// cursorMove handles next_offset/prev_offset: an empty catalog gets a
// plain-text notice instead of an error so the dashboard can show it inline.
func cursorMove(w http.ResponseWriter, r *http.Request, move func() error) {
	if err := move(); err != nil {
		if err == catalog.ErrEmpty {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = fmt.Fprintln(w, "offset catalog is empty")
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	redirectHome(w, r)
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}

func Serve(ctx context.Context, listenAddr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
