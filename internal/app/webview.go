// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/filbot/iss-tracker/internal/fix"
	"github.com/filbot/iss-tracker/internal/render"
	"github.com/filbot/iss-tracker/internal/telemetry"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // development view on a trusted network
	},
}

// WebView serves the development dashboard: the latest rendered frame as
// PNG, a telemetry JSON endpoint and a websocket estimate stream.
type WebView struct {
	est *telemetry.Estimator

	mu     sync.RWMutex
	frame  []byte
	width  int
	height int
}

func NewWebView(est *telemetry.Estimator, width, height int) *WebView {
	return &WebView{est: est, width: width, height: height}
}

// SetFrame stores a copy of the most recent display frame. The render
// loop reuses its buffer, so the copy is required.
func (wv *WebView) SetFrame(buf []byte) {
	wv.mu.Lock()
	if cap(wv.frame) < len(buf) {
		wv.frame = make([]byte, len(buf))
	}
	wv.frame = wv.frame[:len(buf)]
	copy(wv.frame, buf)
	wv.mu.Unlock()
}

// Run serves until ctx is canceled.
func (wv *WebView) Run(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", wv.handleIndex)
	mux.HandleFunc("/api/telemetry", wv.handleTelemetry)
	mux.HandleFunc("/frame.png", wv.handleFrame)
	mux.HandleFunc("/ws", wv.handleWS)

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("web: listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (wv *WebView) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Estimate fix.Fix          `json:"estimate"`
		Status   telemetry.Status `json:"status"`
	}{
		Estimate: wv.est.Estimate(),
		Status:   wv.est.CurrentStatus(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

func (wv *WebView) handleFrame(w http.ResponseWriter, r *http.Request) {
	wv.mu.RLock()
	var buf []byte
	if wv.frame != nil {
		buf = make([]byte, len(wv.frame))
		copy(buf, wv.frame)
	}
	wv.mu.RUnlock()

	if buf == nil {
		http.Error(w, "no frame yet", http.StatusServiceUnavailable)
		return
	}

	img, err := render.DecodeImage(buf, wv.width, wv.height)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, img); err != nil {
		log.Printf("web: png encode error: %v", err)
	}
}

func (wv *WebView) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		if err := conn.WriteJSON(wv.est.Estimate()); err != nil {
			return
		}
	}
}

func (wv *WebView) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<title>ISS Tracker</title>
<style>
body { background: #111; color: #0de21b; font-family: monospace; margin: 2em; }
img { border: 1px solid #444; image-rendering: pixelated; width: 320px; }
pre { color: #ccc; }
</style>
</head>
<body>
<h2>ISS Tracker</h2>
<img id="frame" src="/frame.png" alt="no frame yet">
<pre id="telemetry">waiting for data...</pre>
<script>
setInterval(function () {
  document.getElementById('frame').src = '/frame.png?t=' + Date.now();
}, 1000);
var ws = new WebSocket('ws://' + location.host + '/ws');
ws.onmessage = function (ev) {
  var f = JSON.parse(ev.data);
  document.getElementById('telemetry').textContent = JSON.stringify(f, null, 2);
};
</script>
</body>
</html>
`
