package main

import (
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/hemant/imq"
)

const indexTemplate = `<!DOCTYPE html>
<html>
<head><title>imq dashboard</title></head>
<body>
<h1>imq dashboard</h1>
<table border="1" cellpadding="6">
<tr><th>Queue</th><th>Ready</th><th>Delayed</th><th>In-flight</th><th>Watcher lock held</th></tr>
{{range .}}
<tr><td>{{.Name}}</td><td>{{.Ready}}</td><td>{{.Delayed}}</td><td>{{.InFlight}}</td><td>{{.WatcherHeld}}</td></tr>
{{end}}
</table>
</body>
</html>`

type dashboardHandler struct {
	inspector *imq.Inspector
	names     []string
	tmpl      *template.Template
}

func newDashboardHandler(inspector *imq.Inspector, names []string) *dashboardHandler {
	return &dashboardHandler{
		inspector: inspector,
		names:     names,
		tmpl:      template.Must(template.New("index").Parse(indexTemplate)),
	}
}

func (h *dashboardHandler) handleIndex(w http.ResponseWriter, r *http.Request) {
	infos, err := h.inspector.GetQueues(r.Context(), h.names)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.tmpl.Execute(w, infos); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *dashboardHandler) handleAPIQueues(w http.ResponseWriter, r *http.Request) {
	infos, err := h.inspector.GetQueues(r.Context(), h.names)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(infos)
}
