package web

import (
	"html/template"
	"net/http"
)

var resultPage = template.Must(template.New("result").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
{{if .Success}}<p>You can close this window and return to the chat.</p>{{end}}
</body>
</html>
`))

type pageData struct {
	Title   string
	Message string
	Success bool
}

func (s *Server) renderResult(w http.ResponseWriter, r *http.Request, success bool, message string) {
	status, title := http.StatusOK, "Authorization complete"
	if !success {
		status, title = http.StatusBadRequest, "Authorization failed"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := resultPage.Execute(w, pageData{Title: title, Message: message, Success: success}); err != nil {
		s.logger.Error(r.Context(), "render result page", "error", err)
	}
}
