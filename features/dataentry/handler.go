package dataentry

import (
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"teamdict/features/table"
)

var entryFormTmpl = template.Must(template.New("entry").Parse(`<!DOCTYPE html>
<html>
<head><title>Populate {{.ShortName}}</title></head>
<body>
<h1>Populate {{.ShortName}}</h1>
<p>One entry per line, formatted as <code>key,value</code>. The link expires at {{.Expires}}.</p>
<form method="POST" action="/data_entry/{{.Ext}}">
<textarea name="data" rows="20" cols="60"></textarea>
<br>
<input type="submit" value="Submit">
</form>
</body>
</html>
`))

var entryErrorPage = `<!DOCTYPE html>
<html><body><h1>Try again</h1><p>This entry link is invalid or has expired.</p></body></html>
`

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Form serves GET /data_entry/{ext}: the entry form while the token holds,
// an error page once it has expired or been used.
func (h *Handler) Form(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ext := r.PathValue("ext")

	t, err := h.service.Verify(ctx, ext)
	if err != nil {
		if !errors.Is(err, ErrTokenInvalid) {
			slog.ErrorContext(ctx, "failed to verify entry token", "error", err)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusForbidden)
		if _, err := w.Write([]byte(entryErrorPage)); err != nil {
			slog.ErrorContext(ctx, "failed to write response", "error", err)
		}
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err = entryFormTmpl.Execute(w, map[string]string{
		"ShortName": table.ShortName(t.TableName),
		"Ext":       t.Ext,
		"Expires":   t.ExpDate.Format("15:04:05 MST"),
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to render entry form", "error", err)
	}
}

// Submit serves POST /data_entry/{ext}: accepts the rows either as the
// "data" form field or as a raw text/csv body, and answers with the queued
// task ID for polling.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ext := r.PathValue("ext")

	var data string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "text/csv") {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "message": "unreadable body"})
			return
		}
		data = string(body)
	} else {
		if err := r.ParseForm(); err != nil {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "message": "malformed form"})
			return
		}
		data = r.PostFormValue("data")
	}

	taskID, err := h.service.Submit(ctx, ext, strings.NewReader(data))
	switch {
	case errors.Is(err, ErrTokenInvalid):
		h.writeJSON(w, http.StatusForbidden, map[string]any{"status": "error", "message": "link invalid or expired"})
	case errors.Is(err, ErrNoRows):
		h.writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "message": "no usable rows"})
	case err != nil:
		slog.ErrorContext(ctx, "failed to queue data entry", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]any{"status": "error", "message": "internal error"})
	default:
		h.writeJSON(w, http.StatusAccepted, map[string]any{
			"status": "success",
			"data":   map[string]string{"task_id": taskID},
		})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
