package command

import (
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"teamdict/internal/slack"
)

// Handler terminates the slash-command webhooks. Each POST must be answered
// within Slack's response budget, so the handler only verifies the
// signature and enqueues; all real work happens in the worker.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	h.receive(w, r, JobLookup)
}

func (h *Handler) Modify(w http.ResponseWriter, r *http.Request) {
	h.receive(w, r, JobModify)
}

func (h *Handler) Response(w http.ResponseWriter, r *http.Request) {
	h.receive(w, r, JobResponse)
}

// Redirect sends browser GETs on the webhook paths to the landing page.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request, jobType JobType) {
	ctx := r.Context()

	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read request body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	timestamp := r.Header.Get(slack.TimestampHeader)
	signature := r.Header.Get(slack.SignatureHeader)
	if !h.service.Authorize(timestamp, rawBody, signature) {
		slog.WarnContext(ctx, "signature verification failed", "job_type", jobType)
		w.WriteHeader(http.StatusForbidden)
		if _, err := w.Write([]byte("Access denied")); err != nil {
			slog.ErrorContext(ctx, "failed to write response", "error", err)
		}
		return
	}

	// The body was consumed for verification, so the form is parsed from
	// the captured bytes rather than via r.ParseForm.
	values, err := url.ParseQuery(string(rawBody))
	if err != nil {
		slog.WarnContext(ctx, "malformed form body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	form := make(map[string]string, len(values))
	for k := range values {
		form[k] = values.Get(k)
	}

	headers := map[string]string{
		slack.TimestampHeader: timestamp,
		slack.SignatureHeader: signature,
	}

	if _, err := h.service.Enqueue(ctx, jobType, headers, form, string(rawBody)); err != nil {
		slog.ErrorContext(ctx, "failed to enqueue envelope", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	// Empty 200 acknowledges receipt; the reply arrives via response_url.
	w.WriteHeader(http.StatusOK)
}
