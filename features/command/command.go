package command

import (
	"encoding/json"
	"time"

	"teamdict/internal/slack"
)

// JobType tags an envelope with the endpoint family it entered through,
// which constrains the verbs it may dispatch to.
type JobType string

const (
	JobLookup   JobType = "lookup"
	JobModify   JobType = "modify"
	JobResponse JobType = "response"
)

// Envelope is the immutable unit of work handed from the HTTP boundary to
// the queue. It carries everything the worker needs to re-derive trust
// (headers and the raw body for signature re-verification) plus the parsed
// form. The ID doubles as the idempotency key: at-least-once delivery may
// hand the same envelope to a worker twice, but side effects run once.
type Envelope struct {
	ID         string            `json:"id"`
	Type       JobType           `json:"type"`
	Headers    map[string]string `json:"headers"`
	Form       map[string]string `json:"form"`
	RawBody    string            `json:"raw_body"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
}

func (e *Envelope) Timestamp() string { return e.Headers[slack.TimestampHeader] }
func (e *Envelope) Signature() string { return e.Headers[slack.SignatureHeader] }

// ResponsePayload is the decoded interactive-button callback carried in the
// "payload" form field of a response job.
type ResponsePayload struct {
	Actions    []Action `json:"actions"`
	CallbackID string   `json:"callback_id"`
	Team       struct {
		Domain string `json:"domain"`
	} `json:"team"`
	Channel struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"channel"`
	User struct {
		ID string `json:"id"`
	} `json:"user"`
	MessageTS   string `json:"message_ts"`
	ResponseURL string `json:"response_url"`
}

// Action is one pressed button; Value selects the response handler.
type Action struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// UtilityEnvelope wraps a utility task published to the utility topic. The
// JobID references a pollable utility_jobs row.
type UtilityEnvelope struct {
	JobID   string          `json:"job_id"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}
