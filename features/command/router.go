package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"teamdict/features/table"
	"teamdict/internal/slack"
)

// Notifier delivers out-of-band replies. Satisfied by *slack.Notifier.
type Notifier interface {
	Notify(ctx context.Context, responseURL string, msg slack.Message) error
	DeleteOriginal(ctx context.Context, responseURL string) error
	DeleteMessage(ctx context.Context, channelID, messageTS string) error
}

// Tables is the key-value table collaborator. Satisfied by *table.Service.
type Tables interface {
	Create(ctx context.Context, scope table.Scope, short string) error
	Drop(ctx context.Context, long string) error
	Has(ctx context.Context, scope table.Scope, short string) (bool, error)
	Add(ctx context.Context, scope table.Scope, short, key, value string) error
	Delete(ctx context.Context, scope table.Scope, short, key string) error
	DeleteNamed(ctx context.Context, long, key string) error
	Lookup(ctx context.Context, scope table.Scope, key, short string) ([]table.Match, error)
	List(ctx context.Context, scope table.Scope) ([]string, error)
}

// DataEntry issues bulk-entry tokens. Satisfied by *dataentry.Service.
type DataEntry interface {
	IssueToken(ctx context.Context, tableName, responseURL, userID, channelID, messageTS string) (string, error)
}

type routeKey struct {
	command string
	jobType JobType
	verb    string
}

type routeFunc func(ctx context.Context, env *Envelope, tokens []string) error

// Router is the dequeue-side dispatcher. It re-derives trust from envelope
// data, parses the command text, and hands off to the matching handler.
// Domain failures become user notifications; only infrastructure errors are
// returned, so the queue retries exactly the jobs worth retrying.
type Router struct {
	secret    string
	notifier  Notifier
	tables    Tables
	dataEntry DataEntry
	routes    map[routeKey]routeFunc
}

func NewRouter(secret string, notifier Notifier, tables Tables, dataEntry DataEntry) *Router {
	r := &Router{
		secret:    secret,
		notifier:  notifier,
		tables:    tables,
		dataEntry: dataEntry,
	}
	r.routes = map[routeKey]routeFunc{
		{"/dbmod", JobModify, "create"}:   r.createTable,
		{"/dbmod", JobModify, "drop"}:     r.confirmDrop,
		{"/dbmod", JobModify, "add"}:      r.addRow,
		{"/dbmod", JobModify, "populate"}: r.populate,
		{"/dbmod", JobModify, "delete"}:   r.deleteRow,
		{"/lookup", JobLookup, "show"}:    r.showTables,
	}
	return r
}

// Route processes one dequeued envelope.
func (r *Router) Route(ctx context.Context, env *Envelope) error {
	if env.Type == JobResponse {
		return r.routeResponse(ctx, env)
	}
	return r.routeCommand(ctx, env)
}

func (r *Router) routeCommand(ctx context.Context, env *Envelope) error {
	form := env.Form
	responseURL := form["response_url"]
	slashCmd := form["command"]

	if !r.authorized(env) {
		slog.WarnContext(ctx, "envelope failed re-verification", "envelope_id", env.ID)
		r.send(ctx, responseURL, slack.TextMessage("Access denied!"))
		return nil
	}

	tokens := strings.Fields(strings.ToLower(form["text"]))
	if len(tokens) == 0 {
		r.sendHelp(ctx, slashCmd, responseURL, "")
		return nil
	}

	verb := tokens[0]
	if verb == "help" {
		r.sendHelp(ctx, slashCmd, responseURL, "")
		return nil
	}

	if fn, ok := r.routes[routeKey{slashCmd, env.Type, verb}]; ok {
		return fn(ctx, env, tokens)
	}

	// /lookup treats any short command without a recognized verb as a key
	// lookup, optionally scoped to one table. Longer input is a mistyped
	// command, not a key.
	if slashCmd == "/lookup" && env.Type == JobLookup {
		if len(tokens) <= 2 {
			return r.lookupKey(ctx, env, tokens)
		}
		r.sendHelp(ctx, slashCmd, responseURL, "Accepted commands")
		return nil
	}

	r.sendHelp(ctx, slashCmd, responseURL, "Command not found.")
	return nil
}

func (r *Router) routeResponse(ctx context.Context, env *Envelope) error {
	var payload ResponsePayload
	if err := json.Unmarshal([]byte(env.Form["payload"]), &payload); err != nil {
		slog.ErrorContext(ctx, "malformed interactive payload, dropping", "envelope_id", env.ID, "error", err)
		return nil
	}
	responseURL := payload.ResponseURL

	if !r.authorized(env) {
		slog.WarnContext(ctx, "envelope failed re-verification", "envelope_id", env.ID)
		r.send(ctx, responseURL, slack.TextMessage("Access denied!"))
		return nil
	}

	if len(payload.Actions) == 0 {
		slog.WarnContext(ctx, "interactive payload without actions, dropping", "envelope_id", env.ID)
		return nil
	}

	action := payload.Actions[0]
	switch action.Value {
	case "cancel":
		if err := r.notifier.DeleteOriginal(ctx, responseURL); err != nil {
			slog.ErrorContext(ctx, "failed to delete original message", "error", err)
		}
		return nil

	case "done":
		msg := slack.TextMessage("Thank You!")
		msg.ReplaceOriginal = true
		r.send(ctx, responseURL, msg)
		return nil

	case "drop":
		return r.executeDrop(ctx, payload)

	case "delete":
		return r.executeDelete(ctx, payload)

	case "url_button":
		if err := r.notifier.DeleteMessage(ctx, payload.Channel.ID, payload.MessageTS); err != nil {
			slog.ErrorContext(ctx, "failed to delete message", "error", err)
		}
		return nil

	default:
		r.send(ctx, responseURL, slack.TextMessage(fmt.Sprintf("Action `%s` not supported!", action.Value)))
		return nil
	}
}

func (r *Router) createTable(ctx context.Context, env *Envelope, tokens []string) error {
	responseURL := env.Form["response_url"]
	if len(tokens) < 2 {
		r.sendHelp(ctx, env.Form["command"], responseURL, "Accepted commands")
		return nil
	}
	short := tokens[1]

	err := r.tables.Create(ctx, scopeOf(env), short)
	switch {
	case errors.Is(err, table.ErrTableExists):
		r.send(ctx, responseURL, slack.TextMessage(fmt.Sprintf("Table `%s` exists.", short)))
	case errors.Is(err, table.ErrBadName):
		r.send(ctx, responseURL, slack.TextMessage(fmt.Sprintf("`%s` is not a usable table name.", short)))
	case err != nil:
		return err
	default:
		r.send(ctx, responseURL, slack.TextMessage(fmt.Sprintf("Table `%s` created!", short)))
	}
	return nil
}

// confirmDrop is the first half of the two-phase drop: it only renders the
// confirmation prompt. The DROP itself runs in executeDrop when the pressed
// button comes back as a response job.
func (r *Router) confirmDrop(ctx context.Context, env *Envelope, tokens []string) error {
	responseURL := env.Form["response_url"]
	if len(tokens) < 2 {
		r.sendHelp(ctx, env.Form["command"], responseURL, "Accepted commands")
		return nil
	}
	short := tokens[1]

	long, err := table.LongName(scopeOf(env), short)
	if err != nil {
		r.send(ctx, responseURL, slack.TextMessage(fmt.Sprintf("`%s` is not a usable table name.", short)))
		return nil
	}

	dropBtn := slack.NewButton("drop", fmt.Sprintf("Drop %s", short))
	dropBtn.Style = slack.StyleDanger
	dropBtn.Confirm = &slack.Confirm{
		Title:       "Are you sure?",
		Text:        fmt.Sprintf("All data in %s will be lost!", short),
		OKText:      fmt.Sprintf("Dropping %s...", short),
		DismissText: "Phew that was close",
	}

	msg := slack.Message{
		Text:   fmt.Sprintf("Are you sure you want to drop %s?", short),
		Mrkdwn: true,
		Attachments: []slack.Attachment{{
			Text:       "This action cannot be undone.",
			CallbackID: long,
			MrkdwnIn:   []string{"text"},
			Actions:    []slack.Button{dropBtn, slack.NewButton("cancel", "Cancel")},
		}},
	}
	r.send(ctx, responseURL, msg)
	return nil
}

func (r *Router) executeDrop(ctx context.Context, payload ResponsePayload) error {
	short := table.ShortName(payload.CallbackID)

	err := r.tables.Drop(ctx, payload.CallbackID)
	switch {
	case errors.Is(err, table.ErrTableMissing):
		r.send(ctx, payload.ResponseURL, slack.TextMessage(fmt.Sprintf("No table named `%s` exists.", short)))
	case err != nil:
		return err
	default:
		r.send(ctx, payload.ResponseURL, slack.TextMessage(fmt.Sprintf("Table `%s` dropped!", short)))
	}
	return nil
}

func (r *Router) addRow(ctx context.Context, env *Envelope, tokens []string) error {
	responseURL := env.Form["response_url"]
	if len(tokens) < 4 {
		r.sendHelp(ctx, env.Form["command"], responseURL, "Accepted commands")
		return nil
	}
	short, key, value := tokens[1], tokens[2], tokens[3]

	err := r.tables.Add(ctx, scopeOf(env), short, key, value)
	switch {
	case errors.Is(err, table.ErrTableMissing):
		r.send(ctx, responseURL, slack.TextMessage(fmt.Sprintf("No table named `%s` exists.", short)))
	case errors.Is(err, table.ErrDuplicateKey):
		r.send(ctx, responseURL, slack.TextMessage(fmt.Sprintf("Key `%s` already exists in `%s`", key, short)))
	case err != nil:
		return err
	default:
		r.send(ctx, responseURL, slack.TextMessage(fmt.Sprintf("Key `%s` added to `%s`", key, short)))
	}
	return nil
}

func (r *Router) deleteRow(ctx context.Context, env *Envelope, tokens []string) error {
	responseURL := env.Form["response_url"]
	if len(tokens) < 3 {
		r.sendHelp(ctx, env.Form["command"], responseURL, "Accepted commands")
		return nil
	}
	short, key := tokens[1], tokens[2]

	err := r.tables.Delete(ctx, scopeOf(env), short, key)
	switch {
	case errors.Is(err, table.ErrTableMissing):
		r.send(ctx, responseURL, slack.TextMessage(fmt.Sprintf("No table named `%s` exists.", short)))
	case errors.Is(err, table.ErrKeyMissing):
		r.send(ctx, responseURL, slack.TextMessage(fmt.Sprintf("Key `%s` was not found in `%s`", key, short)))
	case err != nil:
		return err
	default:
		r.send(ctx, responseURL, slack.TextMessage(fmt.Sprintf("Key `%s` deleted from `%s`", key, short)))
	}
	return nil
}

func (r *Router) executeDelete(ctx context.Context, payload ResponsePayload) error {
	short := table.ShortName(payload.CallbackID)
	key := payload.Actions[0].Name

	err := r.tables.DeleteNamed(ctx, payload.CallbackID, key)
	switch {
	case errors.Is(err, table.ErrTableMissing):
		r.send(ctx, payload.ResponseURL, slack.TextMessage(fmt.Sprintf("No table named `%s` exists.", short)))
	case errors.Is(err, table.ErrKeyMissing):
		r.send(ctx, payload.ResponseURL, slack.TextMessage(fmt.Sprintf("Key `%s` was not found in `%s`", key, short)))
	case err != nil:
		return err
	default:
		r.send(ctx, payload.ResponseURL, slack.TextMessage(fmt.Sprintf("Key `%s` deleted from `%s`", key, short)))
	}
	return nil
}

func (r *Router) populate(ctx context.Context, env *Envelope, tokens []string) error {
	responseURL := env.Form["response_url"]
	if len(tokens) < 2 {
		r.sendHelp(ctx, env.Form["command"], responseURL, "Accepted commands")
		return nil
	}
	short := tokens[1]
	scope := scopeOf(env)

	has, err := r.tables.Has(ctx, scope, short)
	if err != nil {
		return err
	}
	if !has {
		r.send(ctx, responseURL, slack.TextMessage(fmt.Sprintf("No table named `%s` exists.", short)))
		return nil
	}

	long, err := table.LongName(scope, short)
	if err != nil {
		r.send(ctx, responseURL, slack.TextMessage(fmt.Sprintf("`%s` is not a usable table name.", short)))
		return nil
	}

	entryURL, err := r.dataEntry.IssueToken(ctx, long, responseURL, env.Form["user_id"], env.Form["channel_id"], env.Form["message_ts"])
	if err != nil {
		return err
	}

	openBtn := slack.NewButton("url_button", "Open entry form")
	openBtn.URL = entryURL
	openBtn.Style = slack.StylePrimary

	msg := slack.Message{
		Text:   fmt.Sprintf("Populate `%s` here:", short),
		Mrkdwn: true,
		Attachments: []slack.Attachment{{
			Text:       "The link is single-use and expires shortly.",
			CallbackID: long,
			MrkdwnIn:   []string{"text"},
			Actions:    []slack.Button{openBtn, slack.NewButton("done", "Done"), slack.NewButton("cancel", "Cancel")},
		}},
	}
	r.send(ctx, responseURL, msg)
	return nil
}

func (r *Router) showTables(ctx context.Context, env *Envelope, _ []string) error {
	responseURL := env.Form["response_url"]
	channelName := env.Form["channel_name"]

	shorts, err := r.tables.List(ctx, scopeOf(env))
	if err != nil {
		return err
	}

	if len(shorts) == 0 {
		r.send(ctx, responseURL, slack.TextMessage(fmt.Sprintf("No tables found in %s.", channelName)))
		return nil
	}

	plural := ""
	if len(shorts) > 1 {
		plural = "s"
	}
	r.send(ctx, responseURL, slack.TextMessage(
		fmt.Sprintf("%d table%s found in %s.", len(shorts), plural, channelName),
		strings.Join(shorts, "\n"),
	))
	return nil
}

func (r *Router) lookupKey(ctx context.Context, env *Envelope, tokens []string) error {
	responseURL := env.Form["response_url"]
	key := tokens[0]
	short := ""
	if len(tokens) == 2 {
		short = tokens[1]
	}

	matches, err := r.tables.Lookup(ctx, scopeOf(env), key, short)
	switch {
	case errors.Is(err, table.ErrTableMissing):
		r.send(ctx, responseURL, slack.TextMessage(fmt.Sprintf("No table named `%s` exists.", short)))
		return nil
	case err != nil:
		return err
	}

	switch len(matches) {
	case 0:
		r.send(ctx, responseURL, slack.TextMessage(fmt.Sprintf("No key found matching `%s`.", key)))
	case 1:
		r.send(ctx, responseURL, slack.TextMessage(
			fmt.Sprintf("`%s` found in %s:", key, matches[0].Table),
			fmt.Sprintf("%s: %s", key, matches[0].Value),
		))
	default:
		var lines strings.Builder
		for _, m := range matches {
			fmt.Fprintf(&lines, "%s: %s\n", m.Table, m.Value)
		}
		r.send(ctx, responseURL, slack.TextMessage(
			fmt.Sprintf("`%s` found in %d tables:", key, len(matches)),
			lines.String(),
		))
	}
	return nil
}

func (r *Router) authorized(env *Envelope) bool {
	return slack.Fresh(env.Timestamp()) &&
		slack.Verify(r.secret, env.Timestamp(), []byte(env.RawBody), env.Signature())
}

// sendHelp answers with usage, visible only to the user who mistyped.
func (r *Router) sendHelp(ctx context.Context, slashCmd, responseURL, message string) {
	usage := fmt.Sprintf("Usage: %s <command> [<args>] [--help]", slashCmd)
	var msg slack.Message
	if message == "" {
		msg = slack.TextMessage(usage)
	} else {
		msg = slack.TextMessage(message, usage)
	}
	msg.ResponseType = slack.ResponseEphemeral
	r.send(ctx, responseURL, msg)
}

// send delivers a best-effort notification; failures are logged, never
// surfaced as a worker fault.
func (r *Router) send(ctx context.Context, responseURL string, msg slack.Message) {
	if responseURL == "" {
		slog.WarnContext(ctx, "no response_url, dropping notification", "text", msg.Text)
		return
	}
	if err := r.notifier.Notify(ctx, responseURL, msg); err != nil {
		slog.ErrorContext(ctx, "failed to deliver notification", "error", err)
	}
}

func scopeOf(env *Envelope) table.Scope {
	return table.Scope{
		TeamDomain: env.Form["team_domain"],
		ChannelID:  env.Form["channel_id"],
	}
}
