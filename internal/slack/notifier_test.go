package slack_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamdict/internal/slack"
)

func TestNotifier_Notify(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))
	}))
	defer srv.Close()

	n := slack.NewNotifier(2*time.Second, "")
	msg := slack.TextMessage("Table `widgets` created!")
	require.NoError(t, n.Notify(context.Background(), srv.URL, msg))

	assert.Equal(t, "Table `widgets` created!", got["text"])
	assert.Equal(t, true, got["mrkdwn"])
	assert.NotContains(t, got, "attachments")
}

func TestNotifier_Notify_WithButtons(t *testing.T) {
	var got slack.Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	drop := slack.NewButton("drop", "Drop widgets")
	drop.Style = slack.StyleDanger
	drop.Confirm = &slack.Confirm{
		Title:       "Are you sure?",
		Text:        "All data in widgets will be lost!",
		OKText:      "Dropping widgets...",
		DismissText: "Phew that was close",
	}
	msg := slack.Message{
		Text: "Are you sure you want to drop widgets?",
		Attachments: []slack.Attachment{{
			Text:       "This action cannot be undone.",
			CallbackID: "acme_c1_widgets",
			Actions:    []slack.Button{drop, slack.NewButton("cancel", "Cancel")},
		}},
	}

	n := slack.NewNotifier(2*time.Second, "")
	require.NoError(t, n.Notify(context.Background(), srv.URL, msg))

	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "acme_c1_widgets", got.Attachments[0].CallbackID)
	require.Len(t, got.Attachments[0].Actions, 2)
	assert.Equal(t, slack.StyleDanger, got.Attachments[0].Actions[0].Style)
	require.NotNil(t, got.Attachments[0].Actions[0].Confirm)
	assert.Equal(t, "Are you sure?", got.Attachments[0].Actions[0].Confirm.Title)
}

func TestNotifier_Notify_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	n := slack.NewNotifier(2*time.Second, "")
	err := n.Notify(context.Background(), srv.URL, slack.TextMessage("hi"))
	assert.Error(t, err)
}

func TestNotifier_DeleteOriginal(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	n := slack.NewNotifier(2*time.Second, "")
	require.NoError(t, n.DeleteOriginal(context.Background(), srv.URL))
	assert.Equal(t, true, got["delete_original"])
}
