package dataentry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRepo struct {
	mock.Mock
}

func (m *MockRepo) Save(ctx context.Context, token *Token) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockRepo) Get(ctx context.Context, ext string) (*Token, error) {
	args := m.Called(ctx, ext)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Token), args.Error(1)
}

func (m *MockRepo) Consume(ctx context.Context, ext string) error {
	args := m.Called(ctx, ext)
	return args.Error(0)
}

func (m *MockRepo) PurgeExpired(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockQueue struct {
	mock.Mock
}

func (m *MockQueue) EnqueueUtility(ctx context.Context, kind string, payload any) (string, error) {
	args := m.Called(ctx, kind, payload)
	return args.String(0), args.Error(1)
}

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Pair
	}{
		{
			name:  "simple pairs",
			input: "coffee,in the kitchen\nwifi,Guest2026",
			want:  []Pair{{Key: "coffee", Value: "in the kitchen"}, {Key: "wifi", Value: "Guest2026"}},
		},
		{
			name:  "extra fields fold into value",
			input: "address,1 Main St,Suite 2,Springfield",
			want:  []Pair{{Key: "address", Value: "1 Main St Suite 2 Springfield"}},
		},
		{
			name:  "short lines skipped",
			input: "justakey\ncoffee,here\n\n",
			want:  []Pair{{Key: "coffee", Value: "here"}},
		},
		{
			name:  "later duplicate wins in place",
			input: "coffee,old spot\nwifi,Guest2026\ncoffee,new spot",
			want:  []Pair{{Key: "coffee", Value: "new spot"}, {Key: "wifi", Value: "Guest2026"}},
		},
		{
			name:  "whitespace trimmed",
			input: " coffee , in the kitchen \r\n",
			want:  []Pair{{Key: "coffee", Value: "in the kitchen"}},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseCSV(strings.NewReader(tc.input))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestIssueTokenReturnsEntryURL(t *testing.T) {
	repo := new(MockRepo)
	svc := NewService(repo, new(MockQueue), "https://teamdict.example.com", 2*time.Minute)

	repo.On("PurgeExpired", mock.Anything).Return(nil)

	var saved *Token
	repo.On("Save", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { saved = args.Get(1).(*Token) }).
		Return(nil)

	url, err := svc.IssueToken(context.Background(), "acme_c1_widgets",
		"https://hooks.slack.com/commands/T1/abc", "U123", "c1", "1531420618.000100")
	require.NoError(t, err)

	require.NotNil(t, saved)
	assert.NotEmpty(t, saved.Ext)
	assert.Equal(t, "acme_c1_widgets", saved.TableName)
	assert.Equal(t, "https://teamdict.example.com/data_entry/"+saved.Ext, url)
	assert.WithinDuration(t, time.Now().UTC().Add(2*time.Minute), saved.ExpDate, 5*time.Second)
}

func TestIssueTokenSurvivesPurgeFailure(t *testing.T) {
	repo := new(MockRepo)
	svc := NewService(repo, new(MockQueue), "https://teamdict.example.com", 2*time.Minute)

	repo.On("PurgeExpired", mock.Anything).Return(errors.New("lock timeout"))
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)

	url, err := svc.IssueToken(context.Background(), "acme_c1_widgets", "", "", "", "")
	require.NoError(t, err)
	assert.Contains(t, url, "/data_entry/")
}

func TestSubmitConsumesTokenAndQueuesTask(t *testing.T) {
	repo := new(MockRepo)
	queue := new(MockQueue)
	svc := NewService(repo, queue, "https://teamdict.example.com", 2*time.Minute)

	token := &Token{
		Ext:         "tok-1",
		TableName:   "acme_c1_widgets",
		ResponseURL: "https://hooks.slack.com/commands/T1/abc",
	}
	repo.On("Get", mock.Anything, "tok-1").Return(token, nil)
	repo.On("Consume", mock.Anything, "tok-1").Return(nil)

	var payload TaskPayload
	queue.On("EnqueueUtility", mock.Anything, Kind, mock.Anything).
		Run(func(args mock.Arguments) { payload = args.Get(2).(TaskPayload) }).
		Return("job-1", nil)

	jobID, err := svc.Submit(context.Background(), "tok-1", strings.NewReader("coffee,kitchen\nwifi,Guest2026"))
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)

	assert.Equal(t, "acme_c1_widgets", payload.TableName)
	assert.Equal(t, token.ResponseURL, payload.ResponseURL)
	assert.Len(t, payload.Pairs, 2)
	repo.AssertExpectations(t)
}

func TestSubmitInvalidToken(t *testing.T) {
	repo := new(MockRepo)
	queue := new(MockQueue)
	svc := NewService(repo, queue, "https://teamdict.example.com", 2*time.Minute)

	repo.On("Get", mock.Anything, "tok-gone").Return(nil, ErrTokenInvalid)

	_, err := svc.Submit(context.Background(), "tok-gone", strings.NewReader("coffee,kitchen"))
	assert.ErrorIs(t, err, ErrTokenInvalid)
	queue.AssertNotCalled(t, "EnqueueUtility", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitNoUsableRows(t *testing.T) {
	repo := new(MockRepo)
	queue := new(MockQueue)
	svc := NewService(repo, queue, "https://teamdict.example.com", 2*time.Minute)

	repo.On("Get", mock.Anything, "tok-1").Return(&Token{Ext: "tok-1"}, nil)

	_, err := svc.Submit(context.Background(), "tok-1", strings.NewReader("nocomma\n\n"))
	assert.ErrorIs(t, err, ErrNoRows)
	repo.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything)
	queue.AssertNotCalled(t, "EnqueueUtility", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitConsumedConcurrently(t *testing.T) {
	repo := new(MockRepo)
	queue := new(MockQueue)
	svc := NewService(repo, queue, "https://teamdict.example.com", 2*time.Minute)

	repo.On("Get", mock.Anything, "tok-1").Return(&Token{Ext: "tok-1"}, nil)
	repo.On("Consume", mock.Anything, "tok-1").Return(ErrTokenInvalid)

	_, err := svc.Submit(context.Background(), "tok-1", strings.NewReader("coffee,kitchen"))
	assert.ErrorIs(t, err, ErrTokenInvalid)
	queue.AssertNotCalled(t, "EnqueueUtility", mock.Anything, mock.Anything, mock.Anything)
}
