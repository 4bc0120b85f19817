package job_test

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"teamdict/features/job"
)

// MockRepo implements job.Repository
type MockRepo struct {
	mock.Mock
}

func (m *MockRepo) Save(ctx context.Context, j *job.Job) error {
	return m.Called(ctx, j).Error(0)
}
func (m *MockRepo) Get(ctx context.Context, id string) (*job.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*job.Job), args.Error(1)
}
func (m *MockRepo) UpdateStatus(ctx context.Context, id, status, errMsg string) error {
	return m.Called(ctx, id, status, errMsg).Error(0)
}

func TestHandler_Status(t *testing.T) {
	mockRepo := new(MockRepo)
	svc := job.NewService(mockRepo)
	handler := job.NewHandler(svc)

	mockRepo.On("Get", mock.Anything, "job-1").Return(&job.Job{ID: "job-1", Status: job.StatusPending}, nil)

	req := httptest.NewRequest("GET", "/jobs/job-1", nil)
	req.SetPathValue("id", "job-1")
	w := httptest.NewRecorder()

	handler.Status(w, req)
	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
	assert.Contains(t, w.Body.String(), `"status":"pending"`)
}

func TestHandler_Status_NotFound(t *testing.T) {
	mockRepo := new(MockRepo)
	svc := job.NewService(mockRepo)
	handler := job.NewHandler(svc)

	mockRepo.On("Get", mock.Anything, "missing").Return(nil, sql.ErrNoRows)

	req := httptest.NewRequest("GET", "/jobs/missing", nil)
	req.SetPathValue("id", "missing")
	w := httptest.NewRecorder()

	handler.Status(w, req)
	assert.Equal(t, http.StatusNotFound, w.Result().StatusCode)
}

func TestService_Start(t *testing.T) {
	mockRepo := new(MockRepo)
	svc := job.NewService(mockRepo)

	mockRepo.On("Save", mock.Anything, mock.MatchedBy(func(j *job.Job) bool {
		return j.ID != "" && j.Status == job.StatusPending && j.Kind == "data_entry"
	})).Return(nil)

	j, err := svc.Start(context.Background(), "data_entry")
	assert.NoError(t, err)
	assert.NotEmpty(t, j.ID)
	mockRepo.AssertExpectations(t)
}
