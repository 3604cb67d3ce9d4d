package client_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bananaslides/internal/client"
	"bananaslides/internal/domain"
	"bananaslides/internal/retry"
)

func writeData(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "data": data})
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   map[string]string{"code": code, "message": msg},
	})
}

var fastRetry = retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}

func TestWait_NotYetVisibleCountsAsPending(t *testing.T) {
	id := uuid.New()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			writeError(w, http.StatusNotFound, "TASK_NOT_FOUND", "conversion task not found")
		case 2:
			writeData(w, http.StatusOK, domain.ConversionTask{ID: id, Status: domain.TaskProcessing})
		default:
			writeData(w, http.StatusOK, domain.ConversionTask{ID: id, Status: domain.TaskCompleted, ResultArtifactRef: "artifacts/x.zip"})
		}
	}))
	defer srv.Close()

	var seen []domain.TaskStatus
	task, err := client.New(srv.URL, time.Second).Wait(t.Context(), id, client.PollOptions{
		Interval: time.Millisecond,
		Retry:    fastRetry,
		OnUpdate: func(task *domain.ConversionTask) { seen = append(seen, task.Status) },
	})

	require.NoError(t, err)
	assert.Equal(t, domain.TaskCompleted, task.Status)
	assert.Equal(t, "artifacts/x.zip", task.ResultArtifactRef)
	assert.Equal(t, []domain.TaskStatus{domain.TaskPending, domain.TaskProcessing, domain.TaskCompleted}, seen)
}

func TestWait_RetriesTransientFailures(t *testing.T) {
	id := uuid.New()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeData(w, http.StatusOK, domain.ConversionTask{ID: id, Status: domain.TaskCompleted})
	}))
	defer srv.Close()

	task, err := client.New(srv.URL, time.Second).Wait(t.Context(), id, client.PollOptions{Interval: time.Millisecond, Retry: fastRetry})

	require.NoError(t, err)
	assert.Equal(t, domain.TaskCompleted, task.Status)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestWait_RetriesExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := client.New(srv.URL, time.Second).Wait(t.Context(), uuid.New(), client.PollOptions{
		Interval: time.Millisecond,
		Retry:    retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, retry.ErrExhausted)
	assert.NotErrorIs(t, err, client.ErrPollTimeout)
}

func TestWait_TimeoutIsDistinctFromFailed(t *testing.T) {
	id := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, domain.ConversionTask{ID: id, Status: domain.TaskProcessing})
	}))
	defer srv.Close()

	task, err := client.New(srv.URL, time.Second).Wait(t.Context(), id, client.PollOptions{
		Interval: 5 * time.Millisecond,
		Timeout:  40 * time.Millisecond,
		Retry:    fastRetry,
	})

	assert.ErrorIs(t, err, client.ErrPollTimeout)
	require.NotNil(t, task)
	assert.Equal(t, domain.TaskProcessing, task.Status)
}

func TestWait_FailedTaskIsNotAnError(t *testing.T) {
	id := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, domain.ConversionTask{
			ID: id, Status: domain.TaskFailed,
			Error: &domain.TaskError{Code: "RECONSTRUCTION_TIMEOUT", Stage: domain.StageReconstruct, Page: 2},
		})
	}))
	defer srv.Close()

	task, err := client.New(srv.URL, time.Second).Wait(t.Context(), id, client.PollOptions{Interval: time.Millisecond, Retry: fastRetry})

	require.NoError(t, err)
	assert.Equal(t, domain.TaskFailed, task.Status)
	require.NotNil(t, task.Error)
	assert.Equal(t, 2, task.Error.Page)
}

func TestWait_StopOnAwaiting(t *testing.T) {
	id := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, domain.ConversionTask{ID: id, Status: domain.TaskAwaitingVerification})
	}))
	defer srv.Close()

	task, err := client.New(srv.URL, time.Second).Wait(t.Context(), id, client.PollOptions{
		Interval: time.Millisecond, Retry: fastRetry, StopOnAwaiting: true,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.TaskAwaitingVerification, task.Status)
}

func TestClient_Confirm(t *testing.T) {
	id := uuid.New()
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/conversions/"+id.String()+"/confirm", r.URL.Path)
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if len(bodies) == 1 {
			writeData(w, http.StatusAccepted, domain.ConversionTask{ID: id, Status: domain.TaskProcessing})
			return
		}
		writeError(w, http.StatusConflict, "INVALID_TRANSITION", "task is COMPLETED")
	}))
	defer srv.Close()
	c := client.New(srv.URL, time.Second)

	task, err := c.Confirm(t.Context(), id, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskProcessing, task.Status)
	assert.Empty(t, bodies[0])

	_, err = c.Confirm(t.Context(), id, map[string][]string{"p1": {"t1"}})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.JSONEq(t, `{"pages":{"p1":["t1"]}}`, bodies[1])
}

func TestClient_CreateSettingsInvalid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusBadRequest, "SETTINGS_INVALID", "inpaint_method: offline extraction cannot be combined with \"generative\"")
	}))
	defer srv.Close()

	_, err := client.New(srv.URL, time.Second).CreateConversion(t.Context(), &client.CreateRequest{
		Pages: []domain.PageRef{{PageID: "p1", ImageKey: "k"}},
	})

	assert.ErrorIs(t, err, domain.ErrSettingsInvalid)
	assert.Contains(t, err.Error(), "inpaint_method")
}

func TestClient_DownloadArtifact(t *testing.T) {
	id := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="deck_2026-03-14.zip"`)
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write([]byte("PK"))
	}))
	defer srv.Close()

	data, name, err := client.New(srv.URL, time.Second).DownloadArtifact(t.Context(), id)

	require.NoError(t, err)
	assert.Equal(t, []byte("PK"), data)
	assert.Equal(t, "deck_2026-03-14.zip", name)
}
