package searchd

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/trial-harness/internal/policy"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/logger"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/models"
)

func testNotifier() *Notifier {
	n := NewNotifier()
	n.retry = policy.NewRetry(3, policy.BackoffExponential, time.Millisecond)
	n.log = logger.Discard()
	return n
}

func TestNotifierDelivers(t *testing.T) {
	var (
		got    NotificationPayload
		secret string
		path   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secret = r.Header.Get("X-Harness-Callback-Secret")
		path = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := testNotifier()
	run := &models.Run{ID: "run-9", Status: models.RunStatusCompleted}
	n.Notify(srv.URL+"/hooks/{run_id}", "s3cret", run, nil)
	n.Wait()

	assert.Equal(t, "/hooks/run-9", path)
	assert.Equal(t, "s3cret", secret)
	assert.Equal(t, "run-9", got.RunID)
	require.NotNil(t, got.Run)
	assert.Equal(t, models.RunStatusCompleted, got.Run.Status)
}

func TestNotifierRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := testNotifier()
	n.Notify(srv.URL, "", &models.Run{ID: "r"}, nil)
	n.Wait()
	assert.Equal(t, int32(3), calls.Load())
}

func TestNotifierGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := testNotifier()
	n.Notify(srv.URL, "", &models.Run{ID: "r"}, nil)
	n.Wait()
	assert.Equal(t, int32(n.retry.MaxRetries+1), calls.Load())
}

func TestNotifierSkipsEmptyURL(t *testing.T) {
	n := testNotifier()
	n.Notify("", "", &models.Run{ID: "r"}, nil)
	n.Wait()
}

func TestExecutorNotifiesOnFinish(t *testing.T) {
	received := make(chan NotificationPayload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p NotificationPayload
		_ = json.NewDecoder(r.Body).Decode(&p)
		received <- p
	}))
	defer srv.Close()

	store := NewRunStore()
	n := testNotifier()
	exec := NewRunExecutor(store, WithNotifier(n))

	in := scenarioInput(models.StrategySequential)
	in.CallbackURL = srv.URL
	run, err := store.Create("", in)
	require.NoError(t, err)
	_, err = exec.Start(run.ID)
	require.NoError(t, err)

	select {
	case p := <-received:
		assert.Equal(t, run.ID, p.RunID)
		require.NotNil(t, p.Metrics)
		assert.Equal(t, int64(3), p.Metrics.Count)
	case <-time.After(10 * time.Second):
		t.Fatal("no notification received")
	}
	exec.Wait()
	n.Wait()
}
