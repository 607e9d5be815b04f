package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/drift/internal/domain"
	"github.com/phrazzld/drift/internal/queue"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegisterExecutorsCoversAllTypes(t *testing.T) {
	registry := queue.NewExecutorRegistry()
	require.NoError(t, registerExecutors(registry, discardLogger()))

	for _, taskType := range []domain.TaskType{
		domain.TaskTypeNetworkCall,
		domain.TaskTypeDataSync,
		domain.TaskTypeFileTransfer,
		domain.TaskTypeCompute,
		domain.TaskTypeBackup,
	} {
		_, err := registry.Resolve(taskType)
		assert.NoError(t, err, "executor missing for %s", taskType)
	}
}

func TestHTTPExecutorSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`accepted`))
	}))
	defer srv.Close()

	ex := &httpExecutor{client: srv.Client(), logger: discardLogger()}
	payload, _ := json.Marshal(httpCallPayload{
		Method: http.MethodPost,
		URL:    srv.URL,
		Body:   json.RawMessage(`{"k":"v"}`),
	})

	result, err := ex.Execute(context.Background(), payload)
	require.NoError(t, err)

	var res httpCallResult
	require.NoError(t, json.Unmarshal(result, &res))
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "accepted", res.Body)
}

func TestHTTPExecutorErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		sentinel error
	}{
		{name: "server error is retryable", status: http.StatusBadGateway, sentinel: domain.ErrTransientNetwork},
		{name: "unauthorized is terminal", status: http.StatusUnauthorized, sentinel: domain.ErrPermission},
		{name: "bad request is terminal", status: http.StatusBadRequest, sentinel: domain.ErrValidation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			ex := &httpExecutor{client: srv.Client(), logger: discardLogger()}
			payload, _ := json.Marshal(httpCallPayload{URL: srv.URL})

			_, err := ex.Execute(context.Background(), payload)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.sentinel)
		})
	}
}

func TestHTTPExecutorConnectionRefusedIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	ex := &httpExecutor{client: &http.Client{}, logger: discardLogger()}
	payload, _ := json.Marshal(httpCallPayload{URL: url})

	_, err := ex.Execute(context.Background(), payload)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransientNetwork)
}

func TestHTTPExecutorMalformedPayload(t *testing.T) {
	ex := &httpExecutor{client: &http.Client{}, logger: discardLogger()}

	_, err := ex.Execute(context.Background(), json.RawMessage(`not json`))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = ex.Execute(context.Background(), json.RawMessage(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestFileTransferExecutor(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "source.txt")
	dest := filepath.Join(dir, "nested", "dest.txt")
	require.NoError(t, os.WriteFile(source, []byte("payload bytes"), 0o600))

	payload, _ := json.Marshal(fileTransferPayload{Source: source, Dest: dest})
	result, err := executeFileTransfer(context.Background(), payload)
	require.NoError(t, err)

	copied, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "payload bytes", string(copied))

	var res map[string]int
	require.NoError(t, json.Unmarshal(result, &res))
	assert.Equal(t, len("payload bytes"), res["bytesCopied"])
}

func TestFileTransferMissingSourceIsTerminal(t *testing.T) {
	dir := t.TempDir()
	payload, _ := json.Marshal(fileTransferPayload{
		Source: filepath.Join(dir, "absent.txt"),
		Dest:   filepath.Join(dir, "dest.txt"),
	})

	_, err := executeFileTransfer(context.Background(), payload)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestComputeExecutorDeterministic(t *testing.T) {
	payload, _ := json.Marshal(computePayload{Input: "hello"})

	first, err := executeCompute(context.Background(), payload)
	require.NoError(t, err)
	second, err := executeCompute(context.Background(), payload)
	require.NoError(t, err)

	assert.JSONEq(t, string(first), string(second))

	var res map[string]string
	require.NoError(t, json.Unmarshal(first, &res))
	assert.Len(t, res["digest"], 64)
}

func TestBackupExecutor(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "db.sqlite")
	backups := filepath.Join(dir, "backups")
	require.NoError(t, os.WriteFile(source, []byte("contents"), 0o600))

	payload, _ := json.Marshal(backupPayload{Source: source, Dir: backups})
	result, err := executeBackup(context.Background(), payload)
	require.NoError(t, err)

	var res map[string]string
	require.NoError(t, json.Unmarshal(result, &res))

	copied, err := os.ReadFile(res["backup"])
	require.NoError(t, err)
	assert.Equal(t, "contents", string(copied))
	assert.Contains(t, res["backup"], "db.sqlite")
}

func TestExecutorsHonorCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	payload, _ := json.Marshal(computePayload{Input: "x"})
	_, err := executeCompute(ctx, payload)
	assert.ErrorIs(t, err, context.Canceled)
}
