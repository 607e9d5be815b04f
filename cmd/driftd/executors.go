package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/phrazzld/drift/internal/domain"
	"github.com/phrazzld/drift/internal/queue"
)

// registerExecutors installs the daemon's built-in executors for every
// task type in the closed set. Executors classify their failures into
// the domain error categories so the engine can decide between retry
// and drop.
func registerExecutors(registry *queue.ExecutorRegistry, log *slog.Logger) error {
	client := &http.Client{Timeout: 30 * time.Second}

	executors := map[domain.TaskType]queue.Executor{
		domain.TaskTypeNetworkCall:  &httpExecutor{client: client, logger: log},
		domain.TaskTypeDataSync:     &httpExecutor{client: client, logger: log},
		domain.TaskTypeFileTransfer: queue.ExecutorFunc(executeFileTransfer),
		domain.TaskTypeCompute:      queue.ExecutorFunc(executeCompute),
		domain.TaskTypeBackup:       queue.ExecutorFunc(executeBackup),
	}
	for taskType, ex := range executors {
		if err := registry.Register(taskType, ex); err != nil {
			return err
		}
	}
	return nil
}

// httpCallPayload describes an outbound HTTP request.
type httpCallPayload struct {
	Method string          `json:"method"`
	URL    string          `json:"url"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// httpCallResult is the executor output recorded on completion.
type httpCallResult struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body,omitempty"`
}

// httpExecutor replays buffered HTTP requests. Transport failures and
// 5xx responses are retryable; 4xx responses are terminal because the
// request itself is wrong and will never succeed.
type httpExecutor struct {
	client *http.Client
	logger *slog.Logger
}

func (e *httpExecutor) Execute(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var call httpCallPayload
	if err := json.Unmarshal(payload, &call); err != nil {
		return nil, fmt.Errorf("%w: malformed http call payload: %v", domain.ErrValidation, err)
	}
	if call.URL == "" {
		return nil, fmt.Errorf("%w: http call payload missing url", domain.ErrValidation)
	}
	if call.Method == "" {
		call.Method = http.MethodGet
	}

	var body io.Reader
	if len(call.Body) > 0 {
		body = bytes.NewReader(call.Body)
	}
	req, err := http.NewRequestWithContext(ctx, call.Method, call.URL, body)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", domain.ErrValidation, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransientNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", domain.ErrTransientNetwork, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: upstream returned %d", domain.ErrTransientNetwork, resp.StatusCode)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: upstream returned %d", domain.ErrPermission, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: upstream returned %d", domain.ErrValidation, resp.StatusCode)
	}

	e.logger.Debug("http call completed",
		"method", call.Method, "url", call.URL, "status", resp.StatusCode)

	return json.Marshal(httpCallResult{StatusCode: resp.StatusCode, Body: string(respBody)})
}

// fileTransferPayload names a local source and destination path.
type fileTransferPayload struct {
	Source string `json:"source"`
	Dest   string `json:"dest"`
}

// executeFileTransfer copies a file to its destination. A missing or
// unreadable source is terminal; destination write failures may be a
// full or flaky disk and are left retryable.
func executeFileTransfer(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var xfer fileTransferPayload
	if err := json.Unmarshal(payload, &xfer); err != nil {
		return nil, fmt.Errorf("%w: malformed file transfer payload: %v", domain.ErrValidation, err)
	}
	if xfer.Source == "" || xfer.Dest == "" {
		return nil, fmt.Errorf("%w: file transfer requires source and dest", domain.ErrValidation)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(xfer.Source)
	if err != nil {
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %v", domain.ErrPermission, err)
		}
		return nil, fmt.Errorf("%w: reading source: %v", domain.ErrValidation, err)
	}

	if err := os.MkdirAll(filepath.Dir(xfer.Dest), 0o750); err != nil {
		return nil, fmt.Errorf("creating destination directory: %w", err)
	}
	if err := os.WriteFile(xfer.Dest, data, 0o600); err != nil {
		return nil, fmt.Errorf("writing destination: %w", err)
	}

	return json.Marshal(map[string]any{"bytesCopied": len(data)})
}

// computePayload carries opaque input for a local computation.
type computePayload struct {
	Input string `json:"input"`
}

// executeCompute hashes the input. It stands in for locally-run work
// that never touches the network and so never fails transiently.
func executeCompute(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var c computePayload
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, fmt.Errorf("%w: malformed compute payload: %v", domain.ErrValidation, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sum := sha256.Sum256([]byte(c.Input))
	return json.Marshal(map[string]string{"digest": hex.EncodeToString(sum[:])})
}

// backupPayload names a source file and the directory receiving the
// timestamped copy.
type backupPayload struct {
	Source string `json:"source"`
	Dir    string `json:"dir"`
}

func executeBackup(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var b backupPayload
	if err := json.Unmarshal(payload, &b); err != nil {
		return nil, fmt.Errorf("%w: malformed backup payload: %v", domain.ErrValidation, err)
	}
	if b.Source == "" || b.Dir == "" {
		return nil, fmt.Errorf("%w: backup requires source and dir", domain.ErrValidation)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(b.Source)
	if err != nil {
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %v", domain.ErrPermission, err)
		}
		return nil, fmt.Errorf("%w: reading source: %v", domain.ErrValidation, err)
	}

	if err := os.MkdirAll(b.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}
	name := fmt.Sprintf("%s.%d.bak", filepath.Base(b.Source), time.Now().UnixMilli())
	dest := filepath.Join(b.Dir, name)
	if err := os.WriteFile(dest, data, 0o600); err != nil {
		return nil, fmt.Errorf("writing backup: %w", err)
	}

	return json.Marshal(map[string]string{"backup": dest})
}
