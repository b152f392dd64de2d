package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/oaracle/oaracle/internal/infra/config"
	apperrors "github.com/oaracle/oaracle/pkg/errors"
)

const replayBodyLimit = 1 << 20 // 1 MiB

var errBodyTooLarge = errors.New("request body exceeds replay limit")

// Scoring touches no storage, so a failed score is never worth replaying.
var defaultReplayExclusions = []string{"/api/v1/score"}

// withRetry replays POST requests that failed with a storage_error, waiting
// an exponential backoff between attempts while the client is still connected.
func withRetry(handler http.Handler, cfg config.RetryConfig, logger *slog.Logger) http.Handler {
	if !cfg.Enabled || cfg.MaxAttempts <= 1 {
		return handler
	}
	exclusions := make(map[string]struct{}, len(defaultReplayExclusions)+len(cfg.Exclude))
	for _, path := range append(defaultReplayExclusions, cfg.Exclude...) {
		exclusions[path] = struct{}{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, skip := exclusions[r.URL.Path]; skip || r.Method != http.MethodPost {
			handler.ServeHTTP(w, r)
			return
		}
		payload, err := readReplayBody(r)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, errBodyTooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			http.Error(w, err.Error(), status)
			return
		}

		ctx := r.Context()
		for attempt := 1; ; attempt++ {
			buffered := newBufferedResponse()
			replay := r.Clone(ctx)
			replay.Body = io.NopCloser(bytes.NewReader(payload))
			replay.ContentLength = int64(len(payload))
			handler.ServeHTTP(buffered, replay)

			if attempt == cfg.MaxAttempts || !buffered.storageFailure() {
				buffered.flushTo(w)
				return
			}

			delay := cfg.BaseBackoff << (attempt - 1)
			logger.Warn("storage failure, replaying request", "path", r.URL.Path, "attempt", attempt, "backoff", delay)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				logger.Info("client gone, abandoning replay", "path", r.URL.Path, "attempt", attempt)
				buffered.flushTo(w)
				return
			case <-timer.C:
			}
		}
	})
}

func readReplayBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, replayBodyLimit+1))
	if err != nil {
		return nil, err
	}
	if len(data) > replayBodyLimit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// bufferedResponse holds one attempt's response until it is known to be final.
type bufferedResponse struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: make(http.Header)}
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(status int) {
	if b.status == 0 {
		b.status = status
	}
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufferedResponse) Flush() {}

// storageFailure reports whether the attempt ended with the storage_error
// envelope written by errorHandlingMiddleware.
func (b *bufferedResponse) storageFailure() bool {
	if b.status < http.StatusInternalServerError {
		return false
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(b.body.Bytes(), &envelope); err != nil {
		return false
	}
	return envelope.Error.Code == apperrors.CodeStorage
}

func (b *bufferedResponse) flushTo(w http.ResponseWriter) {
	dst := w.Header()
	for k, values := range b.header {
		dst[k] = append([]string(nil), values...)
	}
	status := b.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if b.body.Len() > 0 {
		_, _ = w.Write(b.body.Bytes())
	}
}
