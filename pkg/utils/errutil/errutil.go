package errutil

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"

	"github.com/minato-lab/leavesync/pkg/domain/types"
	"github.com/minato-lab/leavesync/pkg/utils/logging"
)

// Code is a stable machine-readable error code exposed on the HTTP API
type Code string

const (
	CodeAuth      Code = "upstream_auth"
	CodeAPI       Code = "upstream_api"
	CodeRateLimit Code = "rate_limited"
	CodeTransform Code = "transform"
	CodeStore     Code = "store"
	CodeLockBusy  Code = "sync_in_progress"
	CodeRange     Code = "invalid_range"
	CodeCrypto    Code = "crypto"
	CodeInternal  Code = "internal"
)

type tagMapping struct {
	code   Code
	status int
}

// tag classification decides both the status code and the machine code.
// goerr's tag type is unexported, so each entry carries a HasTag closure
// instead of the tag value itself.
var tagMappings = []struct {
	hasTag  func(error) bool
	mapping tagMapping
}{
	{func(err error) bool { return goerr.HasTag(err, types.ErrTagLockBusy) }, tagMapping{CodeLockBusy, http.StatusConflict}},
	{func(err error) bool { return goerr.HasTag(err, types.ErrTagRateLimit) }, tagMapping{CodeRateLimit, http.StatusTooManyRequests}},
	{func(err error) bool { return goerr.HasTag(err, types.ErrTagAuth) }, tagMapping{CodeAuth, http.StatusUnauthorized}},
	{func(err error) bool { return goerr.HasTag(err, types.ErrTagRange) }, tagMapping{CodeRange, http.StatusBadRequest}},
	{func(err error) bool { return goerr.HasTag(err, types.ErrTagAPI) }, tagMapping{CodeAPI, http.StatusServiceUnavailable}},
	{func(err error) bool { return goerr.HasTag(err, types.ErrTagTransform) }, tagMapping{CodeTransform, http.StatusInternalServerError}},
	{func(err error) bool { return goerr.HasTag(err, types.ErrTagStore) }, tagMapping{CodeStore, http.StatusInternalServerError}},
	{func(err error) bool { return goerr.HasTag(err, types.ErrTagCrypto) }, tagMapping{CodeCrypto, http.StatusBadRequest}},
}

// Classify maps an error to its machine code and HTTP status
func Classify(err error) (Code, int) {
	for _, m := range tagMappings {
		if m.hasTag(err) {
			return m.mapping.code, m.mapping.status
		}
	}
	return CodeInternal, http.StatusInternalServerError
}

// Handle logs the error with its goerr context and reports server-side
// failures to Sentry when a DSN is configured.
func Handle(ctx context.Context, err error, msg string) error {
	if err == nil {
		return nil
	}

	logger := logging.From(ctx)

	var ge *goerr.Error
	if errors.As(err, &ge) {
		logger.Error(msg,
			"error", err.Error(),
			"values", ge.Values(),
			"stack", ge.Stacks(),
		)
	} else {
		logger.Error(msg, "error", err.Error())
	}

	if _, status := Classify(err); status >= http.StatusInternalServerError {
		if hub := sentry.CurrentHub(); hub.Client() != nil {
			hub.CaptureException(err)
		}
	}

	return err
}

type errorBody struct {
	Error string `json:"error"`
	Code  Code   `json:"code"`
}

// HandleHTTP logs the error and writes the JSON error response with the
// status derived from the error's tag.
func HandleHTTP(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	code, status := Classify(err)

	logger := logging.From(ctx)
	var ge *goerr.Error
	if errors.As(err, &ge) {
		logger.Error("HTTP error",
			"status", status,
			"code", string(code),
			"error", err.Error(),
			"values", ge.Values(),
		)
	} else {
		logger.Error("HTTP error",
			"status", status,
			"code", string(code),
			"error", err.Error(),
		)
	}

	if status >= http.StatusInternalServerError {
		if hub := sentry.CurrentHub(); hub.Client() != nil {
			hub.CaptureException(err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(errorBody{Error: err.Error(), Code: code}); encErr != nil {
		logger.Warn("failed to write error response", "error", encErr.Error())
	}
}
