/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"context"

	"github.com/acronis/go-crptapi/log"
)

type ctxKey int

const (
	ctxKeyRequestType ctxKey = iota
	ctxKeyRequestID
	ctxKeyLogger
	ctxKeyBearerToken
)

func getStringFromContext(ctx context.Context, key ctxKey) string {
	if s, ok := ctx.Value(key).(string); ok {
		return s
	}
	return ""
}

// NewContextWithRequestType creates a new context with request type.
func NewContextWithRequestType(ctx context.Context, requestType string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestType, requestType)
}

// GetRequestTypeFromContext extracts request type from the context.
func GetRequestTypeFromContext(ctx context.Context) string {
	return getStringFromContext(ctx, ctxKeyRequestType)
}

// NewContextWithRequestID creates a new context with the request ID sent in X-Request-ID header.
func NewContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

// GetRequestIDFromContext extracts request ID from the context.
func GetRequestIDFromContext(ctx context.Context) string {
	return getStringFromContext(ctx, ctxKeyRequestID)
}

// NewContextWithLogger creates a new context with logger.
func NewContextWithLogger(ctx context.Context, logger log.FieldLogger) context.Context {
	return context.WithValue(ctx, ctxKeyLogger, logger)
}

// GetLoggerFromContext extracts logger from the context. Nil is returned if there is no logger.
func GetLoggerFromContext(ctx context.Context) log.FieldLogger {
	if logger, ok := ctx.Value(ctxKeyLogger).(log.FieldLogger); ok {
		return logger
	}
	return nil
}

// NewContextWithBearerToken creates a new context with the token that ContextTokenProvider puts
// into Authorization header.
func NewContextWithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxKeyBearerToken, token)
}

// GetBearerTokenFromContext extracts bearer token from the context.
func GetBearerTokenFromContext(ctx context.Context) string {
	return getStringFromContext(ctx, ctxKeyBearerToken)
}
