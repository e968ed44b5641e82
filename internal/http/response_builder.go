// Package http exposes the product API over HTTP.
//
// This file implements a small builder for JSON and plain-text responses so
// handlers share one way of setting status, headers and body.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"
	contentTypeText = "text/plain; charset=utf-8"
)

// ResponseBuilder accumulates a response before writing it.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       []byte
	err        error
}

// NewResponse starts a 200 response with no body.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON encodes v as the body. An encoding failure turns the response into a
// plain 500 when written.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	data, err := json.Marshal(v)
	if err != nil {
		b.err = err
		return b
	}
	b.headers["Content-Type"] = contentTypeJSON
	b.body = data
	return b
}

// Text sets a plain-text body.
func (b *ResponseBuilder) Text(s string) *ResponseBuilder {
	b.headers["Content-Type"] = contentTypeText
	b.body = []byte(s)
	return b
}

func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	if b.err != nil {
		slog.Error("Failed to encode response", "error", b.err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// errorBody is the JSON error shape of the chart endpoints.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// JSONError builds {message} or, with a non-nil err, {message, error}.
func JSONError(statusCode int, message string, err error) *ResponseBuilder {
	body := errorBody{Message: message}
	if err != nil {
		body.Error = err.Error()
	}
	return NewResponse().Status(statusCode).JSON(body)
}

// TextError builds a plain-text error response.
func TextError(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).Text(message)
}
