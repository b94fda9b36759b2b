package services

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string { return e.Message }

type RateLimitError struct{ Message string }

func (e *RateLimitError) Error() string { return e.Message }

// FailureKind classifies a failed generation call.
type FailureKind string

const (
	FailureEmptyResponse  FailureKind = "empty_response"
	FailureReauthRequired FailureKind = "reauth_required"
	FailureConnectivity   FailureKind = "connectivity"
	FailureThrottled      FailureKind = "throttled"
	FailureUnknown        FailureKind = "unknown"
)

var failureMessages = map[FailureKind]string{
	FailureEmptyResponse:  "O mestre está ajustando a afinação. Por favor, tente enviar sua pergunta novamente.",
	FailureReauthRequired: "Sua chave de API é inválida ou expirou. Vincule uma nova chave para continuar.",
	FailureConnectivity:   "Não foi possível conectar ao Mestre. Verifique sua conexão e tente novamente.",
	FailureThrottled:      "Muitas perguntas em pouco tempo. Aguarde alguns instantes e tente novamente.",
	FailureUnknown:        "Erro ao conectar com o Mestre. Tente novamente.",
}

// InsightError is a classified generation failure. Message is safe to show
// to the user; Err keeps the upstream cause for logs.
type InsightError struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (e *InsightError) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	return string(e.Kind)
}

func (e *InsightError) Unwrap() error { return e.Err }

func newInsightError(kind FailureKind, cause error) *InsightError {
	return &InsightError{Kind: kind, Message: failureMessages[kind], Err: cause}
}

// ErrEmptyResponse is the cause recorded when the model returns no text.
var ErrEmptyResponse = errors.New("empty AI response")

// IsReauthRequired reports whether err demands a new credential.
func IsReauthRequired(err error) bool {
	var ie *InsightError
	return errors.As(err, &ie) && ie.Kind == FailureReauthRequired
}

// KindOf returns the failure kind of err, or FailureUnknown.
func KindOf(err error) FailureKind {
	var ie *InsightError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return FailureUnknown
}

var (
	authSignals = []string{
		"api key not valid",
		"api_key_invalid",
		"invalid api key",
		"permission_denied",
		"permission denied",
		"unauthenticated",
		"unauthorized",
		"forbidden",
		"requested entity was not found",
	}
	throttleSignals = []string{
		"429",
		"resource_exhausted",
		"resource exhausted",
		"too many requests",
		"rate limit",
		"quota",
	}
	networkSignals = []string{
		"network",
		"fetch",
		"connection refused",
		"connection reset",
		"no such host",
		"dial tcp",
		"i/o timeout",
		"deadline exceeded",
		"unexpected eof",
		"tls handshake",
		"unavailable",
	}
)

// Classify maps an upstream error to an InsightError. Structured signals
// (HTTP and gRPC codes) are checked before message matching.
func Classify(err error) *InsightError {
	if err == nil {
		return nil
	}

	var ie *InsightError
	if errors.As(err, &ie) {
		return ie
	}

	var blocked *genai.BlockedError
	if errors.As(err, &blocked) || errors.Is(err, ErrEmptyResponse) {
		return newInsightError(FailureEmptyResponse, err)
	}

	if kind, ok := classifyStructured(err); ok {
		return newInsightError(kind, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, authSignals):
		return newInsightError(FailureReauthRequired, err)
	case containsAny(msg, throttleSignals):
		return newInsightError(FailureThrottled, err)
	case containsAny(msg, networkSignals):
		return newInsightError(FailureConnectivity, err)
	default:
		return newInsightError(FailureUnknown, err)
	}
}

func classifyStructured(err error) (FailureKind, bool) {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return FailureThrottled, true
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return FailureReauthRequired, true
		case http.StatusTooManyRequests:
			return FailureThrottled, true
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return FailureConnectivity, true
		}
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.OK && st.Code() != codes.Unknown {
		switch st.Code() {
		case codes.Unauthenticated, codes.PermissionDenied, codes.NotFound:
			return FailureReauthRequired, true
		case codes.ResourceExhausted:
			return FailureThrottled, true
		case codes.Unavailable, codes.DeadlineExceeded:
			return FailureConnectivity, true
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return FailureConnectivity, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return FailureConnectivity, true
	}

	return "", false
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
