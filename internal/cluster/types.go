package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Member identifies one cluster node capable of executing metadata commands.
type Member struct {
	ID   string `json:"id"`
	Addr string `json:"addr"`
}

// RegisterRequest is sent by a member daemon to announce itself to the router.
type RegisterRequest struct {
	Member Member `json:"member"`
}

// Code categorizes a command failure. Codes travel on the wire unchanged so
// the router's suppression policy sees exactly what the member reported.
type Code string

const (
	CodeDatabaseNotFound     Code = "DatabaseNotFound"
	CodeNamespaceNotFound    Code = "NamespaceNotFound"
	CodeNamespaceExists      Code = "NamespaceExists"
	CodeIndexNotFound        Code = "IndexNotFound"
	CodeIndexOptionsConflict Code = "IndexOptionsConflict"
	CodeInvalidNamespace     Code = "InvalidNamespace"
	CodeInvalidOptions       Code = "InvalidOptions"
	CodeUnsupportedCommand   Code = "UnsupportedCommand"

	// Local codes, assigned by the router when a member never answered.
	CodeMemberUnreachable Code = "MemberUnreachable"
	CodeExceededTimeLimit Code = "ExceededTimeLimit"
	CodeInternal          Code = "Internal"
)

// CommandEnvelope is the wire form of a routed metadata command, posted to a
// member's /admin/command endpoint.
type CommandEnvelope struct {
	CommandID string          `json:"command_id"`
	Kind      string          `json:"kind"`
	Namespace string          `json:"namespace"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// CommandReply is a member's answer to a CommandEnvelope. Exactly one of
// Payload and Error is meaningful, discriminated by OK.
type CommandReply struct {
	OK      bool            `json:"ok"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *CommandError   `json:"error,omitempty"`
}

// CommandError is a coded failure reported by a member. It doubles as a Go
// error so catalog and transport code can return it directly.
type CommandError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Errf builds a CommandError with a formatted message.
func Errf(code Code, format string, args ...any) *CommandError {
	return &CommandError{Code: code, Message: fmt.Sprintf(format, args...)}
}

var httpClient = &http.Client{Timeout: 5 * time.Second}

// PostJSON posts body as JSON to url and, when out is non-nil, decodes the
// response body into it. The request is bound to ctx.
func PostJSON(ctx context.Context, url string, body any, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %s: %d", url, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// GetJSON fetches url and decodes the JSON response into out.
func GetJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %s: %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
