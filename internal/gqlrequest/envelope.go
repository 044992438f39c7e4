package gqlrequest

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Envelope is the transport-independent form of a GraphQL request.
type Envelope struct {
	Method      string
	ContentType string

	Query         string
	OperationName string
	VariablesRaw  jsoniter.RawMessage

	DocumentSizeBytes int
}

// DecodeEnvelope reads the query, operation name and variables from a GET
// query string or a POST body. The body is rewound for the next handler.
func DecodeEnvelope(r *http.Request) (Envelope, error) {
	if r == nil {
		return Envelope{}, fmt.Errorf("request is nil")
	}

	env := Envelope{
		Method:      r.Method,
		ContentType: r.Header.Get("Content-Type"),
	}

	switch {
	case r.Method == http.MethodGet:
		q := r.URL.Query()
		env.Query = q.Get("query")
		env.OperationName = q.Get("operationName")
		if vars := strings.TrimSpace(q.Get("variables")); vars != "" && vars != "null" {
			env.VariablesRaw = jsoniter.RawMessage(vars)
		}
	case r.Method == http.MethodPost && r.Body != nil:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return env, err
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		if err := decodeBody(&env, body); err != nil {
			return env, err
		}
	}

	env.DocumentSizeBytes = len(env.Query)
	return env, nil
}

func decodeBody(env *Envelope, body []byte) error {
	mediaType, _, err := mime.ParseMediaType(env.ContentType)
	if err != nil || mediaType == "" {
		mediaType = strings.TrimSpace(env.ContentType)
	}
	if mediaType == "application/graphql" {
		env.Query = string(body)
		return nil
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	var payload struct {
		Query         string              `json:"query"`
		OperationName string              `json:"operationName"`
		Variables     jsoniter.RawMessage `json:"variables"`
	}
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return err
	}
	env.Query = payload.Query
	env.OperationName = payload.OperationName
	if vars := bytes.TrimSpace(payload.Variables); len(vars) > 0 && !bytes.Equal(vars, []byte("null")) {
		env.VariablesRaw = append(jsoniter.RawMessage(nil), vars...)
	}
	return nil
}
