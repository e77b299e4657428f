package decision

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// responseSchema constrains what an external provider may return. Anything
// outside it is rejected before field-level validation even runs.
const responseSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"move": {
			"type": "object",
			"properties": {
				"x": {"type": "integer"},
				"y": {"type": "integer"}
			},
			"required": ["x", "y"],
			"additionalProperties": false
		},
		"partners": {
			"type": "array",
			"items": {"type": "integer", "minimum": 0}
		}
	},
	"additionalProperties": false
}`

var compiledResponseSchema = jsonschema.MustCompileString("decision-response.json", responseSchema)

// Remote delegates decisions to an external HTTP service. The service
// receives the Request as JSON and must answer with a schema-conforming
// Decision. Any transport, schema, or decode failure surfaces as an error;
// the engine turns that into an idle/no-op for the agent.
type Remote struct {
	endpoint string
	client   *http.Client
}

// NewRemote creates a remote provider. Returns nil if endpoint is empty.
func NewRemote(endpoint string, timeout time.Duration) *Remote {
	if endpoint == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Remote{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Decide posts the request and validates the response.
func (r *Remote) Decide(req Request) (Decision, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Decision{}, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := r.client.Post(r.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return Decision{}, fmt.Errorf("provider call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Decision{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Decision{}, fmt.Errorf("provider error %d: %s", resp.StatusCode, respBody)
	}

	var raw any
	if err := json.Unmarshal(respBody, &raw); err != nil {
		return Decision{}, fmt.Errorf("unmarshal response: %w", err)
	}
	if err := compiledResponseSchema.Validate(raw); err != nil {
		return Decision{}, fmt.Errorf("response schema: %w", err)
	}

	var d Decision
	if err := json.Unmarshal(respBody, &d); err != nil {
		return Decision{}, fmt.Errorf("decode decision: %w", err)
	}

	slog.Debug("remote decision",
		"phase", req.Phase,
		"agent", req.AgentID,
		"has_move", d.Move != nil,
		"partners", len(d.Partners),
	)
	return d, nil
}
