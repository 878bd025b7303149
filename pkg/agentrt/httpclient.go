package agentrt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HTTPExecutor implements PrimaryExecutor by calling an external
// scoring/analysis service over HTTP/JSON: a thin, per-agent-type
// request/response client with no retry logic of its own (retries are
// the orchestrator's job, per spec.md §4.5).
type HTTPExecutor struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPExecutor builds an HTTPExecutor posting task requests to endpoint.
func NewHTTPExecutor(endpoint string, httpClient *http.Client) *HTTPExecutor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: taskTimeout}
	}
	return &HTTPExecutor{endpoint: endpoint, httpClient: httpClient}
}

// taskRequest is the wire shape posted to the external service.
type taskRequest struct {
	TaskID    string         `json:"task_id"`
	AgentType AgentType      `json:"agent_type"`
	Operation string         `json:"operation"`
	InputData map[string]any `json:"input_data"`
}

// Execute posts task to the configured endpoint and decodes the
// response into the verdict shape matching task.AgentType. Any
// transport, status, or decode failure is wrapped in a *TransportError
// so the caller (Runtime) can silently fall back.
func (e *HTTPExecutor) Execute(ctx context.Context, task *Task) (Verdict, error) {
	body, err := json.Marshal(taskRequest{
		TaskID:    task.TaskID,
		AgentType: task.AgentType,
		Operation: task.Operation,
		InputData: task.InputData,
	})
	if err != nil {
		return nil, &TransportError{AgentType: task.AgentType, Endpoint: e.endpoint, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{AgentType: task.AgentType, Endpoint: e.endpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{AgentType: task.AgentType, Endpoint: e.endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{AgentType: task.AgentType, Endpoint: e.endpoint, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	verdict, err := decodeVerdict(task.AgentType, resp.Body)
	if err != nil {
		return nil, &TransportError{AgentType: task.AgentType, Endpoint: e.endpoint, Err: err}
	}
	return verdict, nil
}

func decodeVerdict(agentType AgentType, body io.Reader) (Verdict, error) {
	dec := json.NewDecoder(body)
	switch agentType {
	case AgentTypeValidator:
		var v ValidatorVerdict
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	case AgentTypeDependency:
		var v DependencyVerdict
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	case AgentTypeMutation:
		var v MutationVerdict
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	case AgentTypeImpact:
		var v ImpactVerdict
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	case AgentTypeSemantic:
		var v SemanticVerdict
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	case AgentTypeConflict:
		var v ConflictVerdict
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgentType, agentType)
	}
}
