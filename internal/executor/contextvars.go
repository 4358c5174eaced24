package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kandev/agentrun/internal/common/logger"
	"github.com/kandev/agentrun/internal/ledger/models"
)

// fetchSpec is the concrete shape ContextVariable.FetchSpec decodes into:
// a plain HTTP GET/POST against a caller-supplied URL. Per spec.md §9,
// FetchSpec is otherwise opaque JSON passed through the ledger verbatim —
// this is simply the one shape the executor itself knows how to resolve.
type fetchSpec struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
}

// resolveContextVariables fires every ContextVariable whose trigger is in
// triggers, returning a name->value map. A fetch failure falls back to the
// variable's DefaultValue rather than failing the turn.
func resolveContextVariables(ctx context.Context, httpClient *http.Client, log *logger.Logger, cfg *models.ContextConfig, triggers map[models.ContextVariableTrigger]bool) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage)
	if cfg == nil {
		return out
	}

	for _, v := range cfg.ContextVariables {
		if !triggers[v.Trigger] {
			continue
		}
		val, err := fetchContextVariable(ctx, httpClient, v.FetchSpec)
		if err != nil {
			log.Debug("executor: context variable fetch failed, using default",
				zap.String("variable", v.Name), zap.Error(err))
			val = v.DefaultValue
		}
		if len(val) > 0 {
			out[v.Name] = val
		}
	}
	return out
}

func fetchContextVariable(ctx context.Context, httpClient *http.Client, raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("executor: empty fetch spec")
	}
	var spec fetchSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("executor: decode fetch spec: %w", err)
	}
	if spec.URL == "" {
		return nil, fmt.Errorf("executor: fetch spec has no url")
	}
	method := spec.Method
	if method == "" {
		method = http.MethodGet
	}

	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, spec.URL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range spec.Headers {
		req.Header.Set(k, v)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("executor: fetch %s returned status %d", spec.URL, resp.StatusCode)
	}
	if !json.Valid(body) {
		encoded, err := json.Marshal(string(body))
		if err != nil {
			return nil, err
		}
		return encoded, nil
	}
	return json.RawMessage(body), nil
}
