package sandbox

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/agentrun/internal/common/config"
	"github.com/kandev/agentrun/internal/common/logger"
	"github.com/kandev/agentrun/internal/ledger/models"
)

func TestDepHashIsOrderIndependent(t *testing.T) {
	a := DepHash(map[string]string{"lodash": "4.17.21", "axios": "1.6.0"})
	b := DepHash(map[string]string{"axios": "1.6.0", "lodash": "4.17.21"})
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)
}

func TestDepHashDiffersByVersion(t *testing.T) {
	a := DepHash(map[string]string{"lodash": "4.17.21"})
	b := DepHash(map[string]string{"lodash": "4.17.20"})
	assert.NotEqual(t, a, b)
}

func TestDepHashEmpty(t *testing.T) {
	assert.Len(t, DepHash(nil), 16)
}

func TestDetectModuleKindESM(t *testing.T) {
	kind, ambiguous := DetectModuleKindWithAmbiguity(`import fetch from "node-fetch";\nexport default async function handler(args) {}`)
	assert.Equal(t, ModuleESM, kind)
	assert.False(t, ambiguous)
}

func TestDetectModuleKindCJS(t *testing.T) {
	kind, ambiguous := DetectModuleKindWithAmbiguity(`const axios = require("axios");\nmodule.exports = async function handler(args) {};`)
	assert.Equal(t, ModuleCJS, kind)
	assert.False(t, ambiguous)
}

func TestDetectModuleKindDefaultsToCJS(t *testing.T) {
	kind := DetectModuleKind(`function handler(args) { return args; }`)
	assert.Equal(t, ModuleCJS, kind)
}

func TestDetectModuleKindAmbiguousPrefersESM(t *testing.T) {
	code := "import x from 'y';\nconst z = require('z');"
	kind, ambiguous := DetectModuleKindWithAmbiguity(code)
	assert.Equal(t, ModuleESM, kind)
	assert.True(t, ambiguous)
}

func TestCappedWriterReportsOverflow(t *testing.T) {
	w := newCappedWriter(10)
	_, _ = w.Write([]byte("hello "))
	_, _ = w.Write([]byte("world!!!"))
	assert.True(t, w.Overflowed())
	assert.LessOrEqual(t, len(w.Bytes()), 10)
}

func TestCappedWriterUnderLimit(t *testing.T) {
	w := newCappedWriter(1024)
	_, _ = w.Write([]byte("ok"))
	assert.False(t, w.Overflowed())
	assert.Equal(t, "ok", string(w.Bytes()))
}

func TestParseResultSuccess(t *testing.T) {
	v, err := parseResult([]byte(`{"success":true,"result":{"ok":true}}` + "\n"))
	require.NoError(t, err)
	m, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, m["ok"])
}

func TestParseResultFailure(t *testing.T) {
	_, err := parseResult([]byte(`{"success":false,"error":"boom"}` + "\n"))
	require.Error(t, err)
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "boom", toolErr.Message)
}

func TestParseResultTakesLastLine(t *testing.T) {
	out := []byte("some debug log\n" + `{"success":true,"result":1}` + "\n")
	v, err := parseResult(out)
	require.NoError(t, err)
	assert.Equal(t, float64(1), v)
}

func TestParseResultNoLine(t *testing.T) {
	_, err := parseResult([]byte(""))
	assert.Error(t, err)
}

// fakeBackend counts CreateEntry calls per dependency set so tests can
// assert the pool shares entries instead of reinstalling.
type fakeBackend struct {
	mu          sync.Mutex
	createCalls int32
	runFunc     func(dir string, argsJSON []byte) ([]byte, error)
}

func (f *fakeBackend) CreateEntry(ctx context.Context, dir string, kind ModuleKind, deps map[string]string, userCode string) error {
	atomic.AddInt32(&f.createCalls, 1)
	return nil
}

func (f *fakeBackend) Run(ctx context.Context, dir string, argsJSON []byte, timeout, killGrace time.Duration, outputCap int64) ([]byte, error) {
	if f.runFunc != nil {
		return f.runFunc(dir, argsJSON)
	}
	return []byte(`{"success":true,"result":"ok"}` + "\n"), nil
}

func (f *fakeBackend) Destroy(dir string) error { return nil }

func testPool(t *testing.T, backend Backend) *Pool {
	t.Helper()
	cfg := config.SandboxConfig{
		MaxIdle:        5 * time.Minute,
		MaxUses:        50,
		SweepInterval:  time.Hour,
		OutputCapBytes: 1 << 20,
		KillGrace:      5 * time.Second,
	}
	p := NewPool(cfg, backend, logger.Default())
	t.Cleanup(p.Stop)
	return p
}

func TestPoolReusesEntryForSameDeps(t *testing.T) {
	fb := &fakeBackend{}
	p := testPool(t, fb)
	ctx := context.Background()
	toolCfg := models.ToolConfig{ExecuteCode: "module.exports = async () => 1;", Dependencies: map[string]string{"lodash": "4.17.21"}}

	_, err := p.Execute(ctx, "tool-1", map[string]any{}, toolCfg)
	require.NoError(t, err)
	_, err = p.Execute(ctx, "tool-1", map[string]any{}, toolCfg)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&fb.createCalls))
}

func TestPoolCreatesSeparateEntriesForDifferentDeps(t *testing.T) {
	fb := &fakeBackend{}
	p := testPool(t, fb)
	ctx := context.Background()

	_, err := p.Execute(ctx, "tool-1", map[string]any{}, models.ToolConfig{ExecuteCode: "module.exports = async () => 1;", Dependencies: map[string]string{"a": "1.0.0"}})
	require.NoError(t, err)
	_, err = p.Execute(ctx, "tool-2", map[string]any{}, models.ToolConfig{ExecuteCode: "module.exports = async () => 1;", Dependencies: map[string]string{"b": "1.0.0"}})
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&fb.createCalls))
}

func TestPoolPropagatesToolFailure(t *testing.T) {
	fb := &fakeBackend{runFunc: func(dir string, argsJSON []byte) ([]byte, error) {
		return []byte(`{"success":false,"error":"bad input"}` + "\n"), nil
	}}
	p := testPool(t, fb)

	_, err := p.Execute(context.Background(), "tool-1", map[string]any{}, models.ToolConfig{ExecuteCode: "module.exports = async () => 1;"})
	require.Error(t, err)
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "bad input", toolErr.Message)
}

func TestPoolEvictsExpiredEntry(t *testing.T) {
	fb := &fakeBackend{}
	cfg := config.SandboxConfig{
		MaxIdle:        time.Nanosecond,
		MaxUses:        50,
		SweepInterval:  time.Hour,
		OutputCapBytes: 1 << 20,
		KillGrace:      5 * time.Second,
	}
	p := NewPool(cfg, fb, logger.Default())
	t.Cleanup(p.Stop)

	toolCfg := models.ToolConfig{ExecuteCode: "module.exports = async () => 1;", Dependencies: map[string]string{"a": "1.0.0"}}
	_, err := p.Execute(context.Background(), "tool-1", map[string]any{}, toolCfg)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, err = p.Execute(context.Background(), "tool-1", map[string]any{}, toolCfg)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&fb.createCalls))
}

func TestArgsMarshalRoundTrip(t *testing.T) {
	args := map[string]any{"x": 1, "y": "z"}
	b, err := json.Marshal(args)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, args["y"], out["y"])
}
