package a2a

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/agentrun/internal/a2a/jsonrpc"
	"github.com/kandev/agentrun/internal/auth"
	"github.com/kandev/agentrun/internal/common/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testServer() *Server {
	return &Server{log: logger.Default()}
}

func authedContext(method, path, body string) (*gin.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	scope := &auth.ExecutionScope{TenantID: "t1", ProjectID: "p1", GraphID: "g1"}
	req = req.WithContext(auth.WithScope(req.Context(), scope))

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = req
	c.Params = gin.Params{{Key: "graphId", Value: "g1"}}
	return c, rec
}

func TestDispatchRejectsUnauthenticatedRequest(t *testing.T) {
	req := httptest.NewRequest("POST", "/agents/g1/a2a", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = req

	testServer().Dispatch(c)

	assert.NotEqual(t, 200, rec.Code)
}

func TestDispatchReturnsParseErrorForMalformedJSON(t *testing.T) {
	c, rec := authedContext("POST", "/agents/g1/a2a", `{not json`)

	testServer().Dispatch(c)

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":-32700`)
}

func TestDispatchRejectsWrongJSONRPCVersion(t *testing.T) {
	c, rec := authedContext("POST", "/agents/g1/a2a", `{"jsonrpc":"1.0","method":"tasks/get","id":1}`)

	testServer().Dispatch(c)

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":-32600`)
}

func TestDispatchReturnsMethodNotFoundForUnknownMethod(t *testing.T) {
	c, rec := authedContext("POST", "/agents/g1/a2a", `{"jsonrpc":"2.0","method":"bogus/method","id":1}`)

	testServer().Dispatch(c)

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":-32601`)
}

func TestWriteResultAndWriteErrorEnvelopes(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest("POST", "/x", nil)

	s := testServer()
	s.writeResult(c, float64(1), map[string]string{"ok": "yes"})
	assert.Contains(t, rec.Body.String(), `"result"`)

	rec2 := httptest.NewRecorder()
	c2, _ := gin.CreateTestContext(rec2)
	c2.Request = httptest.NewRequest("POST", "/x", nil)
	s.writeError(c2, float64(1), jsonrpc.CodeInvalidParams, "bad params", "detail")
	assert.Contains(t, rec2.Body.String(), `"code":-32602`)
}
