package requestid

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareGeneratesID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/timetable", nil)

	Middleware()(c)

	id := Value(c)
	require.NotEmpty(t, id)
	assert.Equal(t, id, w.Header().Get(Header))
}

func TestMiddlewareEchoesInboundID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/timetable", nil)
	c.Request.Header.Set(Header, "client-supplied")

	Middleware()(c)

	assert.Equal(t, "client-supplied", Value(c))
	assert.Equal(t, "client-supplied", w.Header().Get(Header))
}
