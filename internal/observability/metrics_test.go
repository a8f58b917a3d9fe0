package observability

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/dockctl/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("GET", "/health", 200, 12*time.Millisecond)
	RecordMalformedEnvelope()
}

func TestRecordCommandFoldsUnknownTypes(t *testing.T) {
	testlog.Start(t)
	before := testutil.ToFloat64(commands.WithLabelValues("UNKNOWN", "false"))
	RecordCommand("REBOOT_HOST", false, false, time.Millisecond)
	RecordCommand("FORMAT_DISK", false, false, time.Millisecond)
	after := testutil.ToFloat64(commands.WithLabelValues("UNKNOWN", "false"))
	if after-before != 2 {
		t.Fatalf("unexpected unknown command delta: %v", after-before)
	}
}

func TestSessionGaugeTracksOpenClose(t *testing.T) {
	testlog.Start(t)
	base := testutil.ToFloat64(sessionsActive)
	RecordSessionOpened()
	RecordSessionOpened()
	RecordSessionClosed()
	if got := testutil.ToFloat64(sessionsActive) - base; got != 1 {
		t.Fatalf("unexpected active delta: %v", got)
	}
	RecordSessionClosed()
}

func TestMiddlewareLogsAndRecords(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	r := gin.New()
	r.Use(RequestLogger(logger), RequestMetricsMiddleware())
	r.GET("/broken", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/broken", "500"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/broken", nil))

	if got := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/broken", "500")) - before; got != 1 {
		t.Fatalf("unexpected request delta: %v", got)
	}
	if !strings.Contains(buf.String(), `"level":"error"`) || !strings.Contains(buf.String(), `"path":"/broken"`) {
		t.Fatalf("unexpected log line: %q", buf.String())
	}
}
