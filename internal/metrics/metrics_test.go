package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/hitoshi/taskman/internal/auth"
)

// CollectorがMetricsCollectorとauth側のインターフェースを満たすことの確認
var (
	_ MetricsCollector = (*Collector)(nil)
	_ auth.Metrics     = (*Collector)(nil)
)

// ログイン結果がラベル別にカウントされることを検証
func TestCollector_RecordLogin(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogin("success")
	c.RecordLogin("success")
	c.RecordLogin("failure")

	if got := testutil.ToFloat64(c.logins.WithLabelValues("success")); got != 2 {
		t.Errorf("logins{outcome=success} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.logins.WithLabelValues("failure")); got != 1 {
		t.Errorf("logins{outcome=failure} = %v, want 1", got)
	}
}

// セッション発行・失効のカウントを検証
func TestCollector_SessionCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSessionIssued()
	c.RecordSessionIssued()
	c.RecordSessionRevoked(3)

	if got := testutil.ToFloat64(c.sessionsIssued); got != 2 {
		t.Errorf("sessionsIssued = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.sessionsRevoked); got != 3 {
		t.Errorf("sessionsRevoked = %v, want 3", got)
	}
}

// 検証失敗が理由別にカウントされることを検証
func TestCollector_RecordSessionVerifyFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSessionVerifyFailure("expired")
	c.RecordSessionVerifyFailure("expired")
	c.RecordSessionVerifyFailure("revoked")

	if got := testutil.ToFloat64(c.verifyFailures.WithLabelValues("expired")); got != 2 {
		t.Errorf("verifyFailures{reason=expired} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.verifyFailures.WithLabelValues("revoked")); got != 1 {
		t.Errorf("verifyFailures{reason=revoked} = %v, want 1", got)
	}
}

// 掃除されたセッション数のカウントを検証
func TestCollector_RecordSessionsSwept(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSessionsSwept(5)
	c.RecordSessionsSwept(2)

	if got := testutil.ToFloat64(c.sessionsSwept); got != 7 {
		t.Errorf("sessionsSwept = %v, want 7", got)
	}
}

// HTTPステータスコードがラベル別にカウントされることを検証
func TestCollector_RecordHTTPStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(401)

	if got := testutil.ToFloat64(c.httpStatus.WithLabelValues("200")); got != 2 {
		t.Errorf("httpStatus{status_code=200} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.httpStatus.WithLabelValues("401")); got != 1 {
		t.Errorf("httpStatus{status_code=401} = %v, want 1", got)
	}
}

// レイテンシの記録がpanicしないことを検証
func TestCollector_RecordRequestLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRequestLatency(15 * time.Millisecond)
	c.RecordRequestLatency(250 * time.Millisecond)
}
