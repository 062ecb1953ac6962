package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

// newTestRateLimiter はテスト用の小さなバーストを持つRateLimiterを生成する。
func newTestRateLimiter(t *testing.T, generalBurst, registrationBurst int) *RateLimiter {
	t.Helper()

	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:       rate.Limit(1.0 / 60.0),
		GeneralBurst:      generalBurst,
		RegistrationRate:  rate.Limit(1.0 / 60.0),
		RegistrationBurst: registrationBurst,
		CleanupInterval:   time.Hour,
	})
	t.Cleanup(rl.Stop)
	return rl
}

// okHandler は常に200を返すハンドラー。
func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// doRequest は指定リモートアドレスからのリクエストをハンドラーに通す。
func doRequest(handler http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/parking/ABC-1234", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

// バースト内のリクエストが許可されることを検証
func TestRateLimiter_General_AllowsWithinBurst(t *testing.T) {
	rl := newTestRateLimiter(t, 3, 1)
	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 3; i++ {
		w := doRequest(handler, "10.0.0.1:12345")
		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i+1, w.Code, http.StatusOK)
		}
	}
}

// バーストを超えたリクエストが429になることを検証
func TestRateLimiter_General_RejectsOverBurst(t *testing.T) {
	rl := newTestRateLimiter(t, 2, 1)
	handler := rl.GeneralMiddleware()(okHandler())

	doRequest(handler, "10.0.0.1:12345")
	doRequest(handler, "10.0.0.1:12345")

	w := doRequest(handler, "10.0.0.1:12345")
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header should be set")
	}
}

// クライアントIPごとに独立したリミッターが使用されることを検証
func TestRateLimiter_General_PerClientIsolation(t *testing.T) {
	rl := newTestRateLimiter(t, 1, 1)
	handler := rl.GeneralMiddleware()(okHandler())

	if w := doRequest(handler, "10.0.0.1:12345"); w.Code != http.StatusOK {
		t.Errorf("client A first request: status = %d, want %d", w.Code, http.StatusOK)
	}
	if w := doRequest(handler, "10.0.0.1:54321"); w.Code != http.StatusTooManyRequests {
		t.Errorf("client A (same IP, different port): status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w := doRequest(handler, "10.0.0.2:12345"); w.Code != http.StatusOK {
		t.Errorf("client B: status = %d, want %d", w.Code, http.StatusOK)
	}

	if count := rl.GeneralLimiterCount(); count != 2 {
		t.Errorf("GeneralLimiterCount() = %d, want 2", count)
	}
}

// 入庫登録のレート制限がAPI全般とは独立に動作することを検証
func TestRateLimiter_Registration_Independent(t *testing.T) {
	rl := newTestRateLimiter(t, 10, 1)
	general := rl.GeneralMiddleware()(okHandler())
	registration := rl.RegistrationMiddleware()(okHandler())

	// 登録側のバーストを使い切る
	if w := doRequest(registration, "10.0.0.1:12345"); w.Code != http.StatusOK {
		t.Fatalf("first registration: status = %d, want %d", w.Code, http.StatusOK)
	}
	if w := doRequest(registration, "10.0.0.1:12345"); w.Code != http.StatusTooManyRequests {
		t.Errorf("second registration: status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}

	// API全般側には影響しない
	if w := doRequest(general, "10.0.0.1:12345"); w.Code != http.StatusOK {
		t.Errorf("general request after registration limit: status = %d, want %d", w.Code, http.StatusOK)
	}
}

// clientKeyがRemoteAddrからIP部分を取り出すことを検証
func TestClientKey(t *testing.T) {
	tests := []struct {
		remoteAddr string
		want       string
	}{
		{"10.0.0.1:12345", "10.0.0.1"},
		{"[::1]:8080", "::1"},
		{"not-host-port", "not-host-port"},
	}

	for _, tt := range tests {
		t.Run(tt.remoteAddr, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if got := clientKey(req); got != tt.want {
				t.Errorf("clientKey(%q) = %q, want %q", tt.remoteAddr, got, tt.want)
			}
		})
	}
}

// cleanupが期限切れエントリのみを削除することを検証
func TestRateLimiter_Cleanup(t *testing.T) {
	rl := newTestRateLimiter(t, 5, 5)
	handler := rl.GeneralMiddleware()(okHandler())

	doRequest(handler, "10.0.0.1:12345")
	doRequest(handler, "10.0.0.2:12345")

	// 片方のエントリを期限切れにする
	rl.generalMu.Lock()
	rl.generalLimiters["10.0.0.1"].lastAccess = time.Now().Add(-3 * time.Hour)
	rl.generalMu.Unlock()

	rl.cleanup()

	if count := rl.GeneralLimiterCount(); count != 1 {
		t.Errorf("GeneralLimiterCount() after cleanup = %d, want 1", count)
	}
}
