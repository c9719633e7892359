package security

import (
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	resolver := NewIPResolver()

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "direct connection",
			remoteAddr: "203.0.113.9:54021",
			want:       "203.0.113.9",
		},
		{
			name:       "forwarded header from untrusted peer ignored",
			remoteAddr: "203.0.113.9:54021",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.7"},
			want:       "203.0.113.9",
		},
		{
			name:       "forwarded header from trusted proxy honored",
			remoteAddr: "127.0.0.1:40000",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.7, 10.0.0.1"},
			want:       "198.51.100.7",
		},
		{
			name:       "x-real-ip fallback",
			remoteAddr: "192.168.1.10:40000",
			headers:    map[string]string{"X-Real-IP": "198.51.100.7"},
			want:       "198.51.100.7",
		},
		{
			name:       "garbage forwarded value falls back to direct",
			remoteAddr: "127.0.0.1:40000",
			headers:    map[string]string{"X-Forwarded-For": "not-an-ip"},
			want:       "127.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := resolver.ClientIP(req); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAddTrustedProxy(t *testing.T) {
	resolver := NewIPResolver()
	if err := resolver.AddTrustedProxy("100.64.0.0/10"); err != nil {
		t.Fatalf("AddTrustedProxy() error = %v", err)
	}
	if err := resolver.AddTrustedProxy("nope"); err == nil {
		t.Fatal("AddTrustedProxy() should reject invalid CIDR")
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "100.64.0.5:1234"
	req.Header.Set("X-Forwarded-For", "198.51.100.7")
	if got := resolver.ClientIP(req); got != "198.51.100.7" {
		t.Errorf("ClientIP() = %q, want forwarded value", got)
	}
}
