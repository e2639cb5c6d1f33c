package probe

import "testing"

func TestURLGuardRejectsBadSchemes(t *testing.T) {
	g := NewURLGuard(false)

	for _, raw := range []string{"ftp://example.com", "file:///etc/passwd", "example.com", ""} {
		if err := g.Validate(raw); err == nil {
			t.Errorf("Validate(%q) = nil, want error", raw)
		}
	}
}

func TestURLGuardRejectsLocalhost(t *testing.T) {
	g := NewURLGuard(false)

	for _, raw := range []string{
		"http://localhost/",
		"http://localhost:8080/health",
		"https://127.0.0.1/",
		"http://[::1]:9000/",
	} {
		if err := g.Validate(raw); err == nil {
			t.Errorf("Validate(%q) = nil, want error", raw)
		}
	}
}

func TestURLGuardRejectsMetadataEndpoints(t *testing.T) {
	for _, allowPrivate := range []bool{false, true} {
		g := NewURLGuard(allowPrivate)
		if err := g.Validate("http://169.254.169.254/latest/meta-data/"); err == nil {
			t.Errorf("allowPrivate=%v: metadata endpoint must always be rejected", allowPrivate)
		}
	}
}

func TestURLGuardAllowsPrivateWhenConfigured(t *testing.T) {
	g := NewURLGuard(true)
	if err := g.Validate("http://localhost:3000/"); err != nil {
		t.Errorf("Validate localhost with allowPrivateIPs: %v", err)
	}
}
