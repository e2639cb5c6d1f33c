package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/siteguardhq/siteguard/internal/models"
)

func testSite(url string) *models.Site {
	return &models.Site{
		ID:             "site-1",
		OwnerID:        "owner-1",
		Name:           "test",
		URL:            url,
		TimeoutSeconds: 5,
	}
}

func TestCheckSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := New(5*time.Second, zap.NewNop())
	result := p.Check(context.Background(), testSite(srv.URL))

	if result.Timestamp.IsZero() {
		t.Error("timestamp not populated")
	}
	if result.ErrorKind != nil {
		t.Fatalf("unexpected error kind %q (%s)", *result.ErrorKind, result.ErrorDetail)
	}
	if result.HTTPStatus == nil || *result.HTTPStatus != http.StatusOK {
		t.Errorf("HTTPStatus = %v, want 200", result.HTTPStatus)
	}
	if result.Annotation != "" {
		t.Errorf("unexpected annotation %q", result.Annotation)
	}
	if result.SSLValid != nil {
		t.Error("SSLValid should be nil for plain HTTP")
	}
}

func TestCheckClientErrorIsAnnotatedNotFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := New(5*time.Second, zap.NewNop())
	result := p.Check(context.Background(), testSite(srv.URL))

	if result.ErrorKind != nil {
		t.Fatalf("4xx must not be a probe failure, got %q", *result.ErrorKind)
	}
	if result.Annotation != models.AnnotationNon2xx {
		t.Errorf("Annotation = %q, want %q", result.Annotation, models.AnnotationNon2xx)
	}
	if result.HTTPStatus == nil || *result.HTTPStatus != http.StatusNotFound {
		t.Errorf("HTTPStatus = %v, want 404", result.HTTPStatus)
	}
}

func TestCheckServerErrorClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := New(5*time.Second, zap.NewNop())
	result := p.Check(context.Background(), testSite(srv.URL))

	if result.ErrorKind == nil || *result.ErrorKind != models.ErrorKindHTTP5xx {
		t.Fatalf("ErrorKind = %v, want %q", result.ErrorKind, models.ErrorKindHTTP5xx)
	}
	// 5xx is an HTTP-layer failure: the status code stays populated.
	if result.HTTPStatus == nil || *result.HTTPStatus != http.StatusInternalServerError {
		t.Errorf("HTTPStatus = %v, want 500", result.HTTPStatus)
	}
}

func TestCheckConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // nothing listens on the port anymore

	p := New(2*time.Second, zap.NewNop())
	result := p.Check(context.Background(), testSite(url))

	if result.ErrorKind == nil || *result.ErrorKind != models.ErrorKindConnect {
		t.Fatalf("ErrorKind = %v, want %q", result.ErrorKind, models.ErrorKindConnect)
	}
	if result.HTTPStatus != nil {
		t.Errorf("HTTPStatus must be nil on connection failure, got %d", *result.HTTPStatus)
	}
}

func TestCheckSelfSignedCertificateIsTLSFailure(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := New(5*time.Second, zap.NewNop())
	result := p.Check(context.Background(), testSite(srv.URL))

	if result.ErrorKind == nil || *result.ErrorKind != models.ErrorKindTLS {
		t.Fatalf("ErrorKind = %v, want %q (%s)", result.ErrorKind, models.ErrorKindTLS, result.ErrorDetail)
	}
	if result.HTTPStatus != nil {
		t.Errorf("HTTPStatus must be nil on TLS failure, got %d", *result.HTTPStatus)
	}
	if result.SSLValid == nil || *result.SSLValid {
		t.Error("SSLValid should be false on TLS failure")
	}
}

func TestCheckTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(3 * time.Second)
	}))
	defer srv.Close()

	site := testSite(srv.URL)
	site.TimeoutSeconds = 1

	p := New(time.Second, zap.NewNop())
	start := time.Now()
	result := p.Check(context.Background(), site)

	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("check took %s, should be bounded by the 1s timeout", elapsed)
	}
	if result.ErrorKind == nil || *result.ErrorKind != models.ErrorKindConnect {
		t.Fatalf("ErrorKind = %v, want %q", result.ErrorKind, models.ErrorKindConnect)
	}
}

func TestCheckFollowsRedirects(t *testing.T) {
	var target *httptest.Server
	target = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()

	redirector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL, http.StatusFound)
	}))
	defer redirector.Close()

	p := New(5*time.Second, zap.NewNop())
	result := p.Check(context.Background(), testSite(redirector.URL))

	if result.ErrorKind != nil {
		t.Fatalf("unexpected error: %s", result.ErrorDetail)
	}
	if result.HTTPStatus == nil || *result.HTTPStatus != http.StatusOK {
		t.Errorf("HTTPStatus = %v, want 200 after redirect", result.HTTPStatus)
	}
}
