package models

import "time"

// Probe error categories. Connection-layer failures leave HTTPStatus nil.
const (
	ErrorKindDNS     = "dns"
	ErrorKindConnect = "connect"
	ErrorKindTLS     = "tls"
	ErrorKindHTTP5xx = "http_5xx"
)

// AnnotationNon2xx marks results that were reachable but answered with a
// client error (4xx). The site still counts as online.
const AnnotationNon2xx = "non-2xx"

// CheckResult is one probe outcome. Rows are append-only.
type CheckResult struct {
	ID             int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	SiteID         string     `json:"site_id" gorm:"not null;index:idx_check_site_time"`
	Timestamp      time.Time  `json:"timestamp" gorm:"not null;index:idx_check_site_time,sort:desc"`
	HTTPStatus     *int       `json:"http_status"`
	ResponseTimeMs int64      `json:"response_time_ms"`
	SSLValid       *bool      `json:"ssl_valid"`
	SSLExpiresAt   *time.Time `json:"ssl_expires_at"`
	ErrorKind      *string    `json:"error_kind"`
	ErrorDetail    string     `json:"error_detail,omitempty" gorm:"type:text"`
	Annotation     string     `json:"annotation,omitempty"`
}

// TableName specifies the table name for CheckResult
func (CheckResult) TableName() string {
	return "check_results"
}

// Failed reports whether this result counts against the site: a
// connection-layer error or a 5xx response.
func (r *CheckResult) Failed() bool {
	return r.ErrorKind != nil
}

// Reachable reports whether the probe got any HTTP response at all.
func (r *CheckResult) Reachable() bool {
	return r.HTTPStatus != nil
}
