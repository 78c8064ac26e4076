package model

import "time"

const (
	SuccessYes = "Y"
	SuccessNo  = "N"
)

// GatewayLog is the audit record: exactly one row per request that enters
// the pipeline. Header, body and response fields are masked and truncated
// before the record is built; the row is insert-only.
type GatewayLog struct {
	LogID        string    `json:"log_id" bson:"_id" db:"log_id"`
	TraceID      string    `json:"trace_id" bson:"trace_id" db:"trace_id"`
	UserID       string    `json:"user_id,omitempty" bson:"user_id,omitempty" db:"user_id"`
	ApiID        string    `json:"api_id" bson:"api_id" db:"api_id"`
	Method       string    `json:"method" bson:"method" db:"method"`
	Path         string    `json:"path" bson:"path" db:"path"`
	QueryParam   string    `json:"query_param,omitempty" bson:"query_param,omitempty" db:"query_param"`
	Headers      string    `json:"headers" bson:"headers" db:"headers"`
	Body         string    `json:"body,omitempty" bson:"body,omitempty" db:"body"`
	StatusCode   int       `json:"status_code" bson:"status_code" db:"status_code"`
	Response     string    `json:"response,omitempty" bson:"response,omitempty" db:"response"`
	RequestedAt  time.Time `json:"requested_at" bson:"requested_at" db:"requested_at"`
	RespondedAt  time.Time `json:"responded_at" bson:"responded_at" db:"responded_at"`
	LatencyMs    int64     `json:"latency_ms" bson:"latency_ms" db:"latency_ms"`
	ClientIP     string    `json:"client_ip" bson:"client_ip" db:"client_ip"`
	UserAgent    string    `json:"user_agent,omitempty" bson:"user_agent,omitempty" db:"user_agent"`
	IsSuccess    string    `json:"is_success" bson:"is_success" db:"is_success"`
	ErrorMessage string    `json:"error_message,omitempty" bson:"error_message,omitempty" db:"error_message"`
}
