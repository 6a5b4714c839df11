package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor
	FieldUserID   = "user_id"
	FieldUsername = "username"

	// Streaming
	FieldStreamID = "stream_id"
	FieldViewerID = "viewer_id"
	FieldAgentID  = "agent_id"

	// Service
	FieldService = "service"
)
