package consts

const (
	// RequestId 请求id名称
	RequestId = "request_id"

	DateLayout   = "2006-01-02"
	TimeLayout   = "2006-01-02 15:04:05"
	TimeLayoutMs = "2006-01-02 15:04:05.000"
)

// webhook 应答的 status 取值
const (
	StatusExecuting = "executing"
	StatusDuplicate = "duplicate"
	StatusError     = "error"
)
