package proxy

import "fmt"

var errNotANode = fmt.Errorf("proxy: subtree is not a node")

// RemoteError is a {code, message, detail?} reply from the remote
// module, surfaced as a Go error.
type RemoteError struct {
	Code    int
	Message string
	Detail  string
}

func (e *RemoteError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("proxy: remote error %d: %s: %s", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("proxy: remote error %d: %s", e.Code, e.Message)
}

func remoteError(m map[string]any) error {
	re := &RemoteError{}
	if code, ok := m["code"].(float64); ok {
		re.Code = int(code)
	}
	if msg, ok := m["message"].(string); ok {
		re.Message = msg
	}
	if detail, ok := m["detail"].(string); ok {
		re.Detail = detail
	}
	return re
}
