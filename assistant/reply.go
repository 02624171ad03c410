package assistant

import (
	"fmt"

	"listening/api"
)

const (
	ActionChat      = "chat"
	ActionWebSearch = "web_search"
	ActionCallPhone = "call_phone"
	ActionSendSMS   = "send_sms"
)

// Reply is a chat answer with normalized params.
type Reply struct {
	Message   string
	Action    string
	Params    map[string]any
	UseRAG    bool
	SessionID string
}

// NewReply copies the server payload. A target param stands in for name when name
// is absent; when both are present name wins.
func NewReply(d api.ChatData) Reply {
	params := make(map[string]any, len(d.Params)+1)
	for k, v := range d.Params {
		params[k] = v
	}
	if target, ok := params["target"].(string); ok && isAbsent(params["name"]) {
		params["name"] = target
	}

	action := d.Action
	if action == "" {
		action = ActionChat
	}
	return Reply{
		Message:   d.Message,
		Action:    action,
		Params:    params,
		UseRAG:    d.UseRAG,
		SessionID: d.SessionID,
	}
}

func isAbsent(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// Param returns a param as text, or "" when missing.
func (r Reply) Param(key string) string {
	switch v := r.Params[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
