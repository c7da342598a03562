package unisphere

import (
	"encoding/json"
	"strings"
)

// CreateHostParams is the body of a host create call
type CreateHostParams struct {
	HostID      string   `json:"hostId"`
	InitiatorID []string `json:"initiatorId"`
}

// CreateStorageGroupParams is the body of a storage group create call
type CreateStorageGroupParams struct {
	SRPID                   string `json:"srpId"`
	StorageGroupID          string `json:"storageGroupId"`
	CreateEmptyStorageGroup bool   `json:"create_empty_storage_group"`
	Emulation               string `json:"emulation,omitempty"`
}

// Response is the status code and body of one REST call.
// Body is nil when the payload is empty or not a JSON object.
type Response struct {
	StatusCode int
	Body       map[string]any
	Raw        []byte
}

func newResponse(status int, raw []byte) *Response {
	r := &Response{StatusCode: status, Raw: raw}
	if len(raw) > 0 {
		var body map[string]any
		if err := json.Unmarshal(raw, &body); err == nil {
			r.Body = body
		}
	}
	return r
}

// OK reports a 2xx status
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Text returns the raw body as trimmed text
func (r *Response) Text() string {
	return strings.TrimSpace(string(r.Raw))
}
