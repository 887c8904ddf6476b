package gateway

import (
	"encoding/json"
	"errors"

	"github.com/moffa90/go-lightning/bootloader"
	"github.com/moffa90/go-lightning/protocol"
	"github.com/moffa90/go-lightning/session"
)

// Payload shapes the outcome of an operation for the client.
//
// Object results (maps and structs) are merged into the payload; anything
// else is stored under "result". Port, when not empty, is echoed so that the
// client can match responses. On failure "success" is false and "error"
// holds the message: the catalog text for device errors, which also set
// "code". A rejected login keeps its "Login failed: " prefix. Retryable
// firmware failures set "suggestRetry".
func Payload(port string, result interface{}, err error) map[string]interface{} {
	payload := toObject(result)
	if payload == nil {
		payload = map[string]interface{}{"result": result}
	}

	if port != "" {
		payload["port"] = port
	}

	if err == nil {
		payload["success"] = true
		return payload
	}

	payload["success"] = false
	payload["error"] = err.Error()

	var perr *protocol.ProtocolError
	if errors.As(err, &perr) {
		payload["code"] = perr.Code
		if perr.Message != "" {
			payload["error"] = perr.Message
		}
	}
	var lerr *session.LoginError
	if errors.As(err, &lerr) {
		payload["error"] = "Login failed: " + payload["error"].(string)
	}
	if bootloader.IsRetryable(err) {
		payload["suggestRetry"] = true
	}
	return payload
}

// toObject returns result as a fresh map, or nil when it does not encode to
// a JSON object.
func toObject(result interface{}) map[string]interface{} {
	switch v := result.(type) {
	case nil:
		return nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v)+4)
		for k, val := range v {
			out[k] = val
		}
		return out
	}

	raw, err := json.Marshal(result)
	if err != nil || len(raw) == 0 || raw[0] != '{' {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
