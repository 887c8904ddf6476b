package gateway

import (
	"errors"
	"reflect"
	"testing"

	"github.com/moffa90/go-lightning/bootloader"
	"github.com/moffa90/go-lightning/protocol"
	"github.com/moffa90/go-lightning/session"
)

func TestPayload(t *testing.T) {
	protoErr := &protocol.ProtocolError{Token: "BRT", Code: 7, Message: "Parameter out of range"}

	tests := []struct {
		name   string
		port   string
		result interface{}
		err    error
		want   map[string]interface{}
	}{
		{
			name: "nil result",
			want: map[string]interface{}{"result": nil, "success": true},
		},
		{
			name:   "scalar result with port",
			port:   "/dev/ttyACM0",
			result: "Now the device should reboot",
			want: map[string]interface{}{
				"result":  "Now the device should reboot",
				"port":    "/dev/ttyACM0",
				"success": true,
			},
		},
		{
			name:   "map merged",
			result: map[string]interface{}{"settings": 1},
			want:   map[string]interface{}{"settings": 1, "success": true},
		},
		{
			name:   "struct merged",
			result: &session.OpenResult{Version: "A750:V2", Model: "A750"},
			want:   map[string]interface{}{"version": "A750:V2", "model": "A750", "success": true},
		},
		{
			name: "device error",
			err:  protoErr,
			want: map[string]interface{}{
				"result":  nil,
				"success": false,
				"error":   "Parameter out of range",
				"code":    7,
			},
		},
		{
			name: "plain error",
			err:  errors.New("x"),
			want: map[string]interface{}{"result": nil, "success": false, "error": "x"},
		},
		{
			name: "login failure keeps prefix",
			err:  &session.LoginError{Err: protoErr},
			want: map[string]interface{}{
				"result":  nil,
				"success": false,
				"error":   "Login failed: Parameter out of range",
				"code":    7,
			},
		},
		{
			name:   "partial data kept",
			result: map[string]interface{}{"changed": map[string]interface{}{"a": false}},
			err:    errors.New("Failed to set some value(s): a"),
			want: map[string]interface{}{
				"changed": map[string]interface{}{"a": false},
				"success": false,
				"error":   "Failed to set some value(s): a",
			},
		},
		{
			name: "retryable firmware failure",
			err:  &bootloader.StepError{Step: bootloader.StepUpload, Err: protoErr, Retryable: true},
			want: map[string]interface{}{
				"result":       nil,
				"success":      false,
				"error":        "Parameter out of range",
				"code":         7,
				"suggestRetry": true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Payload(tt.port, tt.result, tt.err)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Payload() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestPayloadDoesNotAliasResult(t *testing.T) {
	result := map[string]interface{}{"a": 1}
	Payload("p", result, nil)
	if len(result) != 1 {
		t.Errorf("result was modified: %v", result)
	}
}
