package protocol

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"
)

func TestCodeOf(t *testing.T) {
	err := fmt.Errorf("login: %w", &ProtocolError{Token: CmdLogin, Code: 6, Message: "Access denied"})

	code, ok := CodeOf(err)
	if !ok || code != 6 {
		t.Errorf("CodeOf() = %d, %v", code, ok)
	}
	if !IsProtocolError(err) {
		t.Error("IsProtocolError() = false")
	}

	if _, ok := CodeOf(io.EOF); ok {
		t.Error("CodeOf(io.EOF) should report false")
	}
}

func TestProtocolErrorWithoutMessage(t *testing.T) {
	err := &ProtocolError{Code: 42}
	if err.Error() != "Error 42: Unknown error" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestTimeoutError(t *testing.T) {
	err := &TimeoutError{Token: CmdCheckApp, After: 5 * time.Second}
	if !strings.Contains(err.Error(), "CHKAPP") || !strings.Contains(err.Error(), "5s") {
		t.Errorf("Error() = %q", err.Error())
	}

	var te interface{ Timeout() bool }
	if !errors.As(err, &te) || !te.Timeout() {
		t.Error("TimeoutError should report Timeout()")
	}
}

func TestTransportErrorUnwrap(t *testing.T) {
	err := &TransportError{Op: "write", Err: io.ErrClosedPipe}
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Error("TransportError should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "link write failed") {
		t.Errorf("Error() = %q", err.Error())
	}
}
