package bootloader

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/moffa90/go-lightning/hexfile"
	"github.com/moffa90/go-lightning/link/linktest"
	"github.com/moffa90/go-lightning/protocol"
)

// MockDevice answers commands through a line handler, the way a device
// answers frames on the serial link.
type MockDevice struct {
	mu      sync.Mutex
	handler linktest.Handler
	frames  []string
}

func NewMockDevice(h linktest.Handler) *MockDevice {
	return &MockDevice{handler: h}
}

func (m *MockDevice) Command(ctx context.Context, token string, args []string, mode protocol.Mode) (*protocol.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := protocol.Command{Token: token, Args: args, Mode: mode}
	frame := strings.TrimSuffix(string(cmd.Frame()), protocol.FrameTerminator)

	m.mu.Lock()
	m.frames = append(m.frames, frame)
	m.mu.Unlock()

	c := protocol.NewCorrelator(cmd, nil)
	for _, line := range m.handler(frame) {
		done, err := c.Feed(line)
		if err != nil {
			return nil, err
		}
		if done {
			return c.Result(), nil
		}
	}
	return nil, &protocol.TimeoutError{Token: token}
}

func (m *MockDevice) Frames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.frames...)
}

func (m *MockDevice) sent(prefix string) bool {
	for _, f := range m.Frames() {
		if strings.HasPrefix(f, prefix) {
			return true
		}
	}
	return false
}

// override answers token with lines and passes everything else to sim.
func override(sim *linktest.Simulator, token string, lines ...string) linktest.Handler {
	return func(frame string) []string {
		if frame == token || strings.HasPrefix(frame, token+",") {
			return lines
		}
		return sim.Handle(frame)
	}
}

func buildImage(eol string, records ...*hexfile.Record) string {
	var b strings.Builder
	for _, r := range records {
		b.WriteString(r.String())
		b.WriteString(eol)
	}
	b.WriteString((&hexfile.Record{Type: hexfile.RecordEOF}).String())
	b.WriteString(eol)
	return b.String()
}

var testRecords = []*hexfile.Record{
	{Address: 0x1400, Type: hexfile.RecordData, Data: []byte{0x01, 0x02, 0x03, 0x04}},
	{Address: 0x1404, Type: hexfile.RecordData, Data: []byte{0xAA, 0xBB}},
}

func newTestUpdater(dev Device, progress *[]Progress) *Updater {
	opts := []Option{WithBootloaderDelay(0)}
	if progress != nil {
		opts = append(opts, WithProgressCallback(func(p Progress) {
			*progress = append(*progress, p)
		}))
	}
	return NewUpdater(dev, opts...)
}

func TestNewUpdater(t *testing.T) {
	dev := NewMockDevice(linktest.NewSimulator("A740").Handle)

	u := NewUpdater(dev)
	if u.config.FlashStart != DefaultFlashStart || u.config.FlashEnd != DefaultFlashEnd {
		t.Errorf("flash range = %04X-%04X", u.config.FlashStart, u.config.FlashEnd)
	}
	if u.config.BootloaderDelay != DefaultBootloaderDelay {
		t.Errorf("BootloaderDelay = %v", u.config.BootloaderDelay)
	}
	if u.config.Logger == nil {
		t.Error("logger should default to a no-op logger")
	}

	u = NewUpdater(dev,
		WithFlashRange(0x2000, 0x1000),
		WithBootloaderDelay(-time.Second),
		WithFinalizer(nil),
	)
	if u.config.FlashStart != DefaultFlashStart {
		t.Error("inverted flash range should be ignored")
	}
	if u.config.BootloaderDelay != DefaultBootloaderDelay {
		t.Error("negative delay should be ignored")
	}
	if len(u.config.Finalizer) != 2 {
		t.Error("empty finalizer should be ignored")
	}
}

func TestNewUpdaterNilDevice(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for nil device")
		}
	}()
	NewUpdater(nil)
}

func TestUpdate(t *testing.T) {
	sim := linktest.NewSimulator("A740")
	dev := NewMockDevice(sim.Handle)
	var progress []Progress

	image := buildImage("\r\n", testRecords...)
	err := newTestUpdater(dev, &progress).Update(context.Background(), strings.NewReader(image), int64(len(image)))
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if sim.InBootloader() {
		t.Error("device should have left the bootloader")
	}
	if sim.Reboots() != 1 {
		t.Errorf("Reboots() = %d, want 1", sim.Reboots())
	}
	if b, ok := sim.Flash(0x1405); !ok || b != 0xBB {
		t.Errorf("Flash(0x1405) = %02X, %v", b, ok)
	}
	if b, ok := sim.Flash(0x39FE); !ok || b != 0xC0 {
		t.Errorf("finalizer not written: %02X, %v", b, ok)
	}

	wantFrames := []string{
		"BOOTM",
		"EAPP",
		"PROG,1400,04,01020304",
		"PROG,1404,02,AABB",
		"CHKAPP",
		"PROG,39FE,02,C0DE",
		"CHKAPP",
		"RUNAPP",
	}
	frames := dev.Frames()
	if len(frames) != len(wantFrames) {
		t.Fatalf("frames = %v, want %v", frames, wantFrames)
	}
	for i := range wantFrames {
		if frames[i] != wantFrames[i] {
			t.Errorf("frame %d = %q, want %q", i, frames[i], wantFrames[i])
		}
	}

	wantMax := len(image) + 15
	lines := strings.Split(strings.TrimSuffix(image, "\r\n"), "\r\n")
	wantValues := []int{0, 1, 2, 9, 10}
	pos := 10
	for _, l := range lines[:len(lines)-1] {
		pos += len(l) + 2
		wantValues = append(wantValues, pos)
	}
	wantValues = append(wantValues, wantMax-5, wantMax-4, wantMax-2, wantMax-1, wantMax)

	if len(progress) != len(wantValues) {
		t.Fatalf("got %d progress reports, want %d: %+v", len(progress), len(wantValues), progress)
	}
	for i, p := range progress {
		if p.Value != wantValues[i] || p.Max != wantMax {
			t.Errorf("progress %d = %d/%d (%s), want %d/%d", i, p.Value, p.Max, p.Step, wantValues[i], wantMax)
		}
	}
	if progress[3].Step != StepErase || progress[4].Step != StepUpload {
		t.Errorf("unexpected steps: %q, %q", progress[3].Step, progress[4].Step)
	}
	if last := progress[len(progress)-1]; !last.Done() {
		t.Errorf("last progress = %+v, want done", last)
	}
}

func TestUpdateAlreadyInBootloader(t *testing.T) {
	sim := linktest.NewSimulator("A750")
	sim.SetBootloader(true)
	dev := NewMockDevice(sim.Handle)

	image := buildImage("\r\n", testRecords...)
	if err := newTestUpdater(dev, nil).Update(context.Background(), strings.NewReader(image), int64(len(image))); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if sim.Reboots() != 1 {
		t.Errorf("Reboots() = %d, want 1", sim.Reboots())
	}
}

func TestUpdateShortLineEndings(t *testing.T) {
	sim := linktest.NewSimulator("A740")
	dev := NewMockDevice(sim.Handle)
	var progress []Progress

	image := buildImage("\n", testRecords...)
	if err := newTestUpdater(dev, &progress).Update(context.Background(), strings.NewReader(image), int64(len(image))); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	initial := len(image) + 15
	last := progress[len(progress)-1]
	if last.Max <= initial {
		t.Errorf("Max = %d, expected the scale to grow beyond %d", last.Max, initial)
	}
	for i, p := range progress {
		if p.Value > p.Max {
			t.Errorf("progress %d = %d exceeds max %d", i, p.Value, p.Max)
		}
		if i > 0 && p.Value < progress[i-1].Value {
			t.Errorf("progress went backwards at %d: %d < %d", i, p.Value, progress[i-1].Value)
		}
	}
	if !last.Done() {
		t.Errorf("last progress = %+v, want done", last)
	}
}

func TestUpdateSkipsUnsupportedRecords(t *testing.T) {
	sim := linktest.NewSimulator("A740")
	dev := NewMockDevice(sim.Handle)

	records := append([]*hexfile.Record{{Type: 0x04, Data: []byte{0x00, 0x00}}}, testRecords...)
	image := "; comment line\r\n" + buildImage("\r\n", records...)
	if err := newTestUpdater(dev, nil).Update(context.Background(), strings.NewReader(image), int64(len(image))); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if dev.sent("PROG,0000") {
		t.Error("extended address record should not be programmed")
	}
}

func TestUpdateErrors(t *testing.T) {
	goodImage := buildImage("\r\n", testRecords...)

	tests := []struct {
		name      string
		handler   func(sim *linktest.Simulator) linktest.Handler
		image     string
		step      string
		retryable bool
		check     func(t *testing.T, err error, dev *MockDevice)
	}{
		{
			name:    "chunk rejected",
			handler: func(sim *linktest.Simulator) linktest.Handler { return override(sim, "PROG", "E,4") },
			image:   goodImage,
			step:    StepUpload, retryable: true,
			check: func(t *testing.T, err error, dev *MockDevice) {
				if code, ok := protocol.CodeOf(err); !ok || code != 4 {
					t.Errorf("CodeOf() = %d, %v", code, ok)
				}
			},
		},
		{
			name:    "checksum mismatch",
			handler: func(sim *linktest.Simulator) linktest.Handler { return override(sim, "CHKAPP", "=CHKAPP,0000", "OK") },
			image:   goodImage,
			step:    StepValidate, retryable: true,
			check: func(t *testing.T, err error, dev *MockDevice) {
				var mismatch *ChecksumMismatchError
				if !errors.As(err, &mismatch) {
					t.Fatalf("expected ChecksumMismatchError, got %v", err)
				}
				if mismatch.Actual != 0 {
					t.Errorf("Actual = %04X", mismatch.Actual)
				}
				if dev.sent("PROG,39FE") {
					t.Error("finalizer must not be written after a failed validation")
				}
			},
		},
		{
			name:    "checksum not hex",
			handler: func(sim *linktest.Simulator) linktest.Handler { return override(sim, "CHKAPP", "=CHKAPP,zz", "OK") },
			image:   goodImage,
			step:    StepValidate, retryable: true,
		},
		{
			name:    "erase fails",
			handler: func(sim *linktest.Simulator) linktest.Handler { return override(sim, "EAPP", "E,5") },
			image:   goodImage,
			step:    StepErase,
		},
		{
			name:    "bootm fails",
			handler: func(sim *linktest.Simulator) linktest.Handler { return override(sim, "BOOTM", "E,6") },
			image:   goodImage,
			step:    StepEnterBootloader,
		},
		{
			name:    "runapp fails",
			handler: func(sim *linktest.Simulator) linktest.Handler { return override(sim, "RUNAPP", "E,5") },
			image:   goodImage,
			step:    StepReboot,
		},
		{
			name:    "bad line checksum",
			handler: func(sim *linktest.Simulator) linktest.Handler { return sim.Handle },
			image:   ":0414000001020304FF\r\n:00000001FF\r\n",
			step:    StepUpload,
			check: func(t *testing.T, err error, dev *MockDevice) {
				var ferr *hexfile.FormatError
				if !errors.As(err, &ferr) || ferr.Reason != hexfile.ReasonChecksum || ferr.Line != 1 {
					t.Errorf("expected checksum FormatError on line 1, got %v", err)
				}
				if dev.sent("PROG") {
					t.Error("nothing should be programmed")
				}
			},
		},
		{
			name:    "missing eof record",
			handler: func(sim *linktest.Simulator) linktest.Handler { return sim.Handle },
			image:   testRecords[0].String() + "\r\n",
			step:    StepUpload,
			check: func(t *testing.T, err error, dev *MockDevice) {
				if !errors.Is(err, hexfile.ErrUnexpectedEOF) {
					t.Errorf("expected ErrUnexpectedEOF, got %v", err)
				}
				if dev.sent("CHKAPP") {
					t.Error("validation must not run on a truncated image")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := linktest.NewSimulator("A740")
			dev := NewMockDevice(tt.handler(sim))

			err := newTestUpdater(dev, nil).Update(context.Background(), strings.NewReader(tt.image), int64(len(tt.image)))
			if err == nil {
				t.Fatal("expected error")
			}

			var serr *StepError
			if !errors.As(err, &serr) {
				t.Fatalf("expected StepError, got %T: %v", err, err)
			}
			if serr.Step != tt.step {
				t.Errorf("Step = %q, want %q", serr.Step, tt.step)
			}
			if IsRetryable(err) != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", IsRetryable(err), tt.retryable)
			}
			if tt.check != nil {
				tt.check(t, err, dev)
			}
		})
	}
}

func TestUpdateCanceledDuringDelay(t *testing.T) {
	sim := linktest.NewSimulator("A740")
	dev := NewMockDevice(sim.Handle)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	image := buildImage("\r\n", testRecords...)
	err := NewUpdater(dev, WithBootloaderDelay(time.Minute)).Update(ctx, strings.NewReader(image), int64(len(image)))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if dev.sent("EAPP") {
		t.Error("erase must not run after cancellation")
	}
}

func TestUpdateFileMissing(t *testing.T) {
	dev := NewMockDevice(linktest.NewSimulator("A740").Handle)

	err := newTestUpdater(dev, nil).UpdateFile(context.Background(), "does-not-exist.hex")
	var serr *StepError
	if !errors.As(err, &serr) || serr.Step != StepPrepare {
		t.Fatalf("expected prepare StepError, got %v", err)
	}
	if len(dev.Frames()) != 0 {
		t.Errorf("no command should be sent, got %v", dev.Frames())
	}
}

func TestStepErrorFormat(t *testing.T) {
	err := &StepError{Step: StepValidate, Err: &ChecksumMismatchError{Expected: 0xD805, Actual: 0xDA00}}
	want := "Validating checksum: Checksum mismatch: device reports DA00, expected D805"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
