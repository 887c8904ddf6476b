package bootloader

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/moffa90/go-lightning/hexfile"
	"github.com/moffa90/go-lightning/logging"
	"github.com/moffa90/go-lightning/protocol"
)

// Device runs commands on a Lightning device. session.Session implements it.
type Device interface {
	Command(ctx context.Context, token string, args []string, mode protocol.Mode) (*protocol.Result, error)
}

// Updater handles the firmware update workflow.
type Updater struct {
	device Device
	config Config
}

// NewUpdater creates a new firmware updater for device.
//
// Example:
//
//	u := bootloader.NewUpdater(sess, bootloader.WithLogger(logger))
//	err := u.UpdateFile(ctx, "firmware.hex")
func NewUpdater(device Device, opts ...Option) *Updater {
	if device == nil {
		panic("device cannot be nil")
	}

	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	config.Logger = logging.OrNop(config.Logger)

	return &Updater{
		device: device,
		config: config,
	}
}

// UpdateFile flashes the firmware image at path.
func (u *Updater) UpdateFile(ctx context.Context, path string) error {
	f, err := hexfile.Open(path)
	if err != nil {
		return &StepError{Step: StepPrepare, Err: err}
	}
	defer f.Close()

	return u.update(ctx, f.Reader, f.Size)
}

// Update flashes the firmware image read from r. Size is the image length in
// bytes and only scales progress reports.
func (u *Updater) Update(ctx context.Context, r io.Reader, size int64) error {
	return u.update(ctx, hexfile.NewReader(r), size)
}

// progress tracks the reporting scale of one update.
type progress struct {
	max      int
	callback ProgressCallback
}

func (p *progress) report(value int, step string) {
	if p.callback != nil {
		p.callback(Progress{Value: value, Max: p.max, Step: step})
	}
}

func (u *Updater) update(ctx context.Context, r *hexfile.Reader, size int64) error {
	p := &progress{
		max:      int(size) + progressFileShift + progressEnd,
		callback: u.config.ProgressCallback,
	}
	start := time.Now()

	p.report(0, StepPrepare)
	u.logInfo("starting firmware update", "size", size)

	p.report(1, StepEnterBootloader)
	if err := u.enterBootloader(ctx); err != nil {
		return err
	}

	p.report(2, StepWaitBootloader)
	if err := u.wait(ctx, u.config.BootloaderDelay); err != nil {
		return &StepError{Step: StepWaitBootloader, Err: err}
	}

	p.report(9, StepErase)
	if _, err := u.device.Command(ctx, protocol.CmdEraseApp, nil, protocol.ModeSingle); err != nil {
		return &StepError{Step: StepErase, Err: errors.Wrap(err, "erase application")}
	}

	var sum protocol.FlashSum
	if err := u.upload(ctx, r, p, &sum); err != nil {
		return err
	}

	p.report(p.max-5, StepValidate)
	if err := u.validate(ctx, &sum); err != nil {
		return err
	}

	p.report(p.max-4, StepFinalize)
	addr := u.config.FlashEnd - uint16(len(u.config.Finalizer))
	if err := u.sendChunk(ctx, addr, u.config.Finalizer, &sum); err != nil {
		return err
	}

	p.report(p.max-2, StepValidate)
	if err := u.validate(ctx, &sum); err != nil {
		return err
	}

	p.report(p.max-1, StepReboot)
	if _, err := u.device.Command(ctx, protocol.CmdRunApp, nil, protocol.ModeSingle); err != nil {
		return &StepError{Step: StepReboot, Err: errors.Wrap(err, "run application")}
	}

	p.report(p.max, StepDone)
	u.logInfo("firmware update complete", "bytes", sum.Count(), "duration", time.Since(start))
	return nil
}

// enterBootloader sends BOOTM. Error 1 means the bootloader is already running.
func (u *Updater) enterBootloader(ctx context.Context) error {
	_, err := u.device.Command(ctx, protocol.CmdBootMode, nil, protocol.ModeSingle)
	if err == nil {
		return nil
	}
	if code, ok := protocol.CodeOf(err); ok && code == protocol.ErrCodeInvalidCommand {
		u.logDebug("device already in bootloader mode")
		return nil
	}
	return &StepError{Step: StepEnterBootloader, Err: errors.Wrap(err, "enter bootloader")}
}

// upload streams the image, sending every data record as one PROG chunk.
func (u *Updater) upload(ctx context.Context, r *hexfile.Reader, p *progress, sum *protocol.FlashSum) error {
	filepos := 0
	for {
		if err := ctx.Err(); err != nil {
			return &StepError{Step: StepUpload, Err: err}
		}

		line, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &StepError{Step: StepUpload, Err: err}
		}

		p.report(progressFileShift+filepos, StepUpload)
		// Sizes assume CRLF line endings; grow the scale when they were shorter.
		filepos += len(line.Raw) + 2
		if progressFileShift+filepos > p.max-progressEnd {
			p.max = progressFileShift + filepos + progressEnd
		}

		rec := line.Record
		if rec == nil {
			continue
		}

		switch rec.Type {
		case hexfile.RecordData:
			if err := u.sendChunk(ctx, rec.Address, rec.Data, sum); err != nil {
				return err
			}
		case hexfile.RecordEOF:
			u.logDebug("end of firmware image", "line", line.Number, "bytes", sum.Count())
			return nil
		default:
			u.logInfo("skipping unsupported record", "line", line.Number, "type", rec.Type)
		}
	}
}

// sendChunk programs data at addr and accounts for it once the device
// acknowledged it.
func (u *Updater) sendChunk(ctx context.Context, addr uint16, data []byte, sum *protocol.FlashSum) error {
	args := []string{
		protocol.FormatHex(uint64(addr), 4),
		protocol.FormatHex(uint64(len(data)), 2),
		strings.ToUpper(fmt.Sprintf("%x", data)),
	}

	if _, err := u.device.Command(ctx, protocol.CmdProgram, args, protocol.ModeSingle); err != nil {
		return &StepError{
			Step:      StepUpload,
			Err:       errors.Wrapf(err, "sendChunk %04X", addr),
			Retryable: true,
		}
	}

	sum.Add(data)
	u.logDebug("chunk programmed", "addr", args[0], "len", len(data))
	return nil
}

// validate compares CHKAPP with the checksum predicted from the bytes sent.
func (u *Updater) validate(ctx context.Context, sum *protocol.FlashSum) error {
	usable := int(u.config.FlashEnd) - int(u.config.FlashStart)
	if sum.Count() > usable {
		u.logError("image larger than flash area", "sent", sum.Count(), "usable", usable)
	}
	expected := sum.Final(usable)

	res, err := u.device.Command(ctx, protocol.CmdCheckApp, nil, protocol.ModeSingle)
	if err != nil {
		return &StepError{Step: StepValidate, Err: errors.Wrap(err, "validateChecksum"), Retryable: true}
	}

	raw, ok := res.First()
	if !ok {
		return &StepError{Step: StepValidate, Err: errors.New("validateChecksum: empty response"), Retryable: true}
	}
	actual, err := strconv.ParseUint(strings.TrimSpace(raw), 16, 16)
	if err != nil {
		return &StepError{Step: StepValidate, Err: errors.Wrapf(err, "validateChecksum: bad value %q", raw), Retryable: true}
	}

	if uint16(actual) != expected {
		u.logError("checksum mismatch", "device", raw, "expected", protocol.FormatHex(uint64(expected), 4))
		return &StepError{
			Step:      StepValidate,
			Err:       &ChecksumMismatchError{Expected: expected, Actual: uint16(actual)},
			Retryable: true,
		}
	}

	u.logDebug("checksum valid", "sum", raw)
	return nil
}

func (u *Updater) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (u *Updater) logDebug(msg string, keysAndValues ...interface{}) {
	u.config.Logger.Debug(msg, keysAndValues...)
}

func (u *Updater) logInfo(msg string, keysAndValues ...interface{}) {
	u.config.Logger.Info(msg, keysAndValues...)
}

func (u *Updater) logError(msg string, keysAndValues ...interface{}) {
	u.config.Logger.Error(msg, keysAndValues...)
}
