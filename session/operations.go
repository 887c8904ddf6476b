package session

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"github.com/moffa90/go-lightning/bootloader"
	"github.com/moffa90/go-lightning/protocol"
)

// Login authenticates with the device password.
func (s *Session) Login(ctx context.Context, password string) error {
	if _, err := s.Command(ctx, protocol.CmdLogin, []string{password}, protocol.ModeSingle); err != nil {
		return &LoginError{Err: err}
	}
	return nil
}

// SetPassword changes the device password.
func (s *Session) SetPassword(ctx context.Context, password string) error {
	_, err := s.Command(ctx, protocol.CmdPassword, []string{password}, protocol.ModeSingle)
	return err
}

// DeviceVersion queries the version string.
func (s *Session) DeviceVersion(ctx context.Context) ([]string, error) {
	res, err := s.Command(ctx, protocol.CmdVersion, nil, protocol.ModeSingle)
	if err != nil {
		return nil, err
	}
	if res.Fields == nil {
		return []string{}, nil
	}
	return res.Fields, nil
}

// ResetSettings restores factory defaults.
func (s *Session) ResetSettings(ctx context.Context) error {
	_, err := s.Command(ctx, protocol.CmdInit, nil, protocol.ModeSingle)
	return err
}

// LeaveBootmode starts the application from the bootloader. Use it when the
// device answers E,1 to every command, LOGIN included.
func (s *Session) LeaveBootmode(ctx context.Context) (string, error) {
	if _, err := s.Command(ctx, protocol.CmdRunApp, nil, protocol.ModeSingle); err != nil {
		return "", err
	}
	return "Now the device should reboot", nil
}

// ReadSettings reads every setting of the device model. With forSave,
// read-only settings are skipped and values are converted to the shape
// expected by WriteSettings.
//
// All reads are submitted at once and run one after the other through the
// queue. A failed key is reported as "<key>__error" and also as "error",
// which holds the last failure; the other keys are unaffected. Single values
// are unwrapped from their list.
func (s *Session) ReadSettings(ctx context.Context, forSave bool) map[string]interface{} {
	result := map[string]interface{}{}
	settings := s.Settings()
	if settings == nil {
		return result
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, name := range settings.Names() {
		st, _ := settings.Get(name)
		if forSave && st.ReadOnly() {
			continue
		}

		wg.Add(1)
		go func(name string) {
			defer wg.Done()

			value, err := s.readSetting(ctx, name, forSave)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.log.Info("failed to read setting", "port", s.port, "setting", name, "error", err)
				result[name+"__error"] = err.Error()
				result["error"] = err.Error()
				return
			}
			result[name] = value
		}(name)
	}
	wg.Wait()

	return result
}

func (s *Session) readSetting(ctx context.Context, name string, forSave bool) (interface{}, error) {
	st, ok := s.Settings().Get(name)
	if !ok {
		return nil, fmt.Errorf("Unknown parameter")
	}

	res, err := s.Command(ctx, st.Command, nil, protocol.ModeSingle)
	if err != nil {
		return nil, err
	}

	fields := res.Fields
	if fields == nil {
		fields = []string{}
	}
	values, err := st.Format(fields)
	if err != nil {
		return nil, err
	}
	if forSave && st.Convert != nil {
		values = st.Convert(values)
	}

	if len(values) == 1 {
		return values[0], nil
	}
	return values, nil
}

// WriteSettings writes the given settings, each key independently. The
// returned map holds true or false per key, and "<key>__error" and
// "<key>__code" (device error code, when there is one) for failed keys.
// If any key failed the error is a *BatchError carrying the same map.
//
// A value may be a list of arguments or a scalar, which is sent as the only
// argument. Unknown and read-only keys fail without device I/O.
func (s *Session) WriteSettings(ctx context.Context, settings map[string]interface{}) (map[string]interface{}, error) {
	if settings == nil {
		return nil, ErrInvalidSettings
	}

	results := map[string]interface{}{}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for key, value := range settings {
		wg.Add(1)
		go func(key string, value interface{}) {
			defer wg.Done()

			err := s.writeSetting(ctx, key, value)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.log.Info("failed to write setting", "port", s.port, "setting", key, "error", err)
				results[key] = false
				results[key+"__error"] = err.Error()
				if code, ok := protocol.CodeOf(err); ok {
					results[key+"__code"] = code
				}
				return
			}
			results[key] = true
		}(key, value)
	}
	wg.Wait()

	if berr := newBatchError(results); berr != nil {
		return results, berr
	}
	return results, nil
}

func (s *Session) writeSetting(ctx context.Context, key string, value interface{}) error {
	settings := s.Settings()
	if settings == nil {
		return ErrNotActive
	}
	st, ok := settings.Get(key)
	if !ok {
		return fmt.Errorf("Unknown parameter")
	}
	if st.ReadOnly() {
		return fmt.Errorf("Read-only parameter")
	}

	var values []interface{}
	switch v := value.(type) {
	case []interface{}:
		values = v
	case []string:
		for _, item := range v {
			values = append(values, item)
		}
	case map[string]interface{}:
		return fmt.Errorf("Invalid parameter type")
	default:
		values = []interface{}{v}
	}

	args, err := st.Encode(values)
	if err != nil {
		return err
	}

	_, err = s.Command(ctx, st.Command, args, protocol.ModeSingle)
	return err
}

// Diagnostics holds the counters parsed from the DIAG dump. Counters the
// device did not report are nil.
type Diagnostics struct {
	FlashWrites   *int64 `json:"flashWrites"`
	UptimeSeconds *int64 `json:"uptimeSeconds"`
	ADCReading    *int64 `json:"adcReading"`
}

var diagnosticPatterns = []struct {
	re    *regexp.Regexp
	field func(d *Diagnostics) **int64
}{
	{regexp.MustCompile(`(?i)^flash writes = ([0-9]+)$`), func(d *Diagnostics) **int64 { return &d.FlashWrites }},
	{regexp.MustCompile(`(?i)^seconds since reset = ([0-9]+)$`), func(d *Diagnostics) **int64 { return &d.UptimeSeconds }},
	{regexp.MustCompile(`(?i)^ADC reading = ([0-9]+)$`), func(d *Diagnostics) **int64 { return &d.ADCReading }},
}

// Diagnostics dumps and parses the device diagnostics. The first matching
// line of each counter wins.
func (s *Session) Diagnostics(ctx context.Context) (*Diagnostics, error) {
	res, err := s.Command(ctx, protocol.CmdDiagnostics, nil, protocol.ModeRaw)
	if err != nil {
		return nil, err
	}
	return ParseDiagnostics(res.Lines), nil
}

// ParseDiagnostics extracts the known counters from raw DIAG lines.
func ParseDiagnostics(lines []string) *Diagnostics {
	d := &Diagnostics{}
	for _, line := range lines {
		for _, p := range diagnosticPatterns {
			field := p.field(d)
			if *field != nil {
				continue
			}
			m := p.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			n, err := strconv.ParseInt(m[1], 10, 64)
			if err != nil {
				continue
			}
			*field = &n
		}
	}
	return d
}

// CalibrationStart starts calibration (A740).
func (s *Session) CalibrationStart(ctx context.Context) error {
	_, err := s.Command(ctx, protocol.CmdCalibrate, []string{"1"}, protocol.ModeSingle)
	return err
}

// CalibrationStatus is the result of CAL without arguments.
type CalibrationStatus struct {
	CalibrationRunning bool       `json:"calibrationRunning"`
	BanksCount         int        `json:"banksCount,omitempty"`
	Banks              [][]string `json:"banks,omitempty"`
}

// CalibrationStatus reports calibration progress or results (A740).
func (s *Session) CalibrationStatus(ctx context.Context) (*CalibrationStatus, error) {
	res, err := s.Command(ctx, protocol.CmdCalibrate, nil, protocol.ModeSingle)
	if err != nil {
		return nil, err
	}
	return ParseCalibration(res.Fields)
}

// ParseCalibration groups CAL fields into banks. No fields means calibration
// is still running. The fields hold ten values per bank, interleaved: bank i
// gets fields i, i+banks, i+2*banks, ...
func ParseCalibration(fields []string) (*CalibrationStatus, error) {
	if len(fields) == 0 {
		return &CalibrationStatus{CalibrationRunning: true}, nil
	}
	if len(fields)%10 != 0 {
		return nil, fmt.Errorf("Wrong values count: %d", len(fields))
	}

	count := len(fields) / 10
	banks := make([][]string, count)
	for i := 0; i < count; i++ {
		for j := 0; j < len(fields); j += count {
			banks[i] = append(banks[i], fields[j+i])
		}
	}
	return &CalibrationStatus{BanksCount: count, Banks: banks}, nil
}

// PeersSeen is the set of team slots heard by a reader.
type PeersSeen struct {
	Mask  int   `json:"mask"`
	Slots []int `json:"slots"`
}

// InfraRedReading is one record of RIR (A750).
type InfraRedReading struct {
	RxSlot     int       `json:"rxslot"`
	Protocol   int       `json:"protocol"`
	Location   int       `json:"location"`
	TeamStatus int       `json:"_teamstatus"`
	PeersSeen  PeersSeen `json:"peers_seen"`
	HopCount   int       `json:"hopcount"`
	TimeSlot   int       `json:"timeslot"`
}

// ReadInfraRed returns the infra-red receptions reported by the device
// (A750).
func (s *Session) ReadInfraRed(ctx context.Context) ([]InfraRedReading, error) {
	res, err := s.Command(ctx, protocol.CmdReadInfraRed, nil, protocol.ModeMultiple)
	if err != nil {
		return nil, err
	}

	readings := make([]InfraRedReading, 0, len(res.Records))
	for _, rec := range res.Records {
		r, err := ParseInfraRed(rec)
		if err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	return readings, nil
}

// ParseInfraRed decodes one RIR record: rxslot, protocol, location and the
// team status word. Team status bits 0-7 are the peers seen, bits 8-12 the
// hop count and bits 13-15 the time slot.
func ParseInfraRed(fields []string) (InfraRedReading, error) {
	if len(fields) < 4 {
		return InfraRedReading{}, fmt.Errorf("RIR record has %d fields, expected 4", len(fields))
	}

	var n [4]int
	for i := range n {
		v, err := strconv.Atoi(fields[i])
		if err != nil {
			return InfraRedReading{}, fmt.Errorf("RIR field %d: %w", i, err)
		}
		n[i] = v
	}

	ts := n[3]
	mask := ts & 0xFF
	slots := []int{}
	for i := 0; i < 8; i++ {
		if mask&(1<<i) != 0 {
			slots = append(slots, i)
		}
	}

	return InfraRedReading{
		RxSlot:     n[0],
		Protocol:   n[1],
		Location:   n[2],
		TeamStatus: ts,
		PeersSeen:  PeersSeen{Mask: mask, Slots: slots},
		HopCount:   (ts >> 8) & 0x1F,
		TimeSlot:   (ts >> 13) & 0x7,
	}, nil
}

// UpdateFirmware flashes the firmware file at path. See bootloader.Updater.
func (s *Session) UpdateFirmware(ctx context.Context, path string, opts ...bootloader.Option) error {
	return bootloader.NewUpdater(s, opts...).UpdateFile(ctx, path)
}
