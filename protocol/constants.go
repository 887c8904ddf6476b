package protocol

import "time"

// Command tokens understood by Lightning devices.
const (
	// CmdVersion queries the device version string ("MODEL:REST")
	CmdVersion = "VER"

	// CmdLogin authenticates with the device password
	CmdLogin = "LOGIN"

	// CmdPassword changes the device password
	CmdPassword = "PWD"

	// CmdInit resets all settings to factory defaults
	CmdInit = "INIT"

	// CmdDiagnostics dumps free-form diagnostic lines
	CmdDiagnostics = "DIAG"

	// CmdBootMode switches the device into its bootloader
	CmdBootMode = "BOOTM"

	// CmdEraseApp erases the application flash (bootloader only)
	CmdEraseApp = "EAPP"

	// CmdProgram writes one chunk of flash (bootloader only)
	CmdProgram = "PROG"

	// CmdCheckApp reports the 16-bit application checksum (bootloader only)
	CmdCheckApp = "CHKAPP"

	// CmdRunApp leaves the bootloader and starts the application
	CmdRunApp = "RUNAPP"

	// CmdCalibrate starts calibration or reports its status (A740)
	CmdCalibrate = "CAL"

	// CmdReadInfraRed reports received infra-red frames (A750)
	CmdReadInfraRed = "RIR"
)

// Line protocol framing.
const (
	// ResponseOK terminates a successful command
	ResponseOK = "OK"

	// ResponsePrefix starts every payload line of a response
	ResponsePrefix = "="

	// ErrorPrefix starts the terminal line of a failed command
	ErrorPrefix = "E,"

	// FieldSeparator separates a token from its arguments and fields
	FieldSeparator = ","

	// FrameTerminator ends every command frame sent to the device
	FrameTerminator = "\r"
)

// Well-known device error codes shared by every model.
const (
	// ErrCodeInvalidCommand is returned for unknown commands. The bootloader
	// also returns it for BOOTM when it is already running.
	ErrCodeInvalidCommand = 1

	// ErrCodeAccessDenied is returned for commands that need LOGIN first,
	// and for a LOGIN with a wrong password
	ErrCodeAccessDenied = 6
)

const (
	// DefaultTimeout is how long a command may wait for its terminal line
	DefaultTimeout = 5 * time.Second

	// DefaultBaudRate is the fixed line speed of Lightning devices
	DefaultBaudRate = 19200
)
