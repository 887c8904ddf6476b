package bootloader

// Step descriptions reported with progress.
const (
	StepPrepare         = "Preparing firmware image"
	StepEnterBootloader = "Entering bootloader mode"
	StepWaitBootloader  = "Waiting for the bootloader"
	StepErase           = "Erasing flash memory"
	StepUpload          = "Uploading firmware data"
	StepValidate        = "Validating checksum"
	StepFinalize        = "Finalizing flash memory"
	StepReboot          = "Rebooting device"
	StepDone            = "Firmware upgrade succeeded, please reopen port"
)

// Progress scale: the image size in bytes plus fixed room before the data
// (prepare, BOOTM, the settling delay, EAPP) and after it (two checksums,
// the finalizer and RUNAPP).
const (
	progressFileShift = 10
	progressEnd       = 5
)

// Progress contains information about the update progress.
// Passed to ProgressCallback after every step and every line of the image.
type Progress struct {
	// Value is the current position, between 0 and Max
	Value int `json:"value"`

	// Max is the end of the scale. It may grow during the upload when the
	// image uses single-character line endings.
	Max int `json:"max"`

	// Step describes the current operation, one of the Step constants
	Step string `json:"current_step"`
}

// Done reports whether this is the final progress report of a successful
// update.
func (p Progress) Done() bool {
	return p.Step == StepDone && p.Value == p.Max
}

// ProgressCallback is called during the update to report progress.
// Implementations should return quickly to avoid blocking the update.
type ProgressCallback func(Progress)
