package protocol

// Checksum constants for firmware records and flash accounting.
const (
	// ChecksumMask is the 16-bit mask applied to the flash checksum
	ChecksumMask = 0xFFFF

	// ErasedByte is the value of every flash byte that was not programmed
	ErasedByte = 0xFF
)

// RecordSum returns the 8-bit sum of all bytes. A firmware record is valid
// when the sum of all its decoded bytes, checksum byte included, is zero.
func RecordSum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// FlashSum accumulates the 16-bit application checksum the bootloader
// reports for CHKAPP: the sum of every programmed byte, with each unprogrammed
// byte of the usable flash area counted as ErasedByte.
type FlashSum struct {
	sum   uint16
	count int
}

// Add accounts for bytes that were actually transmitted to the device.
func (f *FlashSum) Add(data []byte) {
	for _, b := range data {
		f.sum += uint16(b)
	}
	f.count += len(data)
}

// Sum returns the running sum of transmitted bytes, masked to 16 bits.
func (f *FlashSum) Sum() uint16 {
	return f.sum
}

// Count returns the number of transmitted bytes.
func (f *FlashSum) Count() int {
	return f.count
}

// Final returns the expected device checksum for a flash area of usable
// bytes: the running sum plus ErasedByte for every byte between Count and
// usable, masked to 16 bits. Nothing is added once Count reaches usable.
func (f *FlashSum) Final(usable int) uint16 {
	total := uint64(f.sum)
	if f.count < usable {
		total += uint64(ErasedByte) * uint64(usable-f.count)
	}
	return uint16(total & ChecksumMask)
}
