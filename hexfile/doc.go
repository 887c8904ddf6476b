// Package hexfile reads Intel-HEX-like firmware images for Lightning devices.
//
// # Record Format
//
// Every meaningful line starts with a colon followed by hex digit pairs:
//
//	:[ByteCount(2)][Address(4)][Type(2)][Data(2*ByteCount)][Checksum(2)]
//
// Example record:
//
//	:0214000001 02E7
//	  02   = two data bytes
//	  1400 = load address (big-endian)
//	  00   = data record
//	  0102 = data
//	  E7   = checksum
//
// The checksum makes the 8-bit sum of all decoded bytes zero. Type 00 carries
// data, type 01 ends the image; other types are returned to the caller, which
// usually ignores them.
//
// Lines that are empty, do not start with a colon, or are shorter than
// MinLineLength characters are not records. The Reader returns them with a nil
// Record so that callers can still account for their length.
//
// # Usage
//
// Stream records from a file:
//
//	f, err := hexfile.Open("A740.hex")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer f.Close()
//
//	for {
//	    line, err := f.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    if line.Record != nil && line.Record.Type == hexfile.RecordData {
//	        fmt.Printf("0x%04X: % X\n", line.Record.Address, line.Record.Data)
//	    }
//	}
//
// # Error Handling
//
// Malformed records are reported as *FormatError carrying the line number and
// one of the Reason constants. A stream that ends before the end-of-file
// record yields ErrUnexpectedEOF.
package hexfile
