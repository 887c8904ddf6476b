// Package link owns the serial connection to a Lightning device.
//
// A Port is the raw byte stream; two drivers are provided, go.bug.st/serial
// (the default) and github.com/tarm/serial. A Link wraps a Port with a
// background reader that splits the input into CR/LF terminated lines and
// delivers them on a channel, and reports when the port goes away on its own.
//
// Usage:
//
//	port, err := link.Open(link.DefaultConfig("/dev/ttyACM0"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	l := link.New("/dev/ttyACM0", port)
//	defer l.Close()
//
//	_ = l.Write([]byte("VER\r"))
//	for line := range l.Lines() {
//	    fmt.Println(line)
//	}
package link
