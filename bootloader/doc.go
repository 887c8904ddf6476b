// Package bootloader flashes firmware images onto Lightning devices.
//
// # Overview
//
// The Updater drives a device through a fixed sequence:
//   - BOOTM enters the bootloader (E,1 means it is already running)
//   - a settling delay lets the bootloader come up
//   - EAPP erases the application flash
//   - every data record of the image is sent with PROG
//   - CHKAPP is compared with the checksum of what was sent
//   - a finalizer word (C0DE) is written at the top of flash
//   - CHKAPP is compared again
//   - RUNAPP starts the new application
//
// The device is anything that can run a command, such as a session.Session.
//
// # Basic Usage
//
//	u := bootloader.NewUpdater(sess)
//	if err := u.UpdateFile(ctx, "A740_v2.hex"); err != nil {
//	    if bootloader.IsRetryable(err) {
//	        // the whole update can be started again
//	    }
//	    log.Fatal(err)
//	}
//
// # Progress Tracking
//
// Progress is reported as a value on a scale whose maximum is derived from the
// image size, plus a description of the current step:
//
//	u := bootloader.NewUpdater(sess,
//	    bootloader.WithProgressCallback(func(p bootloader.Progress) {
//	        fmt.Printf("%d/%d %s\n", p.Value, p.Max, p.Step)
//	    }),
//	)
//
// # Checksum
//
// The bootloader reports a 16-bit sum over the whole application area. The
// Updater predicts it from the bytes it sent, counting every byte it did not
// send as 0xFF (erased flash).
//
// # Error Handling
//
// Failures are returned as *StepError naming the step. Chunk transmission and
// checksum validation failures are Retryable: the erase and program commands
// can safely be repeated, so the caller may restart the update from scratch.
// The device cannot resume a partial update.
package bootloader
