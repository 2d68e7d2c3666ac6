// Package serial acquires a continuous byte stream from a serial port and
// reassembles it into delimiter-terminated tokens for a consumer that polls
// rather than blocks.
//
// The package is built from three pieces:
//   - ByteChannel: an unbounded, goroutine-safe FIFO of raw bytes
//   - Source: owns the port and runs a receive goroutine that keeps exactly
//     one single-byte read outstanding, pushing every byte into a ByteChannel
//   - Tokenizer: drains a ByteChannel without blocking and emits a token
//     whenever a delimiter byte is seen
//
// On Linux the port is driven through raw termios syscalls with a self-pipe
// so Close unblocks a pending read. Other platforms use go.bug.st/serial.
//
// Example usage:
//
//	ch := serial.NewByteChannel()
//	src, err := serial.NewSource(ch, serial.DefaultConfig("/dev/ttyUSB0"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer src.Close()
//
//	tok := serial.NewTokenizer(ch)
//	tok.SetDelimiterString(";")
//	if err := tok.SetMaxTokenSize(32); err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := src.SendString("Hello World;"); err != nil {
//	    log.Println("Write failed:", err)
//	}
//
//	var st serial.State
//	var buf []byte
//	for {
//	    var res serial.Result
//	    buf, res = tok.Poll(&st, buf)
//	    switch res {
//	    case serial.TokenReturned:
//	        fmt.Printf("token: %q\n", buf)
//	    case serial.TokenLengthError:
//	        log.Println("token too long, buffer reset")
//	    }
//	    // ... other periodic work
//	}
//
// Receive failures are never silent: when the receive loop gives up, the
// channel returned by Source.Failed is closed and Source.Err reports why.
package serial
