// Package activation picks up sockets handed over by systemd socket
// activation so the metrics endpoint can be started on demand.
package activation

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// MetricsName is the FileDescriptorName a .socket unit should set for the
// metrics listener
const MetricsName = "metrics"

// Systemd passes file descriptors starting at fd 3
// (0=stdin, 1=stdout, 2=stderr)
var firstFD = 3

// Passed describes the sockets systemd handed to this process
type Passed struct {
	Count int
	Names []string
}

// Index returns the position of the socket called name. When systemd did
// not name its sockets, a single passed socket is taken to be the one
// asked for.
func (p Passed) Index(name string) (int, bool) {
	for i, n := range p.Names {
		if n == name && i < p.Count {
			return i, true
		}
	}
	if len(p.Names) == 0 && p.Count == 1 {
		return 0, true
	}
	return 0, false
}

// Parse interprets the LISTEN_* environment for the process pid. It returns
// a zero Passed when activation is absent or meant for another process.
func Parse(getenv func(string) string, pid int) (Passed, error) {
	// Check if LISTEN_PID is set and matches our process ID
	pidStr := getenv("LISTEN_PID")
	if pidStr == "" {
		return Passed{}, nil
	}

	listenPID, err := strconv.Atoi(pidStr)
	if err != nil {
		return Passed{}, fmt.Errorf("invalid LISTEN_PID %q: %w", pidStr, err)
	}
	if listenPID != pid {
		return Passed{}, nil
	}

	fdsStr := getenv("LISTEN_FDS")
	if fdsStr == "" {
		return Passed{}, nil
	}
	count, err := strconv.Atoi(fdsStr)
	if err != nil {
		return Passed{}, fmt.Errorf("invalid LISTEN_FDS %q: %w", fdsStr, err)
	}
	if count < 1 {
		return Passed{}, nil
	}

	var names []string
	if raw := getenv("LISTEN_FDNAMES"); raw != "" {
		names = strings.Split(raw, ":")
	}

	return Passed{Count: count, Names: names}, nil
}

// Listener returns the socket-activated listener called name, or nil when
// systemd passed no such socket. The LISTEN_* variables are cleared once a
// listener has been taken so child processes don't inherit them.
func Listener(name string) (net.Listener, error) {
	passed, err := Parse(os.Getenv, os.Getpid())
	if err != nil {
		return nil, err
	}

	idx, ok := passed.Index(name)
	if !ok {
		return nil, nil
	}

	fd := firstFD + idx
	file := os.NewFile(uintptr(fd), "systemd-socket-"+name)
	if file == nil {
		return nil, fmt.Errorf("failed to create file for fd %d", fd)
	}

	listener, err := net.FileListener(file)
	// Close the file descriptor (listener holds its own copy)
	_ = file.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to create listener from fd %d: %w", fd, err)
	}

	_ = os.Unsetenv("LISTEN_PID")
	_ = os.Unsetenv("LISTEN_FDS")
	_ = os.Unsetenv("LISTEN_FDNAMES")

	return listener, nil
}
