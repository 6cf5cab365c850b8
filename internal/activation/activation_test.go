package activation

import (
	"net"
	"os"
	"strconv"
	"syscall"
	"testing"
)

func envOf(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestParse(t *testing.T) {
	const pid = 4242

	tests := []struct {
		name    string
		env     map[string]string
		want    Passed
		wantErr bool
	}{
		{
			name: "no environment",
			env:  map[string]string{},
			want: Passed{},
		},
		{
			name: "wrong pid",
			env:  map[string]string{"LISTEN_PID": "99999", "LISTEN_FDS": "1"},
			want: Passed{},
		},
		{
			name:    "invalid pid",
			env:     map[string]string{"LISTEN_PID": "not-a-number", "LISTEN_FDS": "1"},
			wantErr: true,
		},
		{
			name:    "invalid fds",
			env:     map[string]string{"LISTEN_PID": strconv.Itoa(pid), "LISTEN_FDS": "many"},
			wantErr: true,
		},
		{
			name: "zero fds",
			env:  map[string]string{"LISTEN_PID": strconv.Itoa(pid), "LISTEN_FDS": "0"},
			want: Passed{},
		},
		{
			name: "named sockets",
			env: map[string]string{
				"LISTEN_PID":     strconv.Itoa(pid),
				"LISTEN_FDS":     "2",
				"LISTEN_FDNAMES": "other:metrics",
			},
			want: Passed{Count: 2, Names: []string{"other", "metrics"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(envOf(tt.env), pid)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got.Count != tt.want.Count || len(got.Names) != len(tt.want.Names) {
				t.Fatalf("Parse() = %+v, want %+v", got, tt.want)
			}
			for i := range got.Names {
				if got.Names[i] != tt.want.Names[i] {
					t.Errorf("Names[%d] = %s, want %s", i, got.Names[i], tt.want.Names[i])
				}
			}
		})
	}
}

func TestPassed_Index(t *testing.T) {
	tests := []struct {
		name   string
		passed Passed
		want   int
		wantOK bool
	}{
		{name: "nothing passed", passed: Passed{}, wantOK: false},
		{name: "single unnamed", passed: Passed{Count: 1}, want: 0, wantOK: true},
		{name: "several unnamed", passed: Passed{Count: 2}, wantOK: false},
		{name: "named second", passed: Passed{Count: 2, Names: []string{"web", MetricsName}}, want: 1, wantOK: true},
		{name: "named missing", passed: Passed{Count: 1, Names: []string{"web"}}, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.passed.Index(MetricsName)
			if ok != tt.wantOK || (ok && got != tt.want) {
				t.Errorf("Index() = (%d, %v), want (%d, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestListener_NoEnvironment(t *testing.T) {
	t.Setenv("LISTEN_PID", "")
	t.Setenv("LISTEN_FDS", "")

	ln, err := Listener(MetricsName)
	if err != nil {
		t.Fatalf("Listener() unexpected error: %v", err)
	}
	if ln != nil {
		t.Errorf("expected nil listener, got %v", ln)
	}
}

func TestListener_WithActualSocket(t *testing.T) {
	// Create a real TCP listener and pass a duplicate of its fd
	orig, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create test listener: %v", err)
	}
	defer func() {
		_ = orig.Close()
	}()

	file, err := orig.(*net.TCPListener).File()
	if err != nil {
		t.Fatalf("failed to get listener file: %v", err)
	}
	fd, err := syscall.Dup(int(file.Fd()))
	_ = file.Close()
	if err != nil {
		t.Fatalf("dup: %v", err)
	}

	origFirst := firstFD
	firstFD = fd
	t.Cleanup(func() { firstFD = origFirst })

	t.Setenv("LISTEN_PID", strconv.Itoa(os.Getpid()))
	t.Setenv("LISTEN_FDS", "1")
	t.Setenv("LISTEN_FDNAMES", MetricsName)

	ln, err := Listener(MetricsName)
	if err != nil {
		t.Fatalf("Listener() unexpected error: %v", err)
	}
	if ln == nil {
		t.Fatal("expected a listener")
	}
	defer func() {
		_ = ln.Close()
	}()

	if ln.Addr().String() != orig.Addr().String() {
		t.Errorf("listener addr = %s, want %s", ln.Addr(), orig.Addr())
	}
	if _, ok := os.LookupEnv("LISTEN_FDS"); ok {
		t.Error("expected LISTEN_FDS to be cleared")
	}
}
