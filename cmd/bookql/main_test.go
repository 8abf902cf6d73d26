package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
)

// setEnv configures the server to listen on the loopback interface at the port
func setEnv(t *testing.T, port int) {
	t.Helper()
	chdir(t, t.TempDir()) // no .env file
	t.Setenv("HTTP_HOST", "127.0.0.1")
	t.Setenv("HTTP_PORT", strconv.Itoa(port))
	t.Setenv("GRAPHQL_PATH", "/graphql")
	t.Setenv("SHUTDOWN_TIMEOUT", "1s")
	t.Setenv("GRAPHQL_INTROSPECTION", "true")
}

func TestRun(t *testing.T) {
	// Find a free port
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	_ = l.Close()
	setEnv(t, port)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	const expected = `{"data":{"books":[{"title":"The Awakening","author":"Kate Chopin"},{"title":"City of Glass","author":"Paul Auster"}]}}`
	url := "http://127.0.0.1:" + strconv.Itoa(port) + "/graphql"
	var body string
	for i := 0; i < 50; i++ {
		resp, err := http.Post(url, "application/json", strings.NewReader(`{"query":"{ books { title author } }"}`))
		if err != nil {
			time.Sleep(20 * time.Millisecond) // not listening yet
			continue
		}
		buf, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		body = strings.TrimSpace(string(buf))
		break
	}
	if body != expected {
		t.Errorf("X\texpected %s got %s", expected, body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("X\texpected clean shutdown got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server did not stop")
	}
}

func TestRunPortInUse(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error %v", err)
	}
	defer l.Close()
	setEnv(t, l.Addr().(*net.TCPAddr).Port)

	done := make(chan error, 1)
	go func() { done <- run(context.Background()) }()
	select {
	case err := <-done:
		Assertf(t, err != nil && strings.HasPrefix(err.Error(), "starting the server: "), "expected a startup error got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatalf("expected run to fail immediately")
	}
}

// TestRunBadPath checks that a path the router can't use is a config error (not a panic)
func TestRunBadPath(t *testing.T) {
	setEnv(t, 0)
	for _, path := range []string{"/a{b", "/{id}", "/graphql#x"} {
		t.Setenv("GRAPHQL_PATH", path)
		err := run(context.Background())
		Assertf(t, err != nil && strings.Contains(err.Error(), "GRAPHQL_PATH"), "%12s: expected a GRAPHQL_PATH error got %v", path, err)
	}
}

func Assertf(t *testing.T, succeeded bool, format string, args ...interface{}) {
	const (
		succeed = "\u2713" // tick
		failed  = "X"      //"\u2717" // cross
	)

	t.Helper()
	if !succeeded {
		t.Errorf("%s\t"+format, append([]interface{}{failed}, args...)...)
	} else {
		t.Logf("%s\t"+format, append([]interface{}{succeed}, args...)...)
	}
}

// chdir changes the working directory to dir and restores it when the test ends
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getting working directory: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("changing directory: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
