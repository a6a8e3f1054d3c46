package contract

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"testing"

	"github.com/spf13/viper"

	"github.com/gezibash/arc-contract/internal/httpapi/apitest"
)

// newTestViper starts an in-process contract service and returns a viper
// pointing the CLI at it with JSON output.
func newTestViper(t *testing.T) *viper.Viper {
	t.Helper()
	srv := apitest.NewServer(t)

	v := viper.New()
	v.Set("server", srv.URL)
	v.Set("data_dir", t.TempDir())
	v.Set("output", "json")
	return v
}

// execute runs the contract command tree with args and returns stdout.
func execute(t *testing.T, v *viper.Viper, args ...string) (string, error) {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stdout = w

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		done <- buf.String()
	}()

	cmd := Entrypoint(v)
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	runErr := cmd.Execute()

	_ = w.Close()
	os.Stdout = old
	return <-done, runErr
}

// data decodes the "data" member of a JSON envelope.
func data[T any](t *testing.T, out string) T {
	t.Helper()
	var env struct {
		Data T `json:"data"`
	}
	if err := json.Unmarshal([]byte(out), &env); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	return env.Data
}
