package cli_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/absmach/profiler/cli"
	"github.com/absmach/profiler/pkg/sdk"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
)

func setup(t *testing.T, h http.HandlerFunc) {
	t.Helper()

	color.NoColor = true
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	cli.SetSDK(sdk.NewSDK(sdk.Config{ProfilerURL: ts.URL}))
}

func run(cmd *cobra.Command, args ...string) (string, string) {
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	_ = cmd.Execute()

	return out.String(), errOut.String()
}

func TestHealthCmd(t *testing.T) {
	setup(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"health":{"passed":4,"total":4}}`))
	})

	cases := []struct {
		desc string
		args []string
		out  string
	}{
		{desc: "full report", args: nil, out: `"passed"`},
		{desc: "summary", args: []string{"--summary"}, out: "4/4 checks passed"},
		{desc: "extra argument", args: []string{"x"}, out: "usage: health"},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			out, _ := run(cli.NewHealthCmd(), tc.args...)
			assert.Contains(t, out, tc.out)
		})
	}
}

func TestSnapshotCmd(t *testing.T) {
	setup(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/snapshots/2" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"index out of range"}`))

			return
		}
		_, _ = w.Write([]byte(`{"timestamp":42}`))
	})

	out, _ := run(cli.NewSnapshotCmd(), "2")
	assert.Contains(t, out, "42")

	_, errOut := run(cli.NewSnapshotCmd(), "latest")
	assert.Contains(t, errOut, "non-negative")

	_, errOut = run(cli.NewSnapshotCmd(), "5")
	assert.Contains(t, errOut, "index out of range")
}

func TestDumpCmd(t *testing.T) {
	setup(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"urgent":true}`))
	})

	out, _ := run(cli.NewDumpCmd(), "--quiet")
	assert.Contains(t, out, "ok")
}
