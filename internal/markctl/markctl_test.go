package markctl

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmlabs-hris/attendance-ledger/internal/offline"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"enqueue", "list", "drop", "replay"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}

	assert.NotNil(t, cmd.PersistentFlags().Lookup("db"))
	assert.Equal(t, "text", cmd.PersistentFlags().Lookup("format").DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, err := run(t, "list", "--db", filepath.Join(t.TempDir(), "q.db"), "--format", "yaml")
	assert.ErrorContains(t, err, "invalid format")
}

func TestEnqueueListDrop(t *testing.T) {
	db := filepath.Join(t.TempDir(), "q.db")

	out, err := run(t, "enqueue", "--db", db, "--format", "json",
		"--event", "in", "--site", "site-1", "--device", "phone", "--lat=-33.4", "--lng=-70.6", "--note", "hello")
	require.NoError(t, err)

	var item offline.PendingMark
	require.NoError(t, json.Unmarshal([]byte(out), &item))
	assert.Equal(t, "IN", string(item.Request.EventType))
	require.NotNil(t, item.Request.Geo)
	assert.Equal(t, -33.4, item.Request.Geo.Latitude)

	out, err = run(t, "list", "--db", db, "--format", "json")
	require.NoError(t, err)
	var items []offline.PendingMark
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 1)
	assert.Equal(t, item.LocalID, items[0].LocalID)

	out, err = run(t, "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, item.LocalID)

	_, err = run(t, "drop", "--db", db, item.LocalID)
	require.NoError(t, err)

	out, err = run(t, "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "queue is empty")
}

func TestEnqueue_Locate(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	db := filepath.Join(t.TempDir(), "q.db")

	out, err := run(t, "enqueue", "--db", db, "--format", "json",
		"--event", "IN", "--site", "site-1", "--device", "phone", "--locate", "echo -33.45,-70.66,8")
	require.NoError(t, err)
	var item offline.PendingMark
	require.NoError(t, json.Unmarshal([]byte(out), &item))
	require.NotNil(t, item.Request.Geo)
	assert.Equal(t, -70.66, item.Request.Geo.Longitude)
	require.NotNil(t, item.Request.Geo.Accuracy)
	assert.Equal(t, 8.0, *item.Request.Geo.Accuracy)

	out, err = run(t, "enqueue", "--db", db,
		"--event", "IN", "--site", "site-1", "--device", "phone", "--locate", "exit 1")
	require.NoError(t, err)
	assert.Contains(t, out, "no location fix")

	_, err = run(t, "enqueue", "--db", db,
		"--event", "IN", "--site", "site-1", "--locate", "sleep 5", "--locate-timeout", "50ms")
	require.NoError(t, err)

	_, err = run(t, "enqueue", "--db", db, "--event", "IN", "--site", "site-1",
		"--lat=-33.4", "--lng=-70.6", "--locate", "echo 1,1")
	assert.Error(t, err)
}

func TestParseFix(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
		acc     bool
	}{
		{"-33.4489,-70.6693", false, false},
		{"-33.4489, -70.6693, 12", false, true},
		{"-33.4489", true, false},
		{"a,b", true, false},
		{"1,2,3,4", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := parseFix(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, -33.4489, p.Latitude)
			assert.Equal(t, tt.acc, p.Accuracy != nil)
		})
	}
}

func TestEnqueue_Invalid(t *testing.T) {
	db := filepath.Join(t.TempDir(), "q.db")

	_, err := run(t, "enqueue", "--db", db, "--event", "LUNCH", "--site", "site-1", "--device", "phone")
	assert.Error(t, err)

	_, err = run(t, "enqueue", "--db", db, "--event", "IN", "--site", "site-1", "--at", "yesterday")
	assert.ErrorContains(t, err, "--at")
}

func TestReplay(t *testing.T) {
	db := filepath.Join(t.TempDir(), "q.db")
	_, err := run(t, "enqueue", "--db", db, "--event", "IN", "--site", "site-1", "--device", "phone")
	require.NoError(t, err)

	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":"m1","receiptReference":"RCPT-ABC"}}`))
	}))
	defer healthy.Close()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()

	_, err = run(t, "replay", "--db", db, "--server", down.URL)
	require.Error(t, err)
	assert.Equal(t, ExitHalted, ExitCode(err))

	out, err := run(t, "replay", "--db", db, "--server", healthy.URL, "--token", "tok")
	require.NoError(t, err)
	assert.Contains(t, out, "RCPT-ABC")

	out, err = run(t, "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "queue is empty")
}

func TestReplay_RequiresServer(t *testing.T) {
	t.Setenv("MARKCTL_SERVER", "")
	_, err := run(t, "replay", "--db", filepath.Join(t.TempDir(), "q.db"))
	assert.Equal(t, ExitCommandError, ExitCode(err))
}
