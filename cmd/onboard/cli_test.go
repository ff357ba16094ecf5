package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyperengineering/onboard/internal/api"
	"github.com/hyperengineering/onboard/internal/config"
	"github.com/hyperengineering/onboard/internal/store"
	"github.com/hyperengineering/onboard/internal/types"
)

const testAPIKey = "cli-test-key"

// newBackend serves the API over an in-memory store and points the CLI's
// configuration at it.
func newBackend(t *testing.T) *store.SQLiteStore {
	t.Helper()
	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	srv := httptest.NewServer(api.NewRouter(api.NewHandler(s, testAPIKey, "test")))
	t.Cleanup(func() {
		srv.Close()
		s.Close()
	})

	t.Setenv("ONBOARD_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("ONBOARD_URL", srv.URL)
	t.Setenv("ONBOARD_API_KEY", testAPIKey)
	t.Setenv("ONBOARD_LOG_LEVEL", "error")
	t.Setenv("ONBOARD_SYNC_INTERVAL", "1ms")
	t.Setenv("ONBOARD_FILES_LOCAL_DIR", t.TempDir())
	return s
}

// syncBuffer guards stderr, which the in-process server logs to as well.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// executeCmd runs the root command with captured output.
func executeCmd(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	return executeCmdContext(t, context.Background(), args...)
}

// executeCmdContext is executeCmd with a caller-controlled context.
func executeCmdContext(t *testing.T, ctx context.Context, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	// Cobra parses into package-level variables; reset them so values from
	// previous tests do not leak.
	jsonOutput = false
	customerName = ""
	customerEmail = ""
	submitFormPath = ""
	submitDraftOnly = false
	submitReopenID = ""
	submitPasses = 3
	submitWatch = false

	outBuf := new(bytes.Buffer)
	errBuf := new(syncBuffer)

	rootCmd.SetOut(outBuf)
	rootCmd.SetErr(errBuf)
	rootCmd.SetArgs(args)

	// Cobra keeps the last context on the command; always set one.
	err = rootCmd.ExecuteContext(ctx)

	rootCmd.SetOut(nil)
	rootCmd.SetErr(nil)
	rootCmd.SetArgs(nil)

	return outBuf.String(), errBuf.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func createCustomer(t *testing.T, name string) string {
	t.Helper()
	out, _, err := executeCmd(t, "customer", "create", "--name", name, "--json")
	if err != nil {
		t.Fatalf("customer create: %v", err)
	}
	var c types.Customer
	if err := json.Unmarshal([]byte(out), &c); err != nil {
		t.Fatalf("decode customer: %v\n%s", err, out)
	}
	return c.ID
}

func formFor(customerID string) string {
	return `customer_id: ` + customerID + `
onboarding_type: co-packing
products:
  - name: Dark Bar
packaging:
  - type: carton
    case_pack_qty: 12
ingredients:
  - name: Cocoa
    vendor_name: Acme
attachments:
  - document_type: spec
    path: spec.pdf
`
}

func TestCustomerCreateAndList(t *testing.T) {
	newBackend(t)

	out, _, err := executeCmd(t, "customer", "list")
	if err != nil {
		t.Fatalf("customer list: %v", err)
	}
	if !strings.Contains(out, "No customers found.") {
		t.Errorf("empty list output = %q", out)
	}

	out, _, err = executeCmd(t, "customer", "create", "--name", "Acme Foods", "--email", "ops@acme.test")
	if err != nil {
		t.Fatalf("customer create: %v", err)
	}
	if !strings.Contains(out, `Created customer "Acme Foods"`) {
		t.Errorf("create output = %q", out)
	}

	out, _, err = executeCmd(t, "customer", "list")
	if err != nil {
		t.Fatalf("customer list: %v", err)
	}
	if !strings.Contains(out, "Acme Foods") || !strings.Contains(out, "ops@acme.test") {
		t.Errorf("list output = %q", out)
	}

	out, _, err = executeCmd(t, "customer", "list", "--json")
	if err != nil {
		t.Fatalf("customer list --json: %v", err)
	}
	var listed struct {
		Customers []types.Customer `json:"customers"`
		Total     int              `json:"total"`
	}
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if listed.Total != 1 {
		t.Errorf("total = %d, want 1", listed.Total)
	}
}

func TestCustomerCreate_ValidationError(t *testing.T) {
	newBackend(t)

	_, _, err := executeCmd(t, "customer", "create", "--name", "x", "--email", "not-an-email")
	if err == nil || !strings.Contains(err.Error(), "422") {
		t.Errorf("error = %v, want validation failure", err)
	}
}

func TestSubmit_FullForm(t *testing.T) {
	s := newBackend(t)
	customerID := createCustomer(t, "Acme")

	dir := t.TempDir()
	writeFile(t, dir, "spec.pdf", "%PDF")
	form := writeFile(t, dir, "form.yaml", formFor(customerID))

	out, _, err := executeCmd(t, "submit", "-f", form, "--json")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	var res submitResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if res.Status != types.StatusSubmitted || res.Summary.Pending != 0 || res.Summary.Confirmed != 4 {
		t.Errorf("result = %+v", res)
	}

	o, err := s.GetOnboarding(context.Background(), res.OnboardingID)
	if err != nil {
		t.Fatalf("GetOnboarding: %v", err)
	}
	if o.Status != types.StatusSubmitted {
		t.Errorf("stored status = %q", o.Status)
	}
	docs, _ := s.ListChildren(context.Background(), types.CategoryDocuments, res.OnboardingID)
	if len(docs) != 1 || !strings.HasPrefix(docs[0].Fields["file_url"].(string), "file://") {
		t.Errorf("documents = %+v", docs)
	}
}

func TestSubmit_DraftThenReopenAndStatus(t *testing.T) {
	newBackend(t)
	customerID := createCustomer(t, "Acme")

	dir := t.TempDir()
	writeFile(t, dir, "spec.pdf", "%PDF")
	form := writeFile(t, dir, "form.yaml", formFor(customerID))

	out, _, err := executeCmd(t, "submit", "-f", form, "--draft-only")
	if err != nil {
		t.Fatalf("submit --draft-only: %v", err)
	}
	if !strings.HasPrefix(out, "Saved draft onboarding ") {
		t.Fatalf("output = %q", out)
	}
	id := strings.TrimSpace(strings.TrimPrefix(strings.SplitN(out, "\n", 2)[0], "Saved draft onboarding "))

	extra := writeFile(t, dir, "extra.yaml", `customer_id: `+customerID+`
onboarding_type: co-packing
ingredients:
  - name: Sugar
`)
	if _, _, err := executeCmd(t, "submit", "-f", extra, "--onboarding", id); err != nil {
		t.Fatalf("submit --onboarding: %v", err)
	}

	out, _, err = executeCmd(t, "status", id)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "Status:     submitted") {
		t.Errorf("status output = %q", out)
	}
	for _, want := range []string{"products     1", "ingredients  2", "documents    1"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestSubmit_InvalidRowsSendNothing(t *testing.T) {
	s := newBackend(t)
	customerID := createCustomer(t, "Acme")

	form := writeFile(t, t.TempDir(), "form.yaml", `customer_id: `+customerID+`
onboarding_type: co-packing
products:
  - name: ""
`)

	_, _, err := executeCmd(t, "submit", "-f", form)
	if err == nil || !strings.Contains(err.Error(), "products[0]") {
		t.Fatalf("error = %v, want invalid row report", err)
	}

	stats, err := s.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.Onboardings != 0 {
		t.Errorf("onboardings = %d, want 0", stats.Onboardings)
	}
}

func TestStatus_UnknownOnboarding(t *testing.T) {
	newBackend(t)

	if _, _, err := executeCmd(t, "status", "01ARZ3NDEKTSV4RRFFQ69G5FAV"); err == nil {
		t.Error("expected error for unknown onboarding")
	}
}

func TestLoadClient_RequiresAPIKey(t *testing.T) {
	t.Setenv("ONBOARD_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("ONBOARD_API_KEY", "")
	t.Setenv("ONBOARD_CLIENT_API_KEY", "")
	t.Setenv("ONBOARD_DEV_MODE", "")

	_, _, err := executeCmd(t, "customer", "list")
	if err == nil || !strings.Contains(err.Error(), "ONBOARD_API_KEY") {
		t.Errorf("error = %v, want missing key", err)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLogger_Format(t *testing.T) {
	var buf bytes.Buffer

	newLogger(config.LogConfig{Level: "info", Format: "json"}, &buf).Info("hello", "k", "v")
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("json format not JSON: %v", err)
	}
	if entry["msg"] != "hello" {
		t.Errorf("msg = %v", entry["msg"])
	}

	buf.Reset()
	newLogger(config.LogConfig{Level: "warn", Format: "text"}, &buf).Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info logged at warn level: %q", buf.String())
	}
	newLogger(config.LogConfig{Level: "warn", Format: "text"}, &buf).Warn("kept")
	if !strings.Contains(buf.String(), "msg=kept") {
		t.Errorf("text output = %q", buf.String())
	}
}

// logCapture captures slog output for testing
type logCapture struct {
	mu      sync.Mutex
	entries []map[string]any
}

func (c *logCapture) Write(p []byte) (n int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var entry map[string]any
	if err := json.Unmarshal(p, &entry); err == nil {
		c.entries = append(c.entries, entry)
	}
	return len(p), nil
}

func (c *logCapture) hasMessage(msg string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e["msg"] == msg {
			return true
		}
	}
	return false
}

func TestSubmit_LogsToStderr(t *testing.T) {
	newBackend(t)
	t.Setenv("ONBOARD_LOG_LEVEL", "info")
	customerID := createCustomer(t, "Acme")

	form := writeFile(t, t.TempDir(), "form.yaml", `customer_id: `+customerID+`
onboarding_type: co-packing
`)
	_, stderr, err := executeCmd(t, "submit", "-f", form, "--draft-only")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	capture := &logCapture{}
	for _, line := range strings.Split(strings.TrimSpace(stderr), "\n") {
		capture.Write([]byte(line))
	}
	if !capture.hasMessage("onboarding created") {
		t.Errorf("stderr missing creation log:\n%s", stderr)
	}
}

func TestSubmit_WatchRunsUntilInterrupted(t *testing.T) {
	newBackend(t)
	customerID := createCustomer(t, "Acme")

	dir := t.TempDir()
	writeFile(t, dir, "spec.pdf", "%PDF")
	form := writeFile(t, dir, "form.yaml", formFor(customerID))

	const watchFor = 500 * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), watchFor)
	defer cancel()

	start := time.Now()
	out, _, err := executeCmdContext(t, ctx, "submit", "-f", form, "--watch", "--json")
	if err != nil {
		t.Fatalf("submit --watch: %v", err)
	}
	if time.Since(start) < watchFor {
		t.Error("--watch returned before it was interrupted")
	}

	var res submitResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if res.Status != types.StatusSubmitted || res.Summary.Pending != 0 {
		t.Errorf("result = %+v", res)
	}
}
