package api_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/micro-nova/upm6720d/internal/adc"
	"github.com/micro-nova/upm6720d/internal/api"
	"github.com/micro-nova/upm6720d/internal/auth"
	"github.com/micro-nova/upm6720d/internal/charger"
	"github.com/micro-nova/upm6720d/internal/config"
	"github.com/micro-nova/upm6720d/internal/events"
	"github.com/micro-nova/upm6720d/internal/hardware"
	"github.com/micro-nova/upm6720d/internal/identity"
	"github.com/micro-nova/upm6720d/internal/models"
)

type testEnv struct {
	srv *httptest.Server
	hw  *hardware.Mock
	dev *charger.Device
}

// newTestServer spins up a full router over a mock charge pump. With a
// non-empty key the control routes require it.
func newTestServer(t *testing.T, key string) *testEnv {
	t.Helper()

	hw := hardware.NewMock()
	bus := events.NewBus()
	dev, err := charger.New(context.Background(), hw, config.NewMemSource(config.Default()), nil, bus)
	if err != nil {
		t.Fatalf("charger.New: %v", err)
	}

	dir := t.TempDir()
	if key != "" {
		body := "keys:\n  - name: test\n    key: " + key + "\n"
		if err := os.WriteFile(filepath.Join(dir, auth.KeysFileName), []byte(body), 0600); err != nil {
			t.Fatal(err)
		}
	}
	authSvc, err := auth.NewService(dir)
	if err != nil {
		t.Fatalf("auth.NewService: %v", err)
	}

	srv := httptest.NewServer(api.NewRouter(dev, authSvc, bus))
	t.Cleanup(func() {
		srv.Close()
		authSvc.Close()
	})
	return &testEnv{srv: srv, hw: hw, dev: dev}
}

// do is a convenience helper for making requests to the test server.
func do(t *testing.T, env *testEnv, method, path, body string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, env.srv.URL+path, bodyReader)
	if err != nil {
		t.Fatalf("NewRequest %s %s: %v", method, path, err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := env.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("Do %s %s: %v", method, path, err)
	}
	return resp
}

// decodeJSON reads and decodes a JSON response body into v.
func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want %d (body %s)", resp.StatusCode, want, body)
	}
}

func setADC(hw *hardware.Mock, ch adc.Channel, v int32) {
	hi, lo := adc.Raw(ch, v)
	reg := adc.Spec(ch).Reg
	hw.SetReg(reg, hi)
	hw.SetReg(reg+1, lo)
}

func TestGetStatus(t *testing.T) {
	env := newTestServer(t, "")
	env.hw.SetReg(hardware.RegStat3, hardware.VbusPresentStat)
	env.dev.OnInterrupt(context.Background())

	resp := do(t, env, http.MethodGet, "/api/status", "")
	expectStatus(t, resp, http.StatusOK)
	var st models.Status
	decodeJSON(t, resp, &st)

	if st.Name != "charger_standalone" || st.Mode != "standalone" {
		t.Errorf("identity = %q/%q", st.Name, st.Mode)
	}
	if !st.Flags.VbusPresent {
		t.Error("vbus_present not reported")
	}
}

func TestGetMode(t *testing.T) {
	env := newTestServer(t, "")
	resp := do(t, env, http.MethodGet, "/api/mode", "")
	expectStatus(t, resp, http.StatusOK)
	var m models.Mode
	decodeJSON(t, resp, &m)
	if m.Mode != "standalone" || m.Supply != "charger_standalone" {
		t.Errorf("mode = %+v", m)
	}
}

func TestGetADCChannel(t *testing.T) {
	env := newTestServer(t, "")
	setADC(env.hw, adc.Vbat, 3850)

	resp := do(t, env, http.MethodGet, "/api/adc/VBAT", "")
	expectStatus(t, resp, http.StatusOK)
	var rd models.ADCReading
	decodeJSON(t, resp, &rd)
	if rd.Channel != "vbat" || rd.Value != 3850 || rd.Unit != "mV" || rd.Display == "" {
		t.Errorf("reading = %+v", rd)
	}
}

func TestGetADCChannel_Unknown(t *testing.T) {
	env := newTestServer(t, "")
	resp := do(t, env, http.MethodGet, "/api/adc/vsys", "")
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestGetADC_Partial(t *testing.T) {
	env := newTestServer(t, "")
	setADC(env.hw, adc.Ibus, 1200)
	env.hw.FailReadAt(adc.Spec(adc.Vbat).Reg, true)

	resp := do(t, env, http.MethodGet, "/api/adc", "")
	expectStatus(t, resp, http.StatusOK)
	var rds []models.ADCReading
	decodeJSON(t, resp, &rds)
	if len(rds) != int(adc.NumChannels)-1 {
		t.Fatalf("got %d readings, want %d", len(rds), adc.NumChannels-1)
	}
	if rds[0].Channel != "ibus" || rds[0].Value != 1200 {
		t.Errorf("first reading = %+v", rds[0])
	}
	for _, rd := range rds {
		if rd.Channel == "vbat" {
			t.Error("failed channel reported")
		}
	}
}

func TestGetADC_BusDown(t *testing.T) {
	env := newTestServer(t, "")
	env.hw.SetFailRead(true)

	resp := do(t, env, http.MethodGet, "/api/adc", "")
	expectStatus(t, resp, http.StatusBadGateway)
	var appErr models.AppError
	decodeJSON(t, resp, &appErr)
	if appErr.Code != "BUS_ERROR" {
		t.Errorf("code = %q", appErr.Code)
	}
}

func TestSetPresent(t *testing.T) {
	env := newTestServer(t, "")
	env.hw.ResetOps()

	resp := do(t, env, http.MethodPut, "/api/present", `{"present": true}`)
	expectStatus(t, resp, http.StatusOK)
	var st models.Status
	decodeJSON(t, resp, &st)
	if !st.Present {
		t.Error("present not reported after PUT")
	}
	if len(env.hw.Writes()) == 0 {
		t.Error("configuration not reapplied")
	}

	resp = do(t, env, http.MethodGet, "/api/present", "")
	expectStatus(t, resp, http.StatusOK)
	var p models.PresentUpdate
	decodeJSON(t, resp, &p)
	if p.Present == nil || !*p.Present {
		t.Errorf("GET present = %v", p.Present)
	}
}

func TestSetPresent_BadBodies(t *testing.T) {
	env := newTestServer(t, "")
	for _, body := range []string{`{not json`, `{}`} {
		resp := do(t, env, http.MethodPut, "/api/present", body)
		expectStatus(t, resp, http.StatusBadRequest)
		resp.Body.Close()
	}
}

func TestCharge(t *testing.T) {
	env := newTestServer(t, "")

	resp := do(t, env, http.MethodPut, "/api/charge", `{"enabled": true}`)
	expectStatus(t, resp, http.StatusOK)
	var c models.Charge
	decodeJSON(t, resp, &c)
	if c.Enabled {
		t.Error("charge reported enabled before the converter is active")
	}
	if env.hw.GetReg(hardware.RegChgCtrl)&hardware.ChgEnMask == 0 {
		t.Error("CHG_EN not set")
	}

	env.hw.SetReg(hardware.RegStat5, hardware.ConvActiveStat)
	resp = do(t, env, http.MethodGet, "/api/charge", "")
	expectStatus(t, resp, http.StatusOK)
	decodeJSON(t, resp, &c)
	if !c.Enabled {
		t.Error("charge not reported enabled")
	}
}

func TestCharge_BusError(t *testing.T) {
	env := newTestServer(t, "")
	env.hw.FailWriteAt(hardware.RegChgCtrl, true)

	resp := do(t, env, http.MethodPut, "/api/charge", `{"enabled": false}`)
	expectStatus(t, resp, http.StatusBadGateway)
	resp.Body.Close()
}

func TestGetRegisters(t *testing.T) {
	env := newTestServer(t, "")
	resp := do(t, env, http.MethodGet, "/api/registers", "")
	expectStatus(t, resp, http.StatusOK)
	var regs []models.Register
	decodeJSON(t, resp, &regs)

	if len(regs) != int(hardware.DumpLast)+1-5 {
		t.Fatalf("got %d registers", len(regs))
	}
	for _, r := range regs {
		if r.Addr >= "0x18" && r.Addr <= "0x1C" {
			t.Errorf("flag register %s dumped", r.Addr)
		}
	}
	if regs[0].Addr != "0x00" {
		t.Errorf("first register %s", regs[0].Addr)
	}
}

func TestGetFlags(t *testing.T) {
	env := newTestServer(t, "")
	resp := do(t, env, http.MethodGet, "/api/flags", "")
	expectStatus(t, resp, http.StatusOK)
	var regs []models.Register
	decodeJSON(t, resp, &regs)
	if len(regs) != 5 || regs[0].Addr != "0x18" || regs[4].Addr != "0x1C" {
		t.Errorf("flags = %+v", regs)
	}
}

func TestControlRequiresKey(t *testing.T) {
	env := newTestServer(t, "k3y")

	resp := do(t, env, http.MethodPut, "/api/charge", `{"enabled": true}`)
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()

	resp = do(t, env, http.MethodPut, "/api/charge?api-key=k3y", `{"enabled": true}`)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	// Telemetry stays open.
	resp = do(t, env, http.MethodGet, "/api/status", "")
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()
}

func TestCORSPreflight(t *testing.T) {
	env := newTestServer(t, "")
	resp := do(t, env, http.MethodOptions, "/api/charge", "")
	expectStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestSSESubscribe(t *testing.T) {
	env := newTestServer(t, "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.srv.URL+"/api/subscribe", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	client := &http.Client{Transport: &http.Transport{DisableCompression: true}}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	scanner := bufio.NewScanner(resp.Body)
	next := func() models.Status {
		t.Helper()
		sawEvent := false
		for scanner.Scan() {
			line := scanner.Text()
			if line == "event: status" {
				sawEvent = true
				continue
			}
			if strings.HasPrefix(line, "data: ") {
				if !sawEvent {
					t.Error("data without event line")
				}
				var st models.Status
				if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &st); err != nil {
					t.Fatalf("SSE data is not valid Status JSON: %v", err)
				}
				return st
			}
		}
		t.Fatal("SSE stream ended")
		return models.Status{}
	}

	if st := next(); st.Flags.BusOCPFault {
		t.Error("initial status already faulted")
	}

	env.hw.SetReg(hardware.RegStat2, hardware.BusOCPStat)
	env.dev.OnInterrupt(context.Background())
	if st := next(); !st.Flags.BusOCPFault || !st.Fault {
		t.Errorf("interrupt status = %+v", st.Flags)
	}
}

func TestGetInfo(t *testing.T) {
	env := newTestServer(t, "")
	resp := do(t, env, http.MethodGet, "/api/info", "")
	expectStatus(t, resp, http.StatusOK)
	var info identity.Info
	decodeJSON(t, resp, &info)
	if info.Version == "" || !strings.HasPrefix(info.Instance, "charger_standalone@") {
		t.Errorf("info = %+v", info)
	}
}
