package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/Abdullah1738/juno-luts/internal/httpapi"
	"github.com/Abdullah1738/juno-luts/internal/lutservice"
	"github.com/Abdullah1738/juno-luts/lut"
	"github.com/Abdullah1738/juno-luts/offchain/lutstore"
	"github.com/Abdullah1738/juno-luts/offchain/solana"
)

type manualSlot struct{ atomic.Uint64 }

func (m *manualSlot) Slot(context.Context) (uint64, error) { return m.Load(), nil }

func key(b byte) solana.Pubkey {
	var pk solana.Pubkey
	for i := range pk {
		pk[i] = b
	}
	return pk
}

type harness struct {
	srv  *httptest.Server
	slot *manualSlot
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	slot := &manualSlot{}
	slot.Store(10)
	log := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	svc := lutservice.New(lutstore.NewMemStore(), slot, lutservice.Config{Grace: 2}, lutservice.WithLogger(log))
	srv := httptest.NewServer(httpapi.New(svc, log).Handler())
	t.Cleanup(srv.Close)
	return &harness{srv: srv, slot: slot}
}

func (h *harness) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestTableLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t)
	authority := key(0xA1)
	a0, a1, a2 := key(0x01), key(0x02), key(0x03)

	resp, body := h.do(t, http.MethodPost, "/v1/tables", map[string]any{
		"authority": authority,
		"addresses": []solana.Pubkey{a0, a1},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
	assert.Equal(t, "active", body["state"])
	table := body["address"].(string)

	want, _, err := lut.DeriveTableAddress(solana.AddressLookupTableProgramID, authority, 10)
	require.NoError(t, err)
	assert.Equal(t, want.String(), table)

	resp, body = h.do(t, http.MethodGet, "/v1/tables/"+table+"/addresses/0", nil)
	assert.Equal(t, http.StatusTooEarly, resp.StatusCode)
	assert.Equal(t, "lut_not_ready", body["kind"])

	h.slot.Store(11)
	resp, body = h.do(t, http.MethodGet, "/v1/tables/"+table+"/addresses/1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, a1.String(), body["address"])

	resp, body = h.do(t, http.MethodGet, "/v1/tables/"+table+"/addresses/7", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "index_out_of_range", body["kind"])

	resp, body = h.do(t, http.MethodPost, "/v1/tables/"+table+"/extend", map[string]any{
		"authority": key(0xB2),
		"addresses": []solana.Pubkey{a2},
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "invalid_lookup_table", body["kind"])

	resp, body = h.do(t, http.MethodPost, "/v1/tables/"+table+"/extend", map[string]any{
		"authority": authority,
		"addresses": []solana.Pubkey{a0, a2},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Len(t, body["addresses"], 3)

	resp, body = h.do(t, http.MethodGet, "/v1/tables/"+table+"/ready", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ready"])
	assert.EqualValues(t, 2, body["ready_len"])
	assert.EqualValues(t, 3, body["len"])

	resp, _ = h.do(t, http.MethodPost, "/v1/tables/"+table+"/freeze", map[string]any{"authority": authority})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body = h.do(t, http.MethodPost, "/v1/tables/"+table+"/freeze", map[string]any{"authority": authority})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "invalid_lookup_table", body["kind"])

	resp, body = h.do(t, http.MethodPost, "/v1/tables/"+table+"/close", map[string]any{"authority": authority})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "not_closable", body["kind"])

	resp, body = h.do(t, http.MethodPost, "/v1/tables/"+table+"/deactivate", map[string]any{"authority": authority})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "frozen-deactivated", body["state"])

	h.slot.Store(14)
	resp, _ = h.do(t, http.MethodPost, "/v1/tables/"+table+"/close", map[string]any{"authority": authority})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = h.do(t, http.MethodGet, "/v1/tables/"+table, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "invalid_lookup_table", body["kind"])
}

func TestCreateErrorsOverHTTP(t *testing.T) {
	h := newHarness(t)
	authority := key(0xA1)

	resp, body := h.do(t, http.MethodPost, "/v1/tables", map[string]any{"authority": authority, "seed": 10})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	table := body["address"].(string)

	resp, _ = h.do(t, http.MethodPost, "/v1/tables", map[string]any{"authority": authority, "seed": 10, "table": table})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = h.do(t, http.MethodPost, "/v1/tables", map[string]any{"authority": authority, "seed": 99})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_lookup_table", body["kind"])

	many := make([]solana.Pubkey, 257)
	for i := range many {
		many[i] = key(0x10)
		many[i][0] = byte(i)
		many[i][1] = byte(i >> 8)
	}
	h.slot.Store(11)
	resp, body = h.do(t, http.MethodPost, "/v1/tables", map[string]any{"authority": authority, "addresses": many})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "max_addresses_exceeded", body["kind"])

	resp, body = h.do(t, http.MethodPost, "/v1/tables", map[string]any{"authority": "nope"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "bad_request", body["kind"])
}

func TestListAndSlotOverHTTP(t *testing.T) {
	h := newHarness(t)
	resp, _ := h.do(t, http.MethodPost, "/v1/tables", map[string]any{"authority": key(0xA1)})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	h.slot.Store(12)
	resp, _ = h.do(t, http.MethodPost, "/v1/tables", map[string]any{"authority": key(0xB2)})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := h.do(t, http.MethodGet, "/v1/tables", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["tables"], 2)

	resp, body = h.do(t, http.MethodGet, "/v1/tables?authority="+key(0xB2).String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["tables"], 1)

	resp, body = h.do(t, http.MethodGet, "/v1/slot", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 12, body["slot"])

	resp, body = h.do(t, http.MethodGet, "/v1/tables/not-base58!", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "bad_request", body["kind"])
}
