package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/angelmondragon/fashionstore-backend/pkg/logger"
	"github.com/angelmondragon/fashionstore-backend/pkg/types"
)

func TestRecovererWritesInternalEnvelope(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})
	handler := RequestID(logg)(Recoverer(logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("nil order items")
	})))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil)
	req.Header.Set(requestIDHeader, "checkout-7")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	var body types.ErrorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if body.Error.Code != "INTERNAL_ERROR" || body.Error.RequestID != "checkout-7" {
		t.Fatalf("unexpected envelope %+v", body.Error)
	}
	if strings.Contains(body.Error.Message, "nil order items") {
		t.Fatalf("panic value leaked: %q", body.Error.Message)
	}

	out := buf.String()
	for _, want := range []string{`"storefront.panic_recovered"`, `"path":"/api/v1/orders"`, `"request_id":"checkout-7"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in log=%s", want, out)
		}
	}
}

func TestRecovererRepanicsOnAbortHandler(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Fatalf("expected ErrAbortHandler to propagate, got %v", rec)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	t.Fatalf("expected panic")
}

func TestRequestIDReplacesUnsafeValues(t *testing.T) {
	var seen string
	handler := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = w.Header().Get(requestIDHeader)
	}))

	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{name: "kept", header: "web-3f2a.1_b", keep: true},
		{name: "missing", header: ""},
		{name: "newline", header: "abc\nset-cookie: x"},
		{name: "too long", header: strings.Repeat("a", maxRequestIDLength+1)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header[requestIDHeader] = []string{tc.header}
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)
			if tc.keep && seen != tc.header {
				t.Fatalf("expected %q to be kept, got %q", tc.header, seen)
			}
			if !tc.keep && (seen == tc.header || seen == "") {
				t.Fatalf("expected generated id, got %q", seen)
			}
		})
	}
}
