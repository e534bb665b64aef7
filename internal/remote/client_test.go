package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL + "/api")
}

func respond(status int, contentType, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func TestEnvelopeHandling(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		contentType  string
		body         string
		wantAPI      *APIError
		wantUnauth   bool
		wantDecode   bool
		wantConvs    int
		wantConvsNil bool
	}{
		{
			name:        "success false on 200",
			status:      http.StatusOK,
			contentType: "application/json",
			body:        `{"success":false,"message":"not a participant","data":null}`,
			wantAPI:     &APIError{Status: http.StatusOK, Message: "not a participant"},
		},
		{
			name:        "html gateway error",
			status:      http.StatusBadGateway,
			contentType: "text/html",
			body:        "<html><body>Bad Gateway</body></html>\n",
			wantAPI:     &APIError{Status: http.StatusBadGateway, Message: "<html><body>Bad Gateway</body></html>"},
		},
		{
			name:        "unauthorized",
			status:      http.StatusUnauthorized,
			contentType: "application/json",
			body:        `{"success":false,"message":"token expired"}`,
			wantAPI:     &APIError{Status: http.StatusUnauthorized, Message: "token expired"},
			wantUnauth:  true,
		},
		{
			name:         "null data",
			status:       http.StatusOK,
			contentType:  "application/json",
			body:         `{"success":true,"message":"ok","data":null}`,
			wantConvsNil: true,
		},
		{
			name:        "list data",
			status:      http.StatusOK,
			contentType: "application/json",
			body:        `{"success":true,"message":"ok","data":[{"_id":"c1"},{"_id":"c2"}]}`,
			wantConvs:   2,
		},
		{
			name:        "garbage on 200",
			status:      http.StatusOK,
			contentType: "text/plain",
			body:        "hello",
			wantDecode:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, respond(tt.status, tt.contentType, tt.body))
			convs, err := c.ListConversations(context.Background(), 1, 20)

			switch {
			case tt.wantAPI != nil:
				var apiErr *APIError
				if !errors.As(err, &apiErr) {
					t.Fatalf("err = %v, want *APIError", err)
				}
				if *apiErr != *tt.wantAPI {
					t.Errorf("APIError = %+v, want %+v", *apiErr, *tt.wantAPI)
				}
				if got := errors.Is(err, ErrUnauthorized); got != tt.wantUnauth {
					t.Errorf("errors.Is(err, ErrUnauthorized) = %v, want %v", got, tt.wantUnauth)
				}
			case tt.wantDecode:
				var apiErr *APIError
				if err == nil || errors.As(err, &apiErr) {
					t.Fatalf("err = %v, want a decode error", err)
				}
				if !strings.Contains(err.Error(), "decode response") {
					t.Errorf("err = %v, want decode response", err)
				}
			default:
				if err != nil {
					t.Fatalf("ListConversations() error = %v", err)
				}
				if tt.wantConvsNil && convs != nil {
					t.Errorf("convs = %+v, want nil", convs)
				}
				if len(convs) != tt.wantConvs {
					t.Errorf("len(convs) = %d, want %d", len(convs), tt.wantConvs)
				}
			}
		})
	}
}

func TestMutationWithNullDataSucceeds(t *testing.T) {
	c := newTestClient(t, respond(http.StatusOK, "application/json", `{"success":true,"message":"deleted","data":null}`))
	if err := c.DeleteMessage(context.Background(), "m1"); err != nil {
		t.Errorf("DeleteMessage() error = %v", err)
	}
}

func TestRequestCarriesTokenAndQuery(t *testing.T) {
	var got *http.Request
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		respond(http.StatusOK, "application/json", `{"success":true,"data":[]}`)(w, r)
	})
	c.SetToken("tok-1")

	if _, err := c.SearchMessages(context.Background(), "pallet jack", "c9"); err != nil {
		t.Fatalf("SearchMessages() error = %v", err)
	}
	if got == nil {
		t.Fatal("no request received")
	}
	if got.URL.Path != "/api/messages/search" {
		t.Errorf("path = %q", got.URL.Path)
	}
	if q := got.URL.Query(); q.Get("query") != "pallet jack" || q.Get("conversationId") != "c9" {
		t.Errorf("query = %v", q)
	}
	if h := got.Header.Get("Authorization"); h != "Bearer tok-1" {
		t.Errorf("Authorization = %q", h)
	}

	c.SetToken("")
	if _, err := c.SearchMessages(context.Background(), "x", ""); err != nil {
		t.Fatal(err)
	}
	if h := got.Header.Get("Authorization"); h != "" {
		t.Errorf("anonymous request sent Authorization %q", h)
	}
	if got.URL.Query().Has("conversationId") {
		t.Error("empty conversation id sent as a parameter")
	}
}
