package tablestore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(Config{
		BaseURL:   server.URL,
		BaseID:    "appTest",
		APIKey:    "key-test",
		Timeout:   5 * time.Second,
		BatchSize: 20,
	}, zap.NewNop())

	return client, server
}

func TestClient_List_FollowsPagination(t *testing.T) {
	var requests int
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		assert.Equal(t, "Bearer key-test", r.Header.Get("Authorization"))

		if r.URL.Query().Get("offset") == "" {
			fmt.Fprint(w, `{"records":[{"id":"rec1","fields":{"Status":"Waiting"}}],"offset":"page2"}`)
			return
		}
		fmt.Fprint(w, `{"records":[{"id":"rec2","fields":{}}]}`)
	}))

	records, err := client.List(context.Background(), "Approvals", "")
	require.NoError(t, err)
	assert.Equal(t, 2, requests)
	require.Len(t, records, 2)
	assert.Equal(t, "rec1", records[0].ID)
	assert.Equal(t, "rec2", records[1].ID)
}

func TestClient_List_RemoteErrorCarriesBodyMessage(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"error":{"type":"INVALID_FILTER_BY_FORMULA","message":"The formula is invalid"}}`)
	}))

	_, err := client.List(context.Background(), "Approvals", "bogus(")
	require.Error(t, err)

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusUnprocessableEntity, remoteErr.StatusCode)
	assert.Equal(t, "The formula is invalid", remoteErr.Message)
}

func TestClient_List_StringErrorBody(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"NOT_FOUND"}`)
	}))

	_, err := client.List(context.Background(), "Missing", "")
	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, "NOT_FOUND", remoteErr.Message)
}

func TestClient_List_MalformedPayload(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"records": not-json`)
	}))

	_, err := client.List(context.Background(), "Approvals", "")
	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, "malformed response payload", remoteErr.Message)
}

func TestClient_ListByIDs_ChunksRequests(t *testing.T) {
	var formulas []string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		formulas = append(formulas, r.URL.Query().Get("filterByFormula"))
		fmt.Fprint(w, `{"records":[{"id":"rec","fields":{}}]}`)
	}))

	ids := make([]string, 45)
	for i := range ids {
		ids[i] = fmt.Sprintf("rec%03d", i)
	}

	records, err := client.ListByIDs(context.Background(), "Payments", ids)
	require.NoError(t, err)
	assert.Len(t, records, 3) // one synthetic record per chunk
	require.Len(t, formulas, 3)
	assert.Contains(t, formulas[0], "rec000")
	assert.Contains(t, formulas[2], "rec044")
}

func TestClient_ListByIDs_ChunkFailureFailsClosed(t *testing.T) {
	var requests int
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 2 {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":"SERVER_ERROR"}`)
			return
		}
		fmt.Fprint(w, `{"records":[{"id":"rec","fields":{}}]}`)
	}))

	ids := make([]string, 45)
	for i := range ids {
		ids[i] = fmt.Sprintf("rec%03d", i)
	}

	records, err := client.ListByIDs(context.Background(), "Payments", ids)
	require.Error(t, err)
	assert.Nil(t, records, "a failed batch must not surface partial data")
	assert.Equal(t, 2, requests, "remaining chunks are not attempted after a failure")
}

func TestClient_Update_SendsTypecastPatch(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)

		var body struct {
			Fields   map[string]any `json:"fields"`
			Typecast bool           `json:"typecast"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body.Typecast)
		assert.Equal(t, "נחתם", body.Fields["Status"])

		fmt.Fprint(w, `{"id":"rec1","fields":{"Status":"נחתם"}}`)
	}))

	record, err := client.Update(context.Background(), "Approvals", "rec1", map[string]any{"Status": "נחתם"})
	require.NoError(t, err)
	assert.Equal(t, "rec1", record.ID)
}

type observedCall struct {
	table     string
	operation string
	failed    bool
}

type mockObserver struct {
	calls []observedCall
}

func (m *mockObserver) ObserveRemoteCall(table, operation string, err error) {
	m.calls = append(m.calls, observedCall{table: table, operation: operation, failed: err != nil})
}

func TestClient_ObserverSeesEveryOperation(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/Missing/"):
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":"NOT_FOUND"}`)
		case r.Method == http.MethodPatch:
			fmt.Fprint(w, `{"id":"rec1","fields":{}}`)
		default:
			fmt.Fprint(w, `{"records":[{"id":"rec1","fields":{}}]}`)
		}
	}))
	observer := &mockObserver{}
	client.SetObserver(observer)

	_, err := client.List(context.Background(), "Approvals", "")
	require.NoError(t, err)

	_, err = client.Update(context.Background(), "Approvals", "rec1", map[string]any{"Status": "נחתם"})
	require.NoError(t, err)

	_, err = client.GetByID(context.Background(), "Missing", "recX")
	require.Error(t, err)

	require.Equal(t, []observedCall{
		{table: "Approvals", operation: "list"},
		{table: "Approvals", operation: "update"},
		{table: "Missing", operation: "get", failed: true},
	}, observer.calls)
}

func TestClient_ObserverCountsListOncePerCall(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") == "" {
			fmt.Fprint(w, `{"records":[{"id":"rec1","fields":{}}],"offset":"page2"}`)
			return
		}
		fmt.Fprint(w, `{"records":[{"id":"rec2","fields":{}}]}`)
	}))
	observer := &mockObserver{}
	client.SetObserver(observer)

	records, err := client.List(context.Background(), "Approvals", "")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Len(t, observer.calls, 1, "pagination pages are one logical call")
}

func TestClient_GetByID(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/appTest/Contracts/rec42")
		fmt.Fprint(w, `{"id":"rec42","fields":{"RecID":"C-0042"}}`)
	}))

	record, err := client.GetByID(context.Background(), "Contracts", "rec42")
	require.NoError(t, err)
	assert.Equal(t, "C-0042", record.Fields["RecID"])
}
