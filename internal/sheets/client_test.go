package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"online_tables_lite/internal/export"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

type call struct {
	Method string
	Path   string
	Query  string
	Values [][]interface{}
}

func fakeSheets(t *testing.T) (*Client, func() []call) {
	t.Helper()
	var mu sync.Mutex
	var calls []call

	r := chi.NewRouter()
	r.HandleFunc("/*", func(w http.ResponseWriter, req *http.Request) {
		c := call{Method: req.Method, Path: req.URL.Path, Query: req.URL.RawQuery}
		if req.Method == http.MethodPut {
			var vr sheets.ValueRange
			require.NoError(t, json.NewDecoder(req.Body).Decode(&vr))
			c.Values = vr.Values
		}
		mu.Lock()
		calls = append(calls, c)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	client, err := NewClientWithOptions(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	return client, func() []call {
		mu.Lock()
		defer mu.Unlock()
		return append([]call(nil), calls...)
	}
}

func TestWriteDatasetClearsThenWrites(t *testing.T) {
	client, calls := fakeSheets(t)
	ds := &export.Dataset{Headers: []string{"Name", "Day"}, Rows: [][]string{{"Ada", ""}}}

	require.NoError(t, client.WriteDataset(context.Background(), "sheet-id", "Shifts", ds))

	got := calls()
	require.Len(t, got, 2)
	assert.Equal(t, http.MethodPost, got[0].Method)
	assert.True(t, strings.HasSuffix(got[0].Path, ":clear"), got[0].Path)
	assert.Contains(t, got[0].Path, "/v4/spreadsheets/sheet-id/values/Shifts")

	assert.Equal(t, http.MethodPut, got[1].Method)
	assert.Contains(t, got[1].Query, "valueInputOption=RAW")
	assert.Equal(t, [][]interface{}{{"Name", "Day"}, {"Ada", ""}}, got[1].Values)
}
