package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapdexdb/mapdex/pkg/model"
	"github.com/mapdexdb/mapdex/pkg/schema"
	"github.com/mapdexdb/mapdex/pkg/server"
)

func newTestServer(t *testing.T) *server.Server {
	t.Helper()
	srv := server.NewServer()
	sch := schema.MustNew(schema.Object(map[string]*schema.Node{
		"customer": schema.String(),
		"orderTotal": schema.Map(schema.Object(map[string]*schema.Node{
			"total": schema.Number(),
		})),
	}))
	err := srv.RegisterModel(context.Background(), "orders", sch, model.IndexSpec{
		Keys: map[string]interface{}{"orderTotal.total": 1},
	})
	require.NoError(t, err)
	return srv
}

func doJSON(t *testing.T, srv *server.Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInsertAndQuery(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/models/orders/documents", map[string]interface{}{
		"customer": "alice",
		"orderTotal": map[string]interface{}{
			"2014": map[string]interface{}{"total": 3},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created["_id"])

	rec = doJSON(t, srv, http.MethodPost, "/models/orders/query", map[string]interface{}{
		"filter": map[string]interface{}{"orderTotal.2014.total": 3},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var docs []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, created["_id"], docs[0]["_id"])
	assert.Equal(t, "alice", docs[0]["customer"])
}

func TestQueryRangeOverMapKey(t *testing.T) {
	srv := newTestServer(t)
	for _, d := range []map[string]interface{}{
		{"_id": "low", "orderTotal": map[string]interface{}{"2014": map[string]interface{}{"total": 1}}},
		{"_id": "high", "orderTotal": map[string]interface{}{"2014": map[string]interface{}{"total": 5}}},
		{"_id": "other", "orderTotal": map[string]interface{}{"2015": map[string]interface{}{"total": 3}}},
	} {
		rec := doJSON(t, srv, http.MethodPost, "/models/orders/documents", d)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doJSON(t, srv, http.MethodPost, "/models/orders/query", map[string]interface{}{
		"filter": map[string]interface{}{
			"orderTotal.2014.total": map[string]interface{}{"$gte": 2},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var docs []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "high", docs[0]["_id"])
}

func TestGetByIdAndNotFound(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/models/orders/documents",
		map[string]interface{}{"_id": "d1", "customer": "bob"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/models/orders/documents/d1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/models/orders/documents/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateEndpoint(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/models/orders/documents",
		map[string]interface{}{"_id": "d1", "customer": "bob"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, srv, http.MethodPatch, "/models/orders/documents", map[string]interface{}{
		"filter": map[string]interface{}{"_id": "d1"},
		"update": map[string]interface{}{"$set": map[string]interface{}{"customer": "robert"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var res map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, int64(1), res["modified"])
}

func TestSaveEndpointVersionConflict(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/models/orders/documents",
		map[string]interface{}{"_id": "d1", "customer": "bob"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/models/orders/documents/d1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))

	doc["customer"] = "robert"
	rec = doJSON(t, srv, http.MethodPut, "/models/orders/documents/d1", doc)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Re-sending the stale version conflicts.
	rec = doJSON(t, srv, http.MethodPut, "/models/orders/documents/d1", doc)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRemoveEndpoint(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/models/orders/documents",
		map[string]interface{}{"_id": "d1", "customer": "bob"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, srv, http.MethodDelete, "/models/orders/documents", map[string]interface{}{
		"filter": map[string]interface{}{"_id": "d1"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var res map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, int64(1), res["deleted"])
}

func TestUnknownModel(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/models/ghost/query", map[string]interface{}{
		"filter": map[string]interface{}{},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
