package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/akarev/keepup/internal/errs"
	"github.com/akarev/keepup/internal/model"
)

func TestClient_ListEntities_AuthAndDecode(t *testing.T) {
	t.Parallel()
	id := uuid.Must(uuid.NewV4())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/entities", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode([]entityDTO{{
			ID:        id.String(),
			Name:      "run",
			Kind:      "pursuit",
			CreatedAt: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
			Active:    true,
		}})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", time.Second)
	entities, err := c.ListEntities(context.Background())
	require.NoError(t, err)
	require.Len(t, entities, 1)
	require.Equal(t, id, entities[0].ID)
	require.Equal(t, model.KindPursuit, entities[0].Kind)
	require.True(t, entities[0].Active)
}

func TestClient_StatusMapping(t *testing.T) {
	t.Parallel()
	cases := []struct {
		code int
		want error
	}{
		{http.StatusBadRequest, errs.ErrValidation},
		{http.StatusUnprocessableEntity, errs.ErrValidation},
		{http.StatusNotFound, errs.ErrNotFound},
		{http.StatusRequestTimeout, errs.ErrTimeout},
		{http.StatusGatewayTimeout, errs.ErrTimeout},
		{http.StatusServiceUnavailable, errs.ErrUnavailable},
		{http.StatusBadGateway, errs.ErrUnavailable},
		{http.StatusTooManyRequests, errs.ErrUnavailable},
	}
	for _, tc := range cases {
		code := tc.code
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", code)
		}))
		c := New(srv.URL, "", time.Second)
		err := c.Ping(context.Background())
		require.ErrorIs(t, err, tc.want, "status %d", code)
		srv.Close()
	}
}

func TestClient_UnclassifiedStatusSurfaces(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "broken", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	err := c.Ping(context.Background())
	require.Error(t, err)
	for _, sentinel := range []error{errs.ErrValidation, errs.ErrNotFound, errs.ErrTimeout, errs.ErrUnavailable} {
		require.NotErrorIs(t, err, sentinel)
	}
}

func TestClient_ExpiredTokenFailsFast(t *testing.T) {
	t.Parallel()
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		hits++
	}))
	defer srv.Close()

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}).SignedString([]byte("key"))
	require.NoError(t, err)

	c := New(srv.URL, tok, time.Second)
	err = c.Ping(context.Background())
	require.ErrorIs(t, err, errs.ErrValidation)
	require.Zero(t, hits, "expired token must not reach the backend")
}

func TestClient_CreateEvent_RoundTrip(t *testing.T) {
	t.Parallel()
	entityID := uuid.Must(uuid.NewV4())
	serverID := uuid.Must(uuid.NewV4())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/events", r.URL.Path)
		var in eventDTO
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		require.Empty(t, in.ID, "client must not invent event ids on the wire")
		require.Equal(t, []string{entityID.String()}, in.EntityIDs)
		in.ID = serverID.String()
		_ = json.NewEncoder(w).Encode(in)
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	out, err := c.CreateEvent(context.Background(), model.Event{
		EntityIDs: []uuid.UUID{entityID},
		Timestamp: time.Date(2025, 6, 10, 20, 15, 0, 0, time.UTC),
		Note:      "after dinner",
	})
	require.NoError(t, err)
	require.Equal(t, serverID, out.ID)
	require.Equal(t, []uuid.UUID{entityID}, out.EntityIDs)
	require.Equal(t, "after dinner", out.Note)
}

func TestClient_CreateEntity_PendingIDStripped(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in entityDTO
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		require.Empty(t, in.ID, "pending local id must not cross the wire")
		in.ID = uuid.Must(uuid.NewV4()).String()
		_ = json.NewEncoder(w).Encode(in)
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	out, err := c.CreateEntity(context.Background(), model.Entity{
		ID:      uuid.Must(uuid.NewV4()),
		Pending: true,
		Name:    "meditate",
		Kind:    model.KindPursuit,
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, out.ID)
}

func TestClient_ConnectionRefusedIsUnavailable(t *testing.T) {
	t.Parallel()
	// A closed server guarantees connection refused on its former port.
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	c := New(addr, "", time.Second)
	err := c.Ping(context.Background())
	require.ErrorIs(t, err, errs.ErrUnavailable)
}
