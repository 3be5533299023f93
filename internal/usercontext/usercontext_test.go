package usercontext

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chative-core-poc-v1/draftflow/internal/rest"
	"github.com/Chative-core-poc-v1/draftflow/internal/session"
)

func strp(s string) *string { return &s }

func TestSetUserContextMergesPatch(t *testing.T) {
	ctx := context.Background()
	s := New(session.NewMemoryStore(0), Config{}, nil, "")

	_, ok := s.UserContext(ctx, "5511")
	assert.False(t, ok)

	s.SetUserContext(ctx, "5511", Patch{BusinessID: strp("b1")})
	s.SetUserContext(ctx, "5511", Patch{ActiveFlow: strp("expense")})

	uc, ok := s.UserContext(ctx, "5511")
	require.True(t, ok)
	assert.Equal(t, "5511", uc.Phone)
	assert.Equal(t, "b1", uc.BusinessID)
	assert.Equal(t, "expense", uc.ActiveFlow)
	assert.False(t, uc.UpdatedAt.IsZero())
}

func TestEnsureSessionIsStable(t *testing.T) {
	ctx := context.Background()
	s := New(session.NewMemoryStore(0), Config{}, nil, "")

	first := s.EnsureSession(ctx, "5511")
	require.NotEmpty(t, first)
	assert.Equal(t, first, s.EnsureSession(ctx, "5511"))

	next := s.StartSession(ctx, "5511")
	assert.NotEqual(t, first, next)
	assert.Equal(t, next, s.EnsureSession(ctx, "5511"))
}

func TestBusinessIDForPhoneUsesContextFirst(t *testing.T) {
	ctx := context.Background()
	s := New(session.NewMemoryStore(0), Config{}, nil, "")
	s.SetUserContext(ctx, "5511", Patch{BusinessID: strp("b1")})

	id, err := s.BusinessIDForPhone(ctx, "5511")
	require.NoError(t, err)
	assert.Equal(t, "b1", id)

	_, err = s.BusinessIDForPhone(ctx, "5522")
	assert.ErrorIs(t, err, ErrBusinessNotFound)
}

func TestBusinessIDForPhoneLooksUpOnce(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/users/5511/business", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"businessId":"b9","farmId":"f3"}}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	s := New(session.NewMemoryStore(0), Config{LookupPath: "/users/{phone}/business"},
		rest.New(rest.Config{BaseURL: srv.URL}), srv.URL)

	for i := 0; i < 2; i++ {
		id, err := s.BusinessIDForPhone(ctx, "5511")
		require.NoError(t, err)
		assert.Equal(t, "b9", id)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	uc, _ := s.UserContext(ctx, "5511")
	assert.Equal(t, "f3", uc.FarmID)
}

func TestBusinessIDForPhoneEmptyAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	s := New(session.NewMemoryStore(0), Config{LookupPath: "/users/{phone}/business"},
		rest.New(rest.Config{BaseURL: srv.URL}), srv.URL)
	_, err := s.BusinessIDForPhone(context.Background(), "5511")
	assert.ErrorIs(t, err, ErrBusinessNotFound)
}
