package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(srv.URL, "test-token", 5*time.Second)
	require.NoError(t, err)
	return client, srv
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("not a url", "t", time.Second)
	assert.Error(t, err)
}

func TestLogin(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/user/auth-token/", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "caver@example.org", body["email"])
		json.NewEncoder(w).Encode(map[string]string{"token": "fresh-token", "user": "caver@example.org"})
	}))

	token, user, err := client.Login(context.Background(), "caver@example.org", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)
	assert.Equal(t, "caver@example.org", user)
}

func TestLoginBadPassword(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	_, _, err := client.Login(context.Background(), "caver@example.org", "wrong")
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestFetchProjects(t *testing.T) {
	id := uuid.New()
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Token test-token", r.Header.Get("Authorization"))
		fmt.Fprintf(w, `{"data": [{"id": %q, "name": "Fulford Cave", "type": "COMPASS",
			"latest_commit": {"id": "abc123", "message": "initial"}}]}`, id)
	}))

	projects, err := client.FetchProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, id, projects[0].ID)
	assert.Equal(t, KindCompass, projects[0].Kind)
	assert.Equal(t, "abc123", projects[0].Revision())
}

func TestFetchProjectNotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	_, err := client.FetchProject(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestAcquireLockConflict(t *testing.T) {
	for _, status := range []int{http.StatusConflict, http.StatusLocked} {
		t.Run(fmt.Sprint(status), func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}))
			_, err := client.AcquireLock(context.Background(), uuid.New())
			assert.True(t, errors.Is(err, ErrLockConflict))
		})
	}
}

func TestAcquireLockSuccessReturnsToken(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"token": "mutex-7"})
	}))
	token, err := client.AcquireLock(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, "mutex-7", token)
}

func TestReleaseLockToleratesConflictAndMissing(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusConflict, http.StatusNotFound} {
		t.Run(fmt.Sprint(status), func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}))
			assert.NoError(t, client.ReleaseLock(context.Background(), uuid.New(), "stale"))
		})
	}
}

func TestUploadParsesCommit(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "survey update", r.FormValue("message"))
		_, header, err := r.FormFile("artifact")
		require.NoError(t, err)
		require.NotZero(t, header.Size)
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]string{"id": "rev-2", "message": "survey update"}})
	}))

	result, err := client.Upload(context.Background(), uuid.New(), "survey update", []byte("zipbytes"))
	require.NoError(t, err)
	assert.True(t, result.Saved)
	require.NotNil(t, result.Commit)
	assert.Equal(t, "rev-2", result.Commit.ID)
}

func TestUploadNoChanges(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	result, err := client.Upload(context.Background(), uuid.New(), "noop", []byte("zipbytes"))
	require.NoError(t, err)
	assert.False(t, result.Saved)
}

func TestDownload(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("archive-bytes"))
	}))
	data, err := client.Download(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, []byte("archive-bytes"), data)
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // refuse all connections
	client, err := NewClient(srv.URL, "test-token", time.Second)
	require.NoError(t, err)

	_, err = client.FetchProjects(context.Background())
	require.Error(t, err)
	assert.True(t, IsNetwork(err), "connection refusal must surface as NetworkError, got %v", err)
}

func TestMissingTokenFailsBeforeRequest(t *testing.T) {
	client, err := NewClient("https://example.org", "", time.Second)
	require.NoError(t, err)
	_, err = client.FetchProjects(context.Background())
	assert.True(t, errors.Is(err, ErrNoCredentials))
}
