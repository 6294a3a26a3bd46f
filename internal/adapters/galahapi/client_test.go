package galahapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galah-project/galah-cli/internal/domain"
)

func TestLoginStoresCookiesOnSuccess(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "/api/login", r.URL.Path)
		assert.Equal(t, "a@x", r.PostForm.Get("email"))
		assert.Equal(t, "pw", r.PostForm.Get("password"))

		http.SetCookie(w, &http.Cookie{Name: "session", Value: "tok-1", Path: "/"})
		w.Header().Set(HeaderCallSuccess, "True")
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	require.NoError(t, client.Login(context.Background(), "a@x", "pw"))

	cookies := client.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, domain.Cookie{Name: "session", Value: "tok-1"}, cookies[0])
}

func TestLoginRejectionIsAuthenticationErrorDespiteHTTP200(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(HeaderCallSuccess, "False")
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	err = client.Login(context.Background(), "a@x", "wrong")
	assert.ErrorIs(t, err, domain.ErrAuthentication)
}

func TestLoginUnreachableServerIsTransportError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	err = client.Login(context.Background(), "a@x", "pw")

	var transportErr *domain.TransportError
	assert.ErrorAs(t, err, &transportErr)
}

func TestCallSendsJSONBodyWithoutFiles(t *testing.T) {
	t.Parallel()

	var gotContentType, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set(HeaderCallSuccess, "True")
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	resp, err := client.Call(context.Background(), map[string]string{"api_name": "whoami"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "application/json", gotContentType)
	assert.JSONEq(t, `{"api_name":"whoami"}`, gotBody)
	assert.Equal(t, "ok", resp.Body)

	ok, present := resp.Success()
	assert.True(t, ok)
	assert.True(t, present)
}

func TestCallStreamsFilesAsMultipart(t *testing.T) {
	t.Parallel()

	uploadPath := filepath.Join(t.TempDir(), "solution.tgz")
	require.NoError(t, os.WriteFile(uploadPath, []byte("tarball-bytes"), 0o600))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.JSONEq(t, `{"api_name":"upload_submission","assignment":"hw1"}`, r.FormValue("request"))

		file, header, err := r.FormFile("archive")
		require.NoError(t, err)
		defer func() { _ = file.Close() }()
		assert.Equal(t, "solution.tgz", header.Filename)

		content, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "tarball-bytes", string(content))

		w.Header().Set(HeaderCallSuccess, "True")
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	_, err = client.Call(context.Background(),
		map[string]string{"api_name": "upload_submission", "assignment": "hw1"},
		map[string]string{"archive": uploadPath},
	)
	require.NoError(t, err)
}

func TestCallMissingUploadFileFailsBeforeDispatch(t *testing.T) {
	t.Parallel()

	dispatched := false
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		dispatched = true
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	_, err = client.Call(context.Background(),
		map[string]string{"api_name": "upload_submission"},
		map[string]string{"archive": filepath.Join(t.TempDir(), "missing.tgz")},
	)
	require.Error(t, err)
	assert.False(t, dispatched)
}

func TestPollDownloadTimesOutWhenHeadersNeverArrive(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	_, err = client.PollDownload(context.Background(), server.URL+"/file", 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrPollTimeout)
}

func TestPollDownloadAllowsSlowBodiesAfterHeaders(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		flusher.Flush()
		time.Sleep(120 * time.Millisecond)
		_, _ = w.Write([]byte("late-bytes"))
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	resp, err := client.PollDownload(context.Background(), server.URL+"/file", 50*time.Millisecond)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "late-bytes", string(body))
}

func TestResolveJoinsRelativeURLs(t *testing.T) {
	t.Parallel()

	client, err := NewClient("https://galah.school.edu")
	require.NoError(t, err)

	resolved, err := client.Resolve("/files/abc123")
	require.NoError(t, err)
	assert.Equal(t, "https://galah.school.edu/files/abc123", resolved)
}

func TestNewClientRejectsBadHosts(t *testing.T) {
	t.Parallel()

	for _, host := range []string{"", "ftp://x", "not a url at all \x7f"} {
		_, err := NewClient(host)
		assert.Error(t, err, "host %q", host)
	}
}

func TestVerifyExternalTokenReturnsIdentity(t *testing.T) {
	t.Parallel()

	tokenInfo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "tok", r.PostForm.Get("access_token"))
		_, _ = w.Write([]byte(`{"email":"student@school.edu"}`))
	}))
	defer tokenInfo.Close()

	client, err := NewClient("https://galah.school.edu")
	require.NoError(t, err)

	email, err := client.VerifyExternalToken(context.Background(), tokenInfo.URL, "tok")
	require.NoError(t, err)
	assert.Equal(t, "student@school.edu", email)
}

func TestVerifyExternalTokenRejectionIsAuthenticationError(t *testing.T) {
	t.Parallel()

	tokenInfo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer tokenInfo.Close()

	client, err := NewClient("https://galah.school.edu")
	require.NoError(t, err)

	_, err = client.VerifyExternalToken(context.Background(), tokenInfo.URL, "bad")
	assert.True(t, errors.Is(err, domain.ErrAuthentication))
}
