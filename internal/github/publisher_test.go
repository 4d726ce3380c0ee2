package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yangwenmai/taskforge/internal/model"
)

// fakeGitHub is a minimal GitHub REST double.
type fakeGitHub struct {
	mu sync.Mutex

	collisions    int // number of create calls answered with "already exists"
	createdNames  []string
	files         map[string]string // path -> sha
	puts          []putCall
	failPutFor    string
	pagesPostCode int
	pagesGetCode  int
}

type putCall struct {
	Path    string
	Message string
	SHA     string
	Content []byte
}

func newFakeGitHub() *fakeGitHub {
	return &fakeGitHub{files: map[string]string{}, pagesPostCode: http.StatusCreated, pagesGetCode: http.StatusOK}
}

func (f *fakeGitHub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /user/repos", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name            string `json:"name"`
			Private         bool   `json:"private"`
			AutoInit        bool   `json:"auto_init"`
			LicenseTemplate string `json:"license_template"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.False(t, body.Private)
		assert.True(t, body.AutoInit)
		assert.Equal(t, "mit", body.LicenseTemplate)

		f.mu.Lock()
		f.createdNames = append(f.createdNames, body.Name)
		taken := len(f.createdNames) <= f.collisions
		f.mu.Unlock()

		if taken {
			w.WriteHeader(http.StatusUnprocessableEntity)
			fmt.Fprint(w, `{"message":"Repository creation failed.","errors":[{"resource":"Repository","code":"custom","field":"name","message":"name already exists on this account"}]}`)
			return
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"name":%q,"html_url":"https://github.com/octo/%s"}`, body.Name, body.Name)
	})

	mux.HandleFunc("GET /repos/octo/{repo}/contents/{path}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		sha, ok := f.files[r.PathValue("path")]
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message":"Not Found"}`)
			return
		}
		fmt.Fprintf(w, `{"type":"file","name":%q,"path":%q,"sha":%q}`, r.PathValue("path"), r.PathValue("path"), sha)
	})

	mux.HandleFunc("PUT /repos/octo/{repo}/contents/{path}", func(w http.ResponseWriter, r *http.Request) {
		path := r.PathValue("path")
		var body struct {
			Message string `json:"message"`
			Content []byte `json:"content"`
			SHA     string `json:"sha"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		f.mu.Lock()
		f.puts = append(f.puts, putCall{Path: path, Message: body.Message, SHA: body.SHA, Content: body.Content})
		n := len(f.puts)
		fail := path == f.failPutFor
		f.mu.Unlock()

		if fail {
			w.WriteHeader(http.StatusConflict)
			fmt.Fprint(w, `{"message":"conflict"}`)
			return
		}
		fmt.Fprintf(w, `{"content":{"path":%q},"commit":{"sha":"commit-%d"}}`, path, n)
	})

	mux.HandleFunc("POST /repos/octo/{repo}/pages", func(w http.ResponseWriter, r *http.Request) {
		if f.pagesPostCode >= 300 {
			w.WriteHeader(f.pagesPostCode)
			fmt.Fprint(w, `{"message":"GitHub Pages is already enabled."}`)
			return
		}
		w.WriteHeader(f.pagesPostCode)
		fmt.Fprintf(w, `{"html_url":"https://octo.github.io/%s/"}`, r.PathValue("repo"))
	})

	mux.HandleFunc("GET /repos/octo/{repo}/pages", func(w http.ResponseWriter, r *http.Request) {
		if f.pagesGetCode >= 300 {
			w.WriteHeader(f.pagesGetCode)
			fmt.Fprint(w, `{"message":"Not Found"}`)
			return
		}
		fmt.Fprintf(w, `{"html_url":"https://octo.github.io/%s/existing/"}`, r.PathValue("repo"))
	})

	return mux
}

func newTestPublisher(t *testing.T, f *fakeGitHub, sleeps *[]time.Duration) *Publisher {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	suffix := 1000
	p, err := NewPublisher("ghp_test",
		WithBaseURL(srv.URL),
		WithRetryDelay(time.Second),
		WithSleep(func(_ context.Context, d time.Duration) error {
			if sleeps != nil {
				*sleeps = append(*sleeps, d)
			}
			return nil
		}),
		WithClock(func() time.Time { return time.Unix(1700000000, 0) }),
		WithSuffix(func() int { suffix++; return suffix }),
	)
	require.NoError(t, err)
	return p
}

func TestCreateRepository_NoCollision(t *testing.T) {
	f := newFakeGitHub()
	p := newTestPublisher(t, f, nil)

	url, err := p.CreateRepository(context.Background(), "captcha-solver-ab12")
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/octo/captcha-solver-ab12", url)
	assert.Equal(t, []string{"captcha-solver-ab12"}, f.createdNames)
}

func TestCreateRepository_RetriesDistinctNames(t *testing.T) {
	f := newFakeGitHub()
	f.collisions = 4
	var sleeps []time.Duration
	p := newTestPublisher(t, f, &sleeps)

	url, err := p.CreateRepository(context.Background(), "task-nonce")
	require.NoError(t, err)

	require.Len(t, f.createdNames, 5)
	seen := map[string]bool{}
	for _, n := range f.createdNames {
		assert.False(t, seen[n], "name %q attempted twice", n)
		seen[n] = true
	}
	assert.Equal(t, "task-nonce", f.createdNames[0])
	assert.Equal(t, "task-nonce-1700000000000-1001", f.createdNames[1])
	assert.Equal(t, "https://github.com/octo/"+f.createdNames[4], url)
	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second, time.Second}, sleeps)
}

func TestCreateRepository_ExhaustsAttempts(t *testing.T) {
	f := newFakeGitHub()
	f.collisions = 100
	p := newTestPublisher(t, f, nil)

	_, err := p.CreateRepository(context.Background(), "task-nonce")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrRepositoryCreation))
	assert.Len(t, f.createdNames, 5)
}

func TestCreateRepository_OtherErrorNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"Bad credentials"}`)
	}))
	defer srv.Close()

	p, err := NewPublisher("bad", WithBaseURL(srv.URL), WithSleep(func(context.Context, time.Duration) error { return nil }))
	require.NoError(t, err)

	_, err = p.CreateRepository(context.Background(), "x")
	assert.ErrorIs(t, err, model.ErrRepositoryCreation)
	assert.NotErrorIs(t, err, model.ErrDuplicateName)
	assert.Equal(t, 1, calls)
}

func TestUploadFiles_CreateAndUpdate(t *testing.T) {
	f := newFakeGitHub()
	f.files["README.md"] = "readme-sha"
	p := newTestPublisher(t, f, nil)

	files := model.ArtifactSet{IndexHTML: "<h1>x</h1>", StyleCSS: "h1{}", ScriptJS: "1;", ReadmeMD: "# x"}.Files()
	sha, err := p.UploadFiles(context.Background(), "https://github.com/octo/app", files)
	require.NoError(t, err)
	assert.Equal(t, "commit-4", sha)

	require.Len(t, f.puts, 4)
	assert.Equal(t, "index.html", f.puts[0].Path)
	assert.Equal(t, "Add/Update index.html", f.puts[0].Message)
	assert.Empty(t, f.puts[0].SHA)
	assert.Equal(t, []byte("<h1>x</h1>"), f.puts[0].Content)
	assert.Equal(t, "README.md", f.puts[3].Path)
	assert.Equal(t, "readme-sha", f.puts[3].SHA)
}

func TestUploadFiles_StopsAtFirstFailure(t *testing.T) {
	f := newFakeGitHub()
	f.failPutFor = "style.css"
	p := newTestPublisher(t, f, nil)

	files := model.ArtifactSet{IndexHTML: "a", StyleCSS: "b", ScriptJS: "c", ReadmeMD: "d"}.Files()
	_, err := p.UploadFiles(context.Background(), "https://github.com/octo/app", files)
	require.Error(t, err)

	var uerr *model.UploadError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "style.css", uerr.File)
	assert.ErrorIs(t, err, model.ErrUpload)
	assert.Len(t, f.puts, 2, "no uploads after the failing file")
}

func TestUploadFiles_Empty(t *testing.T) {
	p := newTestPublisher(t, newFakeGitHub(), nil)
	_, err := p.UploadFiles(context.Background(), "https://github.com/octo/app", nil)
	assert.ErrorIs(t, err, model.ErrUpload)
}

func TestEnablePages(t *testing.T) {
	tests := []struct {
		name     string
		postCode int
		getCode  int
		want     string
		wantErr  bool
	}{
		{"enabled", http.StatusCreated, http.StatusOK, "https://octo.github.io/app/", false},
		{"already enabled", http.StatusConflict, http.StatusOK, "https://octo.github.io/app/existing/", false},
		{"activation failed", http.StatusUnprocessableEntity, http.StatusNotFound, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeGitHub()
			f.pagesPostCode, f.pagesGetCode = tt.postCode, tt.getCode
			p := newTestPublisher(t, f, nil)

			got, err := p.EnablePages(context.Background(), "https://github.com/octo/app")
			if tt.wantErr {
				assert.ErrorIs(t, err, model.ErrPagesActivation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRepositoryName(t *testing.T) {
	assert.Equal(t, "captcha-solver-ab12", RepositoryName("captcha-solver", "ab12", 1))
	assert.Equal(t, "captcha-solver-ab12-r2", RepositoryName("captcha-solver", "ab12", 2))
	assert.Equal(t, "my-task-n-1-r3", RepositoryName("my task!", "n/1", 3))
	assert.Equal(t, "app", SanitizeName("  ///  "))
}

func TestParseRepoURL(t *testing.T) {
	owner, repo, err := ParseRepoURL("https://github.com/octo/app.git")
	require.NoError(t, err)
	assert.Equal(t, "octo", owner)
	assert.Equal(t, "app", repo)

	_, _, err = ParseRepoURL("https://github.com/octo")
	assert.Error(t, err)
}

func TestConfigured(t *testing.T) {
	p, err := NewPublisher("")
	require.NoError(t, err)
	assert.False(t, p.Configured())

	p, err = NewPublisher("tok", WithRateLimit(2))
	require.NoError(t, err)
	assert.True(t, p.Configured())
	assert.True(t, strings.HasPrefix(p.client.BaseURL.String(), "https://api.github.com"))
}
