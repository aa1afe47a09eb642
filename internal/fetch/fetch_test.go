package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(contentType string, status int, body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != DefaultUserAgent {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestGet(t *testing.T) {
	srv := serve("text/html; charset=utf-8", http.StatusOK, "<html><body>Staff ML Engineer</body></html>")
	defer srv.Close()

	res, err := Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, res.HTML, "Staff ML Engineer")
	assert.False(t, res.Truncated)
}

func TestGet_Errors(t *testing.T) {
	notFound := serve("text/html", http.StatusNotFound, "gone")
	defer notFound.Close()
	pdf := serve("application/pdf", http.StatusOK, "%PDF-1.7")
	defer pdf.Close()

	tests := []struct {
		name    string
		url     string
		message string
	}{
		{"no scheme", "example.com/jobs/1", "invalid URL"},
		{"ftp", "ftp://example.com/jobs/1", "invalid URL"},
		{"status", notFound.URL, "HTTP status 404"},
		{"content type", pdf.URL, "unsupported content type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Get(context.Background(), tt.url, nil)
			require.Error(t, err)
			var fe *Error
			require.True(t, errors.As(err, &fe))
			assert.Contains(t, fe.Message, tt.message)
		})
	}
}

func TestGet_StatusErrorKeepsResult(t *testing.T) {
	srv := serve("text/html", http.StatusServiceUnavailable, "maintenance")
	defer srv.Close()

	res, err := Get(context.Background(), srv.URL, nil)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "maintenance", res.HTML)
}

func TestGet_TruncatesLargeBodies(t *testing.T) {
	srv := serve("text/plain", http.StatusOK, strings.Repeat("a", 64))
	defer srv.Close()

	res, err := Get(context.Background(), srv.URL, &Options{MaxBytes: 16})
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Len(t, res.HTML, 16)
}

func TestExtractMainText(t *testing.T) {
	tests := []struct {
		name string
		html string
		sel  Selectors
		want string
	}{
		{
			name: "first content match wins",
			html: `<body><nav>Jobs | About</nav><article>Second</article><main><h1>ML Engineer</h1><p>Train   models.</p></main></body>`,
			sel:  Selectors{Content: []string{"main", "article"}},
			want: "ML Engineer\nTrain models.",
		},
		{
			name: "noise removed",
			html: `<body><main><p>Build ranking systems.</p><form>Apply now</form><div class="eeo">EEO</div></main></body>`,
			sel:  Selectors{Content: []string{"main"}, Noise: []string{"form", ".eeo"}},
			want: "Build ranking systems.",
		},
		{
			name: "falls back to body",
			html: `<body><div>Plain page</div><script>var x = 1</script></body>`,
			sel:  Selectors{Content: []string{"#missing"}},
			want: "Plain page",
		},
		{
			name: "empty match skipped",
			html: `<body><main> </main><article>Posts about CUDA kernels</article></body>`,
			sel:  Selectors{Content: []string{"main", "article"}},
			want: "Posts about CUDA kernels",
		},
		{
			name: "list items stay on their own lines",
			html: `<body><main><ul><li>Go</li><li>PostgreSQL</li></ul>Remote<br>friendly</main></body>`,
			sel:  Selectors{Content: []string{"main"}},
			want: "Go\nPostgreSQL\nRemote\nfriendly",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractMainText(tt.html, tt.sel)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractMainText_PlatformSelectors(t *testing.T) {
	html := `<body>
		<div class="job__description body"><p>Own the feature store.</p></div>
		<div class="application--wrapper"><form>Resume upload</form></div>
		<div id="usa_self_id_section">Voluntary self identification</div>
	</body>`

	got, err := ExtractMainText(html, SelectorsFor(PlatformGreenhouse))
	require.NoError(t, err)
	assert.Equal(t, "Own the feature store.", got)
}
