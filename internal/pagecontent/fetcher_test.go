package pagecontent

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title>Release Notes</title><style>body { color: red }</style></head>
<body>
<nav>Home | About</nav>
<script>console.log("tracking")</script>
<main>
  <h1>Version 2.0</h1>
  <p>This release adds streaming support.</p>
  <ul><li>Faster startup</li></ul>
</main>
<footer>Copyright</footer>
</body>
</html>`

func TestContentExtractsReadableText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, samplePage)
	}))
	defer srv.Close()

	page, err := NewFetcher(srv.URL).Content(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Release Notes", page.Title)
	assert.Equal(t, "html", page.Type)
	assert.Contains(t, page.Text, "Version 2.0")
	assert.Contains(t, page.Text, "streaming support")
	assert.Contains(t, page.Text, "Faster startup")
	assert.NotContains(t, page.Text, "tracking")
	assert.NotContains(t, page.Text, "color: red")
	assert.NotContains(t, page.Text, "Copyright")
}

func TestContentPlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, "just plain text")
	}))
	defer srv.Close()

	page, err := NewFetcher(srv.URL).Content(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "text", page.Type)
	assert.Equal(t, "just plain text", page.Text)
}

func TestContentNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewFetcher(srv.URL).Content(context.Background())
	require.Error(t, err)
}
