package kiln

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	g "maragu.dev/gomponents"
	h "maragu.dev/gomponents/html"
)

func TestEscape(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"<script>", "&lt;script&gt;"},
		{`a & "b" 'c'`, "a &amp; &quot;b&quot; &#x27;c&#x27;"},
		{"&amp;", "&amp;amp;"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Escape(tt.in))
	}
}

func render(t *testing.T, fn func(kw *Writer)) string {
	t.Helper()
	var buf bytes.Buffer
	kw := NewWriter(&buf)
	fn(kw)
	require.NoError(t, kw.Err())
	return buf.String()
}

func TestWriterValue(t *testing.T) {
	ctx := context.Background()
	comp := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, "<b>c</b>")
		return err
	})

	tests := []struct {
		name string
		v    any
		want string
	}{
		{"string", "<i>", "&lt;i&gt;"},
		{"raw", Raw("<i>"), "<i>"},
		{"int", 42, "42"},
		{"nil", nil, ""},
		{"error", errors.New("a<b"), "a&lt;b"},
		{"component", comp, "<b>c</b>"},
		{"node", h.Span(g.Text("x<y")), "<span>x&lt;y</span>"},
		{"json", JSON(map[string]string{"a": "</script>"}), `{"a":"\u003c/script\u003e"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := render(t, func(kw *Writer) { kw.Value(ctx, tt.v) })
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriterWritef(t *testing.T) {
	ctx := context.Background()
	got := render(t, func(kw *Writer) {
		kw.Writef(ctx, `<p title="%v">100%% %v</p>`, `"q"`, Raw("<em>x</em>"))
	})
	assert.Equal(t, `<p title="&quot;q&quot;">100% <em>x</em></p>`, got)

	got = render(t, func(kw *Writer) { kw.Writef(ctx, "trailing %") })
	assert.Equal(t, "trailing %", got)

	var buf bytes.Buffer
	kw := NewWriter(&buf)
	kw.Writef(ctx, "%v %v", "only one")
	assert.Error(t, kw.Err())
}

type failingWriter struct{ n int }

func (f *failingWriter) Write(p []byte) (int, error) {
	f.n++
	return 0, errors.New("disk full")
}

func TestWriterKeepsFirstError(t *testing.T) {
	fw := &failingWriter{}
	kw := NewWriter(fw)
	kw.Literal("a")
	kw.Literal("b")
	kw.Writef(context.Background(), "%v", "c")
	kw.Component(context.Background(), templ.NopComponent)

	require.EqualError(t, kw.Err(), "disk full")
	assert.Equal(t, 1, fw.n)
}

type article struct{ Headline string }

func (a article) JSONLD() (map[string]any, Raw) {
	return map[string]any{"@context": "https://schema.org", "@type": "Article", "headline": a.Headline}, ""
}

func TestJSONUsesSchema(t *testing.T) {
	got := render(t, func(kw *Writer) { kw.Value(context.Background(), JSON(article{Headline: "Hi"})) })
	assert.Equal(t, `{"@context":"https://schema.org","@type":"Article","headline":"Hi"}`, got)
}

func TestHead(t *testing.T) {
	var buf bytes.Buffer
	err := Head{
		Title:       "Tom & Jerry",
		Description: `A "classic"`,
		Canonical:   "https://example.com/tj",
		Image:       "https://example.com/tj.png",
	}.Render(context.Background(), &buf)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "<title>Tom &amp; Jerry</title>")
	assert.Contains(t, out, `<meta name="description" content="A &#34;classic&#34;">`)
	assert.Contains(t, out, `<link rel="canonical" href="https://example.com/tj">`)
	assert.Contains(t, out, `<meta property="og:type" content="website">`)
	assert.Contains(t, out, `<meta property="og:image" content="https://example.com/tj.png">`)
	assert.Contains(t, out, `<meta name="twitter:card" content="summary_large_image">`)
	assert.NotContains(t, out, "og:site_name")
}

func TestHeadMinimal(t *testing.T) {
	nodes := Head{}.Nodes()
	assert.Len(t, nodes, 2)
}

type signup struct {
	Email string `json:"email"`
}

func signupAction(_ context.Context, in signup) (templ.Component, error) {
	if in.Email == "fail" {
		return nil, errors.New("boom")
	}
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, "<p>"+Escape(in.Email)+"</p>")
		return err
	}), nil
}

func TestActionHandler(t *testing.T) {
	handler := ActionHandler(signupAction)

	tests := []struct {
		name   string
		method string
		body   string
		code   int
		want   string
	}{
		{"ok", http.MethodPost, `{"email":"a@b.c"}`, http.StatusOK, "<p>a@b.c</p>"},
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed, ""},
		{"bad json", http.MethodPost, `{`, http.StatusBadRequest, ""},
		{"user error", http.MethodPost, `{"email":"fail"}`, http.StatusInternalServerError, "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/actions/signup", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			handler(rec, req)

			assert.Equal(t, tt.code, rec.Code)
			if tt.want != "" {
				assert.Contains(t, rec.Body.String(), tt.want)
			}
			if tt.code == http.StatusOK {
				assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestMountActions(t *testing.T) {
	r := chi.NewRouter()
	MountActions(r, ActionRoute{Name: "Signup", Path: "/actions/signup", Handler: ActionHandler(signupAction)})

	req := httptest.NewRequest(http.MethodPost, "/actions/signup", strings.NewReader(`{"email":"x"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<p>x</p>", rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/actions/other", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLiveReloadScript(t *testing.T) {
	s := string(LiveReloadScript(""))
	assert.True(t, strings.HasPrefix(s, "<script>"))
	assert.Contains(t, s, `"/_kiln/reload"`)
	assert.Contains(t, string(LiveReloadScript("/dev/ws")), `"/dev/ws"`)
}

func TestJSONLDScript(t *testing.T) {
	got := JSONLDScript(map[string]any{"@type": "Thing", "name": "</script>"})
	assert.Equal(t, Raw(`<script type="application/ld+json">{"@type":"Thing","name":"\u003c/script\u003e"}</script>`), got)
	assert.Empty(t, JSONLDScript(func() {}))
}

func TestMissingPropsError(t *testing.T) {
	var err error = &MissingPropsError{Component: "Button", Props: []string{"text", "href"}}
	assert.EqualError(t, err, "Button: missing required props: text, href")

	var mpe *MissingPropsError
	require.ErrorAs(t, err, &mpe)
	assert.Equal(t, "Button", mpe.Component)
}
