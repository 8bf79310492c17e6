package frontend

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/hrygo/orchestra/internal/profile"
	"github.com/hrygo/orchestra/spell"
)

type FrontendService struct {
	Profile *profile.Profile
	Catalog *spell.Catalog

	once sync.Once
	page []byte
	err  error
}

func NewFrontendService(profile *profile.Profile, catalog *spell.Catalog) *FrontendService {
	return &FrontendService{
		Profile: profile,
		Catalog: catalog,
	}
}

func (s *FrontendService) Serve(_ context.Context, e *echo.Echo) {
	e.GET("/", s.landing)
}

func (s *FrontendService) landing(c echo.Context) error {
	s.once.Do(func() {
		s.page, s.err = s.render()
	})
	if s.err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to render landing page")
	}
	c.Response().Header().Set("X-Content-Type-Options", "nosniff")
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	return c.HTMLBlob(http.StatusOK, s.page)
}

// render converts the landing Markdown, including the spell table, to HTML.
func (s *FrontendService) render() ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var body bytes.Buffer
	if err := md.Convert([]byte(s.markdown()), &body); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	out.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>Orchestra</title>\n")
	out.WriteString("<style>" + pageStyle + "</style>\n</head>\n<body>\n")
	out.Write(body.Bytes())
	out.WriteString("</body>\n</html>\n")
	return out.Bytes(), nil
}

func (s *FrontendService) markdown() string {
	var b strings.Builder
	b.WriteString("# 🎻 Orchestra 🪄\n\n")
	b.WriteString("> Orchestrate life with your voice 🗣️✨\n\n")
	if s.Profile != nil && s.Profile.Version != "" {
		fmt.Fprintf(&b, "Version `%s`\n\n", s.Profile.Version)
	}

	b.WriteString("## 🚀 API Endpoints\n\n")
	b.WriteString("| Method | Path | Description |\n|---|---|---|\n")
	for _, ep := range [][3]string{
		{"POST", "/api/v1/workout", "Trigger workout note automations (running, cycling, mobility, stairclimbing, gym)"},
		{"POST", "/api/v1/daily-note", "Create today's or tomorrow's daily note"},
		{"POST", "/api/v1/studio", "Launch FL Studio or open the drum session"},
		{"POST", "/api/v1/voice-command", "Process natural language voice commands"},
		{"GET", "/api/v1/automations", "List all available automation endpoints"},
		{"GET", "/api/v1/spells", "List the spell catalog"},
		{"GET", "/api/v1/health", "Health check"},
		{"GET", "/metrics", "Prometheus metrics"},
	} {
		fmt.Fprintf(&b, "| %s | `%s` | %s |\n", ep[0], ep[1], ep[2])
	}

	b.WriteString("\n## 📖 Spell Book\n\n")
	if s.Catalog != nil {
		b.WriteString(s.Catalog.Markdown())
	}
	return b.String()
}

const pageStyle = `
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
  max-width: 860px; margin: 0 auto; padding: 2rem; background: #16213e; color: #f5f5f5; }
h1 { text-align: center; font-size: 2.6rem; }
blockquote { text-align: center; opacity: 0.8; border: none; }
table { width: 100%; border-collapse: collapse; margin: 1rem 0; }
th, td { text-align: left; padding: 0.5rem; border-bottom: 1px solid rgba(255,255,255,0.15); }
code { color: #4ecdc4; }
`
