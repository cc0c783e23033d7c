// Package views renders the server side pages: the tour overview, a tour's
// detail page, the login form and the account page.
package views

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tourhub/tourhub/internal/apperr"
	"github.com/tourhub/tourhub/internal/catalog"
	"github.com/tourhub/tourhub/internal/http/middlewares"
	"github.com/tourhub/tourhub/internal/query"
	"github.com/tourhub/tourhub/internal/repo"
)

// ErrorPage is the template the error middleware renders for page requests.
const ErrorPage = "error.tmpl"

//go:embed templates/*.tmpl
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var funcs = template.FuncMap{
	"firstWord": func(s string) string {
		if f := strings.Fields(s); len(f) > 0 {
			return f[0]
		}
		return s
	},
	"monthYear": func(t time.Time) string { return t.Format("January 2006") },
	"splitParagraphs": func(s string) []string {
		var out []string
		for _, p := range strings.Split(s, "\n") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	},
	"stars": func(rating float64) []bool {
		out := make([]bool, 5)
		for i := range out {
			out[i] = rating >= float64(i+1)
		}
		return out
	},
}

// Templates parses every page; it panics on a broken template since they are
// compiled into the binary.
func Templates() *template.Template {
	return template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.tmpl"))
}

func Static() http.FileSystem {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}

type ToursReader interface {
	ListTours(ctx context.Context, spec query.Spec) ([]catalog.TourView, error)
	GetTourBySlug(ctx context.Context, slug string) (catalog.TourView, error)
}

type Handler struct {
	tours ToursReader
}

func NewHandler(tours ToursReader) *Handler {
	return &Handler{tours: tours}
}

func (h *Handler) Overview(ctx *gin.Context) {
	spec := query.Translate(nil, catalog.TourSchema)
	tours, err := h.tours.ListTours(ctx.Request.Context(), spec)
	if err != nil {
		fail(ctx, err)
		return
	}
	render(ctx, "overview.tmpl", gin.H{"title": "All Tours", "tours": tours})
}

func (h *Handler) Tour(ctx *gin.Context) {
	t, err := h.tours.GetTourBySlug(ctx.Request.Context(), ctx.Param("slug"))
	if errors.Is(err, repo.ErrNotFound) {
		fail(ctx, apperr.New(apperr.NotFound, "There is no tour with that name!"))
		return
	}
	if err != nil {
		fail(ctx, err)
		return
	}
	render(ctx, "tour.tmpl", gin.H{"title": fmt.Sprintf("%s Tour", t.Name), "tour": t})
}

func (h *Handler) Login(ctx *gin.Context) {
	render(ctx, "login.tmpl", gin.H{"title": "Log into your account"})
}

// Account must run behind Protect.
func (h *Handler) Account(ctx *gin.Context) {
	render(ctx, "account.tmpl", gin.H{"title": "Your account"})
}

// render adds the signed in user, if any, to every page.
func render(ctx *gin.Context, name string, data gin.H) {
	if u, ok := middlewares.UserFromContext(ctx); ok {
		data["user"] = u
	}
	ctx.HTML(http.StatusOK, name, data)
}

func fail(ctx *gin.Context, err error) {
	_ = ctx.Error(err)
	ctx.Abort()
}
