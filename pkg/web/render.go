package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/platinummonkey/orgportal/pkg/audit"
	"github.com/platinummonkey/orgportal/pkg/orgs"
	"github.com/platinummonkey/orgportal/pkg/rbac"
	"github.com/platinummonkey/orgportal/pkg/session"
	"github.com/platinummonkey/orgportal/pkg/users"
)

//go:embed templates/*.html
var templateFS embed.FS

// shared templates parsed into every page
var baseTemplates = []string{"templates/layout.html", "templates/org_nav.html"}

// pageData is the model handed to every page template
type pageData struct {
	Title       string
	User        *session.User
	Org         *orgs.Organization
	Role        rbac.Role
	Permissions []rbac.Permission
	Orgs        []*orgs.UserOrganization
	Members     []*orgs.Member
	OwnerCount  int
	AdminCount  int
	Events      []*audit.Event
	Profile     *users.Profile
	Access      []permissionAccess
}

// permissionAccess is one row of a demo page's access list
type permissionAccess struct {
	Permission rbac.Permission
	Granted    bool
}

// renderer holds one parsed template set per page
type renderer struct {
	pages map[string]*template.Template
}

func newRenderer(perms *rbac.PermissionMap) (*renderer, error) {
	funcs := perms.FuncMap()
	funcs["initial"] = initial

	base, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, baseTemplates...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}

	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	r := &renderer{pages: make(map[string]*template.Template)}
	for _, file := range files {
		if isBaseTemplate(file) {
			continue
		}
		t, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templateFS, file); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", file, err)
		}
		r.pages[strings.TrimSuffix(path.Base(file), ".html")] = t
	}
	return r, nil
}

func isBaseTemplate(file string) bool {
	for _, b := range baseTemplates {
		if b == file {
			return true
		}
	}
	return false
}

// render executes page into a buffer first so a template error never
// produces a half-written 200 response.
func (r *renderer) render(w http.ResponseWriter, page string, data *pageData) error {
	t, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		return fmt.Errorf("failed to render %s: %w", page, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := buf.WriteTo(w)
	return err
}

// initial returns the upper-cased first letter of name
func initial(name string) string {
	r, _ := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return ""
	}
	return string(unicode.ToUpper(r))
}
