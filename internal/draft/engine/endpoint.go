package engine

import (
	"context"
	"net/url"
	"strings"

	errx "github.com/Chative-core-poc-v1/draftflow/internal/core/error"
)

// Action is an operation with an endpoint template.
type Action string

const (
	ActionCreate       Action = "create"
	ActionUpdate       Action = "update"
	ActionPatch        Action = "patch"
	ActionDelete       Action = "delete"
	ActionAutoComplete Action = "autoComplete"
)

// EndpointParams are the values a template can depend on.
type EndpointParams struct {
	Phone      string
	FarmID     string
	BusinessID string
	RecordID   string
}

// Template is a literal endpoint path or a function of EndpointParams.
// Literal paths may carry {phone}, {farmId}, {businessId} and {recordId}
// placeholders.
type Template struct {
	path string
	fn   func(EndpointParams) string
}

// Path is a literal template.
func Path(p string) Template { return Template{path: p} }

// PathFunc is a computed template.
func PathFunc(f func(EndpointParams) string) Template { return Template{fn: f} }

// IsZero reports whether the template was never configured.
func (t Template) IsZero() bool { return t.fn == nil && t.path == "" }

func (t Template) needsScope() bool {
	if t.fn != nil {
		return true
	}
	return strings.Contains(t.path, "{farmId}") || strings.Contains(t.path, "{businessId}")
}

func (t Template) render(p EndpointParams) string {
	if t.fn != nil {
		return t.fn(p)
	}
	if !strings.Contains(t.path, "{") {
		return t.path
	}
	return strings.NewReplacer(
		"{phone}", url.PathEscape(p.Phone),
		"{farmId}", url.PathEscape(p.FarmID),
		"{businessId}", url.PathEscape(p.BusinessID),
		"{recordId}", url.PathEscape(p.RecordID),
	).Replace(t.path)
}

// Endpoints maps actions to templates.
type Endpoints map[Action]Template

// NormalizePath ensures a single leading slash, collapses repeated slashes
// and strips the trailing slash. The root path normalizes to "".
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	var b strings.Builder
	b.Grow(len(p) + 1)
	b.WriteByte('/')
	prevSlash := true
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}
	return strings.TrimSuffix(b.String(), "/")
}

// lookup returns the template for action. Patch falls back to update.
func (e Endpoints) lookup(a Action) (Template, bool) {
	if t, ok := e[a]; ok && !t.IsZero() {
		return t, true
	}
	if a == ActionPatch {
		return e.lookup(ActionUpdate)
	}
	return Template{}, false
}

// ResolveEndpoint builds the absolute URL of action for params. Function
// templates get the farm and business of params.Phone unless supplied. A
// missing template is a configuration error.
func (s *Service[D, P, R, U]) ResolveEndpoint(ctx context.Context, action Action, params EndpointParams) (string, error) {
	tpl, ok := s.flow.Endpoints().lookup(action)
	if !ok {
		return "", errx.NewConfigError(s.flow.Type(), "no endpoint configured for action %q", action)
	}
	return s.resolveTemplate(ctx, tpl, params)
}

func (s *Service[D, P, R, U]) resolveTemplate(ctx context.Context, tpl Template, params EndpointParams) (string, error) {
	if tpl.IsZero() {
		return "", errx.NewConfigError(s.flow.Type(), "empty endpoint template")
	}
	if tpl.needsScope() && (params.FarmID == "" || params.BusinessID == "") {
		scope, err := s.resolveScope(ctx, params.Phone, params.FarmID)
		if err != nil {
			return "", err
		}
		params.FarmID = scope.FarmID
		if params.BusinessID == "" {
			params.BusinessID = scope.BusinessID
		}
	}
	return s.baseURL + NormalizePath(s.flow.ServicePrefix()) + NormalizePath(tpl.render(params)), nil
}
