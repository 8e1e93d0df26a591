package ports

// TemplateEngine renders configuration templates.
type TemplateEngine interface {
	// Render resolves the placeholders in raw against vars, available to the
	// template as {{.vars.key}}.
	Render(raw []byte, vars map[string]any) ([]byte, error)
}
