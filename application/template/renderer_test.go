package template_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-bridge/application/template"
)

func TestGoTemplateEngine_Render(t *testing.T) {
	engine := template.NewGoTemplateEngine()

	t.Run("Successful Resolution", func(t *testing.T) {
		raw := []byte(`module: "{{.vars.module}}"` + "\n" + `regime: cooperative`)

		out, err := engine.Render(raw, map[string]any{"module": "guest.wasm"})
		require.NoError(t, err)
		assert.Contains(t, string(out), `module: "guest.wasm"`)
	})

	t.Run("Missing Key Fails", func(t *testing.T) {
		raw := []byte(`module: "{{.vars.missing}}"`)

		_, err := engine.Render(raw, map[string]any{"module": "guest.wasm"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "map has no entry for key")
	})

	t.Run("Missing Key Allowed When Lenient", func(t *testing.T) {
		lenient := template.NewGoTemplateEngine(template.WithStrict(false))

		out, err := lenient.Render([]byte(`log_level: {{.vars.level}}`), map[string]any{})
		require.NoError(t, err)
		assert.Equal(t, "log_level: <no value>", string(out))
	})

	t.Run("Invalid Template Syntax", func(t *testing.T) {
		_, err := engine.Render([]byte(`module: "{{.vars.module"`), nil)
		require.Error(t, err)
	})
}

func TestGoTemplateEngine_Helpers(t *testing.T) {
	env := map[string]string{"GUEST_DIR": "/srv/guests"}
	engine := template.NewGoTemplateEngine(template.WithEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))

	tests := []struct {
		name    string
		raw     string
		vars    map[string]any
		want    string
		wantErr string
	}{
		{name: "env", raw: `module: {{env "GUEST_DIR"}}/guest.wasm`, want: "module: /srv/guests/guest.wasm"},
		{name: "unset env", raw: `module: {{env "NOPE"}}`, wantErr: "NOPE is not set"},
		{name: "default on empty", raw: `log_level: {{default "info" .vars.level}}`, vars: map[string]any{"level": ""}, want: "log_level: info"},
		{name: "default keeps value", raw: `log_level: {{default "info" .vars.level}}`, vars: map[string]any{"level": "debug"}, want: "log_level: debug"},
		{name: "regime alias", raw: `regime: {{regime "suspend"}}`, want: "regime: cooperative"},
		{name: "unknown regime", raw: `regime: {{regime "threads"}}`, wantErr: "unknown execution regime"},
		{name: "bytes", raw: `max_request_bytes: {{bytes "4MiB"}}`, want: "max_request_bytes: 4194304"},
		{name: "plain bytes", raw: `max_request_bytes: {{bytes "512"}}`, want: "max_request_bytes: 512"},
		{name: "pages round up", raw: `memory_limit_pages: {{pages "100KiB"}}`, want: "memory_limit_pages: 2"},
		{name: "pages exact", raw: `memory_limit_pages: {{pages "16MiB"}}`, want: "memory_limit_pages: 256"},
		{name: "size too large", raw: `{{bytes "8GiB"}}`, wantErr: "exceeds 32-bit memory"},
		{name: "bad size", raw: `{{bytes "lots"}}`, wantErr: "invalid size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := engine.Render([]byte(tt.raw), tt.vars)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(out))
		})
	}
}

func TestGoTemplateEngine_LenientEnv(t *testing.T) {
	engine := template.NewGoTemplateEngine(
		template.WithStrict(false),
		template.WithEnv(func(string) (string, bool) { return "", false }),
	)

	out, err := engine.Render([]byte(`dir: "{{env "GUEST_DIR"}}"`), nil)
	require.NoError(t, err)
	assert.Equal(t, `dir: ""`, string(out))
}

func TestGoTemplateEngine_WithFuncs(t *testing.T) {
	engine := template.NewGoTemplateEngine(template.WithFuncs(map[string]any{
		"regime": func(string) string { return "synchronous" },
	}))

	out, err := engine.Render([]byte(`regime: {{regime "suspend"}}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "regime: synchronous", string(out))
}
