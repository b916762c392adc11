package commands

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bartekus/agentready/internal/registry/registrytest"
)

const fakeSpectralScript = `#!/bin/sh
case "$(basename "$2")" in
  *low*)
    cat <<'JSON'
[
  {"code":"operation-operationId","message":"Operation must have an operationId.","path":["paths","/orders","get"],"severity":0,"range":{"start":{"line":6}}},
  {"code":"operation-description","message":"Operation should have a description.","path":["paths","/orders","get"],"severity":1,"range":{"start":{"line":6}}},
  {"code":"info-license","message":"Info object should have a license.","path":["info"],"severity":3,"range":{"start":{"line":1}}}
]
JSON
    exit 1 ;;
  *medium*)
    echo '[{"code":"operation-tags","message":"Operation should have tags.","path":["paths","/orders","get"],"severity":1}]'
    exit 1 ;;
  *broken*)
    echo 'Error running Spectral!' >&2
    exit 2 ;;
  *)
    echo '[]' ;;
esac
`

// workspace is a project root with a config file, a fake linter and a fake
// registry. Tests run with it as the working directory.
type workspace struct {
	dir string
	srv *registrytest.Server
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	for _, k := range []string{
		"AGENTREADY_PROJECT", "AGENTREADY_LOCATION", "AGENTREADY_ENDPOINT",
		"AGENTREADY_SPECTRAL_BIN", "AGENTREADY_LOG_LEVEL", "AGENTREADY_STATE_DIR", "AGENTREADY_TOKEN",
	} {
		t.Setenv(k, "")
	}

	dir := t.TempDir()
	bin := filepath.Join(dir, "bin", "spectral")
	require.NoError(t, os.MkdirAll(filepath.Dir(bin), 0o755))
	require.NoError(t, os.WriteFile(bin, []byte(fakeSpectralScript), 0o755))

	srv := registrytest.New(t)
	srv.Token = "test-token"

	cfg := fmt.Sprintf(`project: demo-project
location: us-central1
endpoint: %s
timeout: 5s
auth:
  mode: static
  token: test-token
lint:
  binary: %s
log_level: error
`, srv.URL, bin)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".agentready.yaml"), []byte(cfg), 0o600))

	t.Chdir(dir)
	return &workspace{dir: dir, srv: srv}
}

func (w *workspace) writeSpec(t *testing.T, name, title, version string) string {
	t.Helper()
	doc := fmt.Sprintf("openapi: 3.0.3\ninfo:\n  title: %s\n  version: %q\npaths: {}\n", title, version)
	path := filepath.Join(w.dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	return name
}

func (w *workspace) versionName(api, version string) string {
	return "projects/demo-project/locations/us-central1/apis/" + api + "/versions/" + version
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
