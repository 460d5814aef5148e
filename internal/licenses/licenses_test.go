package licenses

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func spdxServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		switch r.URL.Path {
		case "/text/MIT.txt":
			_, _ = io.WriteString(w, "MIT License\n")
		case "/text/Apache-2.0.txt":
			_, _ = io.WriteString(w, "Apache License\nVersion 2.0\n")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestIdentifiers(t *testing.T) {
	got := Identifiers([]string{
		"MIT",
		"(Apache-2.0 OR MIT)",
		"GPL-2.0+ WITH Classpath-exception-2.0",
		"LicenseRef-Proprietary AND BSD-3-Clause",
	})
	assert.Equal(t, []string{"MIT", "Apache-2.0", "GPL-2.0", "Classpath-exception-2.0", "BSD-3-Clause"}, got)
}

func TestSPDXFetcher_Download(t *testing.T) {
	var hits int32
	srv := spdxServer(t, &hits)
	root := t.TempDir()

	f := NewSPDXFetcher(srv.URL+"/text/", quietLogger())
	require.NoError(t, f.Download(context.Background(), root, []string{"MIT", "Apache-2.0", "MIT"}))

	b, err := os.ReadFile(filepath.Join(root, Dir, "MIT.txt"))
	require.NoError(t, err)
	assert.Equal(t, "MIT License\n", string(b))
	assert.FileExists(t, filepath.Join(root, Dir, "Apache-2.0.txt"))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))

	require.NoError(t, f.Download(context.Background(), root, []string{"MIT"}))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits), "existing texts are not fetched again")
}

func TestSPDXFetcher_UnknownLicenseDoesNotStopOthers(t *testing.T) {
	var hits int32
	srv := spdxServer(t, &hits)
	root := t.TempDir()

	f := NewSPDXFetcher(srv.URL+"/text", quietLogger())
	err := f.Download(context.Background(), root, []string{"Not-A-License", "MIT"})
	require.ErrorIs(t, err, ErrUnknownLicense)
	assert.FileExists(t, filepath.Join(root, Dir, "MIT.txt"))
	assert.NoFileExists(t, filepath.Join(root, Dir, "Not-A-License.txt"))
}

func TestAuto_FallsBackToSPDX(t *testing.T) {
	var hits int32
	srv := spdxServer(t, &hits)
	root := t.TempDir()
	log := quietLogger()

	a := &Auto{
		Reuse: &ReuseTool{Path: filepath.Join(t.TempDir(), "no-such-reuse"), Log: log},
		SPDX:  NewSPDXFetcher(srv.URL+"/text", log),
		Log:   log,
	}
	require.NoError(t, a.Download(context.Background(), root, []string{"MIT"}))
	assert.FileExists(t, filepath.Join(root, Dir, "MIT.txt"))
}

func TestReuseTool_RunsInRepository(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stub")
	}
	bin := filepath.Join(t.TempDir(), "reuse")
	script := "#!/bin/sh\n[ \"$1 $2\" = \"download --all\" ] || exit 3\nmkdir -p LICENSES && echo text > LICENSES/MIT.txt\necho 'Successfully downloaded LICENSES/MIT.txt.'\n"
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))

	root := t.TempDir()
	tool := &ReuseTool{Path: bin, Log: quietLogger()}
	require.True(t, tool.Available())
	require.NoError(t, tool.Download(context.Background(), root, nil))
	assert.FileExists(t, filepath.Join(root, Dir, "MIT.txt"))
}

func TestReuseTool_Failure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stub")
	}
	bin := filepath.Join(t.TempDir(), "reuse")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\necho nope >&2\nexit 1\n"), 0o755))

	tool := &ReuseTool{Path: bin, Log: quietLogger()}
	err := tool.Download(context.Background(), t.TempDir(), nil)
	assert.ErrorContains(t, err, "reuse download")
}
