//go:build integration

package integration

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const docRoot = "/usr/share/nginx/html"

// siteFiles is a small copy of the promotional site.
var siteFiles = map[string]string{
	"index.html":          "<!doctype html><title>zyzz</title>",
	"vault.html":          "<!doctype html><title>vault</title>",
	"styles/main.css":     "body{margin:0}",
	"js/main.js":          "console.log('main')",
	"assets/images/a.txt": "not really an image",
}

// startOrigin starts an nginx container serving files and returns its base URL.
func startOrigin(tb testing.TB, files map[string]string) (testcontainers.Container, *url.URL) {
	tb.Helper()

	if os.Getenv("SKIP_DOCKER_TESTS") == "1" {
		tb.Skip("SKIP_DOCKER_TESTS is set")
	}

	dir := tb.TempDir()
	var containerFiles []testcontainers.ContainerFile
	for name, body := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(tb, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(tb, os.WriteFile(path, []byte(body), 0o644))
		containerFiles = append(containerFiles, testcontainers.ContainerFile{
			HostFilePath:      path,
			ContainerFilePath: docRoot + "/" + name,
			FileMode:          0o644,
		})
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "nginx:alpine",
		ExposedPorts: []string{"80/tcp"},
		Files:        containerFiles,
		WaitingFor:   wait.ForHTTP("/").WithPort("80/tcp").WithStatusCodeMatcher(isAnyStatus),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	testcontainers.CleanupContainer(tb, container)
	require.NoError(tb, err, "start nginx container")

	host, err := container.Host(ctx)
	require.NoError(tb, err, "resolve nginx host")
	port, err := container.MappedPort(ctx, "80/tcp")
	require.NoError(tb, err, "resolve nginx port")

	u, err := url.Parse(fmt.Sprintf("http://%s:%s", host, port.Port()))
	require.NoError(tb, err)
	return container, u
}

func isAnyStatus(status int) bool {
	return status > 0
}
