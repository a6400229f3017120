package installer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	toolhttp "github.com/willibrandon/pytoolchain/http"
)

// download fetches url into a uniquely named file under dir and returns
// its path. The partial file is removed on failure.
func (i *Installer) download(ctx context.Context, url, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := i.client.DoWithRetry(ctx, req)
	if err != nil {
		return "", err
	}
	if err := toolhttp.CheckStatus(resp); err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	path := filepath.Join(dir, uuid.NewString()+archiveExt(url))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create download file: %w", err)
	}

	n, err := io.Copy(f, resp.Body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	i.logger.DebugContext(ctx, "Downloaded {Bytes} bytes from {URL}", n, url)
	return path, nil
}
