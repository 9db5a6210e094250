package inference

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// DefaultDownloadURL is the Google Drive direct-download endpoint; %s is the file ID.
const DefaultDownloadURL = "https://drive.google.com/uc?export=download&confirm=t&id=%s"

// Fetch downloads the file identified by fileID to dest unless dest already exists.
// It reports whether a download happened. The file is written to a temporary
// name first so a failed download never leaves a partial artifact behind.
func Fetch(ctx context.Context, client *http.Client, urlTemplate, fileID, dest string) (bool, error) {
	if _, err := os.Stat(dest); err == nil {
		return false, nil
	}
	if strings.TrimSpace(fileID) == "" {
		return false, fmt.Errorf("%s is missing and no file id is configured", dest)
	}
	if urlTemplate == "" {
		urlTemplate = DefaultDownloadURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	src := fmt.Sprintf(urlTemplate, url.QueryEscape(fileID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := client.Do(req) //nolint:gosec // URL comes from operator config
	if err != nil {
		return false, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("download failed: %s", resp.Status)
	}
	// Drive answers quota and permission problems with an HTML page.
	if ct := resp.Header.Get("Content-Type"); strings.HasPrefix(ct, "text/html") {
		return false, fmt.Errorf("download failed: got an HTML page instead of the file")
	}

	if dir := filepath.Dir(dest); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return false, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return false, fmt.Errorf("download interrupted: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return false, fmt.Errorf("failed to move download into place: %w", err)
	}
	return true, nil
}
