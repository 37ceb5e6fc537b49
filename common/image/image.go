// Package image fetches caller-referenced images for adapters that require
// inline bytes instead of urls.
package image

import (
	"bytes"
	"encoding/base64"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"

	"github.com/makehub/llm-gateway/common/config"
)

var dataURLPattern = regexp.MustCompile(`data:image/([^;]+);base64,(.*)`)

// client fetches user-supplied urls; bounded so a slow host cannot stall a
// relay attempt for its full timeout.
var client = &http.Client{Timeout: 30 * time.Second}

// IsImageUrl probes a url and reports whether it serves an image within the
// configured size bound.
func IsImageUrl(url string) (bool, error) {
	resp, err := client.Head(url)
	if err != nil {
		return false, errors.Wrapf(err, "fetch image url %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusMethodNotAllowed {
		// Some hosts reject HEAD.
		resp, err = client.Get(url)
		if err != nil {
			return false, errors.Wrapf(err, "fetch image url %s", url)
		}
		defer resp.Body.Close()
	}
	if resp.StatusCode != http.StatusOK {
		return false, errors.Errorf("fetch image url %s: status %d", url, resp.StatusCode)
	}

	maxSize := int64(config.MaxInlineImageSizeMB) * 1024 * 1024
	if resp.ContentLength > maxSize {
		return false, errors.Errorf("image exceeds %dMB limit: %s", config.MaxInlineImageSizeMB, url)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(contentType, "image/") &&
		!strings.Contains(contentType, "application/octet-stream") {
		return false, errors.Errorf("unexpected content type %s for image url", contentType)
	}
	return true, nil
}

// GetImageFromUrl returns the mime type and base64 payload of an image.
// Data urls decode locally; anything else is fetched.
func GetImageFromUrl(url string) (mimeType string, data string, err error) {
	if matches := dataURLPattern.FindStringSubmatch(url); len(matches) == 3 {
		return "image/" + matches[1], matches[2], nil
	}

	isImage, err := IsImageUrl(url)
	if err != nil {
		return "", "", err
	}
	if !isImage {
		return "", "", errors.Errorf("not an image url: %s", url)
	}

	resp, err := client.Get(url)
	if err != nil {
		return "", "", errors.Wrapf(err, "fetch image url %s", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", errors.Errorf("fetch image url %s: status %d", url, resp.StatusCode)
	}

	maxSize := int64(config.MaxInlineImageSizeMB) * 1024 * 1024
	if resp.ContentLength > maxSize {
		return "", "", errors.Errorf("image exceeds %dMB limit: %s", config.MaxInlineImageSizeMB, url)
	}

	buffer := bytes.NewBuffer(nil)
	if _, err = buffer.ReadFrom(http.MaxBytesReader(nil, resp.Body, maxSize)); err != nil {
		return "", "", errors.Wrap(err, "read image body")
	}
	return resp.Header.Get("Content-Type"), base64.StdEncoding.EncodeToString(buffer.Bytes()), nil
}
