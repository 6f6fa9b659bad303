package prompt

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Image references picture content by exactly one source: a remote URL, a
// local file path, or inline bytes. Inline bytes require an explicit media
// type; for files it is inferred from the extension.
type Image struct {
	URL  string
	Path string
	Data []byte

	MediaType string
}

func ImageFromURL(url string) (*Image, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") && !strings.HasPrefix(url, "data:") {
		return nil, fmt.Errorf("%w: unsupported url %q", ErrInvalidImage, url)
	}

	return &Image{
		URL: url,
	}, nil
}

func ImageFromFile(path string) (*Image, error) {
	mediaType := mime.TypeByExtension(filepath.Ext(path))

	if !strings.HasPrefix(mediaType, "image/") {
		return nil, fmt.Errorf("%w: cannot infer media type for %q", ErrInvalidImage, path)
	}

	return &Image{
		Path: path,

		MediaType: mediaType,
	}, nil
}

func ImageFromData(mediaType string, data []byte) (*Image, error) {
	if mediaType == "" {
		return nil, fmt.Errorf("%w: inline data requires a media type", ErrInvalidImage)
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: inline data must not be empty", ErrInvalidImage)
	}

	return &Image{
		Data: data,

		MediaType: mediaType,
	}, nil
}

// NewImage validates a literal Image value. Exactly one source must be
// populated; anything else is a programmer error, caught here rather than
// at serialization time.
func NewImage(img Image) (*Image, error) {
	sources := 0

	if img.URL != "" {
		sources++
	}

	if img.Path != "" {
		sources++
	}

	if len(img.Data) > 0 {
		sources++
	}

	if sources != 1 {
		return nil, fmt.Errorf("%w: exactly one of url, path or data must be set", ErrInvalidImage)
	}

	if len(img.Data) > 0 && img.MediaType == "" {
		return nil, fmt.Errorf("%w: inline data requires a media type", ErrInvalidImage)
	}

	return &img, nil
}

// Resolve materializes the image as bytes plus media type, fetching or
// reading as the source requires. client may be nil for non-URL sources.
func (i *Image) Resolve(ctx context.Context, client *http.Client) ([]byte, string, error) {
	switch {
	case len(i.Data) > 0:
		return i.Data, i.MediaType, nil

	case i.Path != "":
		data, err := os.ReadFile(i.Path)

		if err != nil {
			return nil, "", err
		}

		return data, i.MediaType, nil

	case strings.HasPrefix(i.URL, "data:"):
		meta, encoded, ok := strings.Cut(strings.TrimPrefix(i.URL, "data:"), ";base64,")

		if !ok {
			return nil, "", fmt.Errorf("%w: malformed data url", ErrInvalidImage)
		}

		data, err := base64.StdEncoding.DecodeString(encoded)

		if err != nil {
			return nil, "", err
		}

		return data, meta, nil

	case i.URL != "":
		if client == nil {
			client = http.DefaultClient
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.URL, nil)

		if err != nil {
			return nil, "", err
		}

		resp, err := client.Do(req)

		if err != nil {
			return nil, "", err
		}

		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, "", fmt.Errorf("fetch %s: %s", i.URL, resp.Status)
		}

		data, err := io.ReadAll(resp.Body)

		if err != nil {
			return nil, "", err
		}

		mediaType := i.MediaType

		if val := resp.Header.Get("Content-Type"); val != "" && mediaType == "" {
			mediaType = val
		}

		if mediaType == "" {
			mediaType = "application/octet-stream"
		}

		return data, mediaType, nil

	default:
		return nil, "", errors.New("image has no source")
	}
}

// DataURL resolves the image and encodes it as a data: URL.
func (i *Image) DataURL(ctx context.Context, client *http.Client) (string, error) {
	if strings.HasPrefix(i.URL, "data:") {
		return i.URL, nil
	}

	data, mediaType, err := i.Resolve(ctx, client)

	if err != nil {
		return "", err
	}

	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
