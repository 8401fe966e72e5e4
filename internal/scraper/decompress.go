package scraper

import (
	"bytes"
	"compress/gzip"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/go-resty/resty/v2"
)

// decompressMiddleware decodes br and gzip bodies in place. The scheduler asks
// for both encodings explicitly, which disables the transport's own gzip
// handling.
func decompressMiddleware(_ *resty.Client, resp *resty.Response) error {
	var reader io.Reader
	switch resp.Header().Get("Content-Encoding") {
	case "br":
		reader = brotli.NewReader(bytes.NewReader(resp.Body()))
	case "gzip":
		// resty may already have inflated it.
		if !bytes.HasPrefix(resp.Body(), []byte{0x1f, 0x8b}) {
			return nil
		}
		zr, err := gzip.NewReader(bytes.NewReader(resp.Body()))
		if err != nil {
			return err
		}
		defer zr.Close()
		reader = zr
	default:
		return nil
	}

	decompressed, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	resp.SetBody(decompressed)
	return nil
}
