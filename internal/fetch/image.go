package fetch

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// previewSelectors are tried in order to find a page's representative image.
var previewSelectors = []struct {
	selector string
	attr     string
}{
	{`meta[property="og:image"]`, "content"},
	{`meta[property="og:image:url"]`, "content"},
	{`meta[name="twitter:image"]`, "content"},
	{`meta[property="twitter:image"]`, "content"},
	{`link[rel="image_src"]`, "href"},
	{`img[src]`, "src"},
}

// Image is a fetched reference image.
type Image struct {
	// SourceURL is where the image bytes came from.
	SourceURL string
	// PageURL is set when the image was resolved from an HTML page.
	PageURL     string
	ContentType string
	Data        []byte
}

// DataURL encodes the image as a base64 data URL.
func (i *Image) DataURL() string {
	return "data:" + i.ContentType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// FetchImage retrieves an image from urlStr. HTML pages are searched for a
// preview image which is then fetched.
func FetchImage(ctx context.Context, urlStr string, opts *Options) (*Image, error) {
	res, err := URL(ctx, urlStr, opts)
	if err != nil {
		return nil, err
	}

	if ct := imageType(res); ct != "" {
		return &Image{SourceURL: res.URL, ContentType: ct, Data: res.Body}, nil
	}

	if !strings.Contains(res.MediaType(), "html") {
		return nil, &Error{URL: urlStr, Message: "URL is neither an image nor an HTML page (" + res.MediaType() + ")"}
	}

	imageURL, err := PreviewImageURL(res.Body, res.URL)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "no image found on page", Cause: err}
	}

	imgRes, err := URL(ctx, imageURL, opts)
	if err != nil {
		return nil, err
	}
	ct := imageType(imgRes)
	if ct == "" {
		return nil, &Error{URL: imageURL, Message: "preview URL did not return an image"}
	}
	return &Image{SourceURL: imgRes.URL, PageURL: res.URL, ContentType: ct, Data: imgRes.Body}, nil
}

// PreviewImageURL returns the absolute URL of the page's preview image.
func PreviewImageURL(html []byte, pageURL string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", err
	}

	for _, p := range previewSelectors {
		var found string
		doc.Find(p.selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			v, ok := s.Attr(p.attr)
			v = strings.TrimSpace(v)
			if !ok || v == "" || strings.HasPrefix(v, "data:") {
				return true
			}
			ref, err := url.Parse(v)
			if err != nil {
				return true
			}
			found = base.ResolveReference(ref).String()
			return false
		})
		if found != "" {
			return found, nil
		}
	}
	return "", errNoPreview
}

var errNoPreview = errors.New("page has no og:image, twitter:image or img element")

// imageType returns the image media type of res, sniffing the body when the
// server did not declare one.
func imageType(res *Result) string {
	mt := res.MediaType()
	if strings.HasPrefix(mt, "image/") {
		return mt
	}
	if mt == "" || mt == "application/octet-stream" {
		if sniffed := http.DetectContentType(res.Body); strings.HasPrefix(sniffed, "image/") {
			return sniffed
		}
	}
	return ""
}
