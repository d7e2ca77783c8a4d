package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/irfandhamhudi/APi-FocusFlow/logging"
)

// HTTPFileStore talks to the external file storage service. Uploads POST a
// multipart body to {base}/files and get back the public URL plus the
// storage handle used for deletion. All calls run through a circuit breaker.
type HTTPFileStore struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

func NewHTTPFileStore(baseURL string, httpClient *http.Client, breaker *gobreaker.CircuitBreaker) *HTTPFileStore {
	return &HTTPFileStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		breaker:    breaker,
	}
}

type uploadResponse struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

func (s *HTTPFileStore) Upload(ctx context.Context, filename, contentType string, data io.Reader) (string, string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", "", fmt.Errorf("failed to build upload body: %v", err)
	}
	if _, err := io.Copy(part, data); err != nil {
		return "", "", fmt.Errorf("failed to read upload data: %v", err)
	}
	if err := writer.Close(); err != nil {
		return "", "", fmt.Errorf("failed to finish upload body: %v", err)
	}

	result, err := s.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/files", &body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			return nil, fmt.Errorf("storage service returned status %d", resp.StatusCode)
		}

		var uploaded uploadResponse
		if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
			return nil, fmt.Errorf("failed to decode storage response: %v", err)
		}
		return uploaded, nil
	})
	if err != nil {
		logging.Logger.Errorf("Event ID: FILE_UPLOAD_FAILED, Description: Upload of '%s' failed: %v", filename, err)
		return "", "", err
	}

	uploaded := result.(uploadResponse)
	return uploaded.URL, uploaded.PublicID, nil
}

func (s *HTTPFileStore) Delete(ctx context.Context, publicID string) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.baseURL+"/files/"+publicID, nil)
		if err != nil {
			return nil, err
		}
		resp, err := s.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
			return nil, fmt.Errorf("storage service returned status %d", resp.StatusCode)
		}
		return nil, nil
	})
	return err
}

// Fetch streams a stored file back for download. The caller owns the body.
func (s *HTTPFileStore) Fetch(ctx context.Context, url string) (io.ReadCloser, string, int64, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := s.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("storage service returned status %d", resp.StatusCode)
		}
		return resp, nil
	})
	if err != nil {
		return nil, "", 0, err
	}

	resp := result.(*http.Response)
	return resp.Body, resp.Header.Get("Content-Type"), resp.ContentLength, nil
}
