package oracle

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	pkgerrors "github.com/kazuyaegusa/deskautomata/pkg/errors"
)

// httpPost issues a JSON POST against url with the given headers and decodes
// the response body into out. A non-2xx response is wrapped as an
// *errors.OracleError carrying the status code, which retry.go uses to
// decide retryability (§4.3, §7).
func httpPost(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &pkgerrors.OracleError{Provider: provider, Message: fmt.Sprintf("encoding request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &pkgerrors.OracleError{Provider: provider, Message: fmt.Sprintf("building request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return &pkgerrors.TimeoutError{Operation: "oracle." + provider, Duration: client.Timeout, Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &pkgerrors.OracleError{Provider: provider, StatusCode: resp.StatusCode, Message: fmt.Sprintf("reading response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &pkgerrors.OracleError{Provider: provider, StatusCode: resp.StatusCode, Message: string(respBody), Suggestion: "check API key and rate limits"}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &pkgerrors.OracleError{Provider: provider, Code: errCodeSchema, StatusCode: resp.StatusCode, Message: fmt.Sprintf("decoding response: %v", err)}
	}
	return nil
}

// decodeStructuredJSON unmarshals a model's raw structured-output text into
// dst, wrapping a malformed payload as a schema-tagged OracleError so
// retry.go's single forced extra retry (§4.3) kicks in.
func decodeStructuredJSON(provider, raw string, dst any) error {
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return &pkgerrors.OracleError{Provider: provider, Code: errCodeSchema, Message: fmt.Sprintf("model returned non-conforming JSON: %v", err)}
	}
	return nil
}

// encodeImage base64-encodes the file at path for inline vision payloads.
func encodeImage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 60 * time.Second}
}
