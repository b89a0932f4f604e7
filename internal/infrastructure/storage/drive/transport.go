package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

func (c *Client) getJSON(ctx context.Context, token, operation, endpoint string, out any) error {
	_, err := c.do(ctx, token, operation, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	}, out)
	return err
}

func (c *Client) sendJSON(ctx context.Context, token, operation, method, endpoint string, payload any, out any) error {
	_, err := c.sendJSONWithHeaders(ctx, token, operation, method, endpoint, payload, nil, out)
	return err
}

func (c *Client) sendJSONWithHeaders(
	ctx context.Context,
	token, operation, method, endpoint string,
	payload any,
	headers http.Header,
	out any,
) (http.Header, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", operation, err)
	}
	return c.do(ctx, token, operation, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
		for key, values := range headers {
			for _, v := range values {
				req.Header.Add(key, v)
			}
		}
		return req, nil
	}, out)
}

func (c *Client) sendBytes(ctx context.Context, token, operation, method, endpoint, contentType string, content []byte, out any) error {
	_, err := c.do(ctx, token, operation, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(content))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	}, out)
	return err
}

// do issues one authenticated request through the resilience executor. out
// may be nil, a *[]byte for raw content, or a JSON target.
func (c *Client) do(
	ctx context.Context,
	token, operation string,
	newRequest func(context.Context) (*http.Request, error),
	out any,
) (http.Header, error) {
	var respHeaders http.Header
	call := func(ctx context.Context) error {
		req, err := newRequest(ctx)
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("drive %s request: %w", operation, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return newHTTPStatusError(operation, resp)
		}
		respHeaders = resp.Header
		return decodeBody(resp.Body, operation, out)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "drive."+operation, call, classifyDriveError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, mapDriveError(operation, err)
	}
	return respHeaders, nil
}

func decodeBody(body io.Reader, operation string, out any) error {
	switch target := out.(type) {
	case nil:
		_, _ = io.Copy(io.Discard, body)
		return nil
	case *[]byte:
		raw, err := io.ReadAll(body)
		if err != nil {
			return fmt.Errorf("read %s response: %w", operation, err)
		}
		*target = raw
		return nil
	default:
		if err := json.NewDecoder(body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
		return nil
	}
}
