package pushover

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/newthinker/pushrelay/internal/core"
	"github.com/tidwall/gjson"
)

// fetchSounds lists the sounds available to the application token. Options
// keep the order of the API's "sounds" object. Nothing is cached.
func (p *Pushover) fetchSounds(ctx context.Context, token string) ([]core.Option, error) {
	if token == "" {
		return nil, lookupError(errors.New("api_token is not configured"))
	}

	endpoint := p.baseURL + "/sounds.json?" + url.Values{"token": {token}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, lookupError(fmt.Errorf("failed to create request: %w", redactURL(err)))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, lookupError(fmt.Errorf("request failed: %w", redactURL(err)))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, lookupError(fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, lookupError(apiError(resp.StatusCode, body))
	}

	if !gjson.ValidBytes(body) {
		return nil, lookupError(errors.New("malformed JSON response"))
	}

	sounds := gjson.GetBytes(body, "sounds")
	if !sounds.IsObject() {
		return nil, lookupError(errors.New("response has no sounds object"))
	}

	options := make([]core.Option, 0, 32)
	sounds.ForEach(func(id, name gjson.Result) bool {
		options = append(options, core.Option{ID: id.String(), Name: name.String()})
		return true
	})

	return options, nil
}

func lookupError(cause error) error {
	return core.WrapError(core.ErrRemoteLookup, fmt.Errorf("pushover sounds: %w", cause))
}

// redactURL drops the request URL, which carries the token, from transport errors
func redactURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}
