// Package remote sends the gateway requests to a mailstate server over HTTP.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/creativeprojects/mailstate/gateway"
	"github.com/creativeprojects/mailstate/lib"
	"github.com/valyala/fasthttp"
)

const (
	RPCPath        = "/rpc"
	DefaultTimeout = 30 * time.Second
	contentType    = "application/json"
)

type Config struct {
	ServerURL string
	// Timeout applies when the request context has no deadline
	Timeout     time.Duration
	DebugLogger lib.Logger
}

// Client implements gateway.Transport
type Client struct {
	endpoint string
	timeout  time.Duration
	client   *fasthttp.Client
	log      lib.Logger
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.ServerURL == "" {
		return nil, errors.New("missing server URL")
	}
	serverURL := cfg.ServerURL
	if !strings.Contains(serverURL, "://") {
		serverURL = "http://" + serverURL
	}
	endpoint, err := url.JoinPath(serverURL, RPCPath)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", cfg.ServerURL, err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint: endpoint,
		timeout:  timeout,
		client: &fasthttp.Client{
			Name:                "mailstate",
			MaxIdleConnDuration: time.Minute,
		},
		log: lib.OrNoLog(cfg.DebugLogger),
	}, nil
}

// Endpoint is the URL receiving the requests
func (c *Client) Endpoint() string {
	return c.endpoint
}

func (c *Client) Close() {
	c.client.CloseIdleConnections()
}

func (c *Client) Do(ctx context.Context, request gateway.Request) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("cannot encode request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.endpoint)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType(contentType)
	if request.Token != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+request.Token)
	}
	req.SetBody(body)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}
	c.log.Printf("POST %s #%d %s", c.endpoint, request.ID, request.Method)
	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("request #%d %s: %w", request.ID, request.Method, err)
	}
	return c.decode(request, resp)
}

func (c *Client) decode(request gateway.Request, resp *fasthttp.Response) (json.RawMessage, error) {
	status := resp.StatusCode()
	response := gateway.Response{}
	if err := json.Unmarshal(resp.Body(), &response); err != nil {
		return nil, fmt.Errorf("request #%d %s: HTTP %d: invalid response: %w", request.ID, request.Method, status, err)
	}
	switch {
	case status == fasthttp.StatusUnauthorized:
		return nil, &gateway.ApplicationError{Method: request.Method, Message: response.Error, Err: lib.ErrUnauthorized}
	case status != fasthttp.StatusOK:
		return nil, fmt.Errorf("request #%d %s: HTTP %d: %s", request.ID, request.Method, status, response.Error)
	case response.Error != "":
		return nil, &gateway.ApplicationError{Method: request.Method, Message: response.Error}
	}
	return response.Result, nil
}
