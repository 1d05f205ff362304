package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/creativeprojects/mailstate/lib"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const DefaultTimeout = 30 * time.Second

// Request is what a Transport sends to the server
type Request struct {
	ID       uint64          `json:"id"`
	Instance string          `json:"instance,omitempty"`
	Method   string          `json:"method"`
	Params   json.RawMessage `json:"params,omitempty"`
	// Token is the session token; transports decide how to send it.
	Token string `json:"-"`
}

// Response is the answer of a server over the wire: either a result or an error message
type Response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Transport sends a request and waits for the answer. An *ApplicationError means the
// server rejected the request; any other error is a transport failure.
type Transport interface {
	Do(ctx context.Context, request Request) (json.RawMessage, error)
}

// TransportFunc adapts a function to the Transport interface
type TransportFunc func(ctx context.Context, request Request) (json.RawMessage, error)

func (f TransportFunc) Do(ctx context.Context, request Request) (json.RawMessage, error) {
	return f(ctx, request)
}

// TokenProvider returns the current session token
type TokenProvider interface {
	Token() (string, error)
}

// Caller is the view of the gateway used by the stores
type Caller interface {
	Call(method string, params any, callback func(Outcome)) uint64
}

type Gateway struct {
	transport   Transport
	log         lib.Logger
	timeout     time.Duration
	tokens      TokenProvider
	limiter     *rate.Limiter
	synchronous bool
	instance    string
	lastID      atomic.Uint64
	ctx         context.Context
	cancel      context.CancelFunc
}

type Option func(*Gateway)

func WithLogger(logger lib.Logger) Option {
	return func(g *Gateway) {
		g.log = lib.OrNoLog(logger)
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(g *Gateway) {
		if timeout > 0 {
			g.timeout = timeout
		}
	}
}

func WithTokenProvider(tokens TokenProvider) Option {
	return func(g *Gateway) {
		g.tokens = tokens
	}
}

// WithRateLimit throttles the calls sent to the transport (calls per second)
func WithRateLimit(callsPerSecond float64, burst int) Option {
	return func(g *Gateway) {
		if callsPerSecond <= 0 {
			g.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(callsPerSecond), burst)
	}
}

// Synchronous runs the transport and the callback before Call returns
func Synchronous() Option {
	return func(g *Gateway) {
		g.synchronous = true
	}
}

func New(transport Transport, options ...Option) *Gateway {
	ctx, cancel := context.WithCancel(context.Background())
	g := &Gateway{
		transport: transport,
		log:       &lib.NoLog{},
		timeout:   DefaultTimeout,
		instance:  uuid.NewString(),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, option := range options {
		option(g)
	}
	return g
}

// Instance identifies this gateway in every request it sends
func (g *Gateway) Instance() string {
	return g.instance
}

// Close fails every call still waiting on the transport
func (g *Gateway) Close() {
	g.cancel()
}

// Call sends method with its params and delivers the outcome to callback.
// It returns the call ID, which only grows. Completion order is not guaranteed.
func (g *Gateway) Call(method string, params any, callback func(Outcome)) uint64 {
	id := g.lastID.Add(1)
	if g.synchronous {
		callback(g.do(id, method, params))
		return id
	}
	go func() {
		callback(g.do(id, method, params))
	}()
	return id
}

func (g *Gateway) do(id uint64, method string, params any) Outcome {
	outcome := Outcome{
		CallID: id,
		Method: method,
	}
	request, err := g.newRequest(id, method, params)
	if err != nil {
		return fail(outcome, err)
	}

	ctx, cancel := context.WithTimeout(g.ctx, g.timeout)
	defer cancel()

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return fail(outcome, fmt.Errorf("rate limiter: %w", err))
		}
	}
	start := time.Now()
	result, err := g.transport.Do(ctx, request)
	if err != nil {
		if appErr, ok := IsApplicationError(err); ok {
			if appErr.Method == "" {
				appErr.Method = method
			}
			g.log.Printf("call #%d %s rejected in %s: %s", id, method, time.Since(start), appErr.Message)
			outcome.Kind = Rejected
			outcome.Err = appErr
			return outcome
		}
		g.log.Printf("call #%d %s failed in %s: %s", id, method, time.Since(start), err)
		return fail(outcome, err)
	}
	g.log.Printf("call #%d %s succeeded in %s", id, method, time.Since(start))
	outcome.Kind = Success
	outcome.Result = result
	return outcome
}

func (g *Gateway) newRequest(id uint64, method string, params any) (Request, error) {
	request := Request{
		ID:       id,
		Instance: g.instance,
		Method:   method,
	}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return request, fmt.Errorf("cannot encode parameters of %s: %w", method, err)
		}
		request.Params = data
	}
	if g.tokens != nil {
		token, err := g.tokens.Token()
		if err != nil {
			return request, fmt.Errorf("cannot get session token: %w", err)
		}
		request.Token = token
	}
	return request, nil
}

func fail(outcome Outcome, err error) Outcome {
	outcome.Kind = Failed
	outcome.Err = err
	return outcome
}
