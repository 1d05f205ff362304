// Package server exposes a gateway.Transport (usually a storage.Dispatcher) over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"time"

	"github.com/creativeprojects/mailstate/auth"
	"github.com/creativeprojects/mailstate/gateway"
	"github.com/creativeprojects/mailstate/lib"
	"github.com/creativeprojects/mailstate/remote"
	"github.com/valyala/fasthttp"
)

const bearer = "Bearer "

type Config struct {
	// Secret enables the token verification when not empty
	Secret         string
	RequestTimeout time.Duration
	DebugLogger    lib.Logger
}

type Server struct {
	handler gateway.Transport
	secret  string
	timeout time.Duration
	log     lib.Logger
	http    *fasthttp.Server
}

func New(handler gateway.Transport, cfg Config) *Server {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = gateway.DefaultTimeout
	}
	s := &Server{
		handler: handler,
		secret:  cfg.Secret,
		timeout: timeout,
		log:     lib.OrNoLog(cfg.DebugLogger),
	}
	s.http = &fasthttp.Server{
		Name:    "mailstate",
		Handler: s.handle,
	}
	return s
}

func (s *Server) Serve(listener net.Listener) error {
	s.log.Printf("listening on %s", listener.Addr().String())
	return s.http.Serve(listener)
}

func (s *Server) ListenAndServe(address string) error {
	s.log.Printf("listening on %s", address)
	return s.http.ListenAndServe(address)
}

func (s *Server) Shutdown() error {
	return s.http.Shutdown()
}

func (s *Server) handle(ctx *fasthttp.RequestCtx) {
	if string(ctx.Path()) != remote.RPCPath {
		s.reply(ctx, fasthttp.StatusNotFound, gateway.Response{Error: "not found"})
		return
	}
	if !ctx.IsPost() {
		ctx.Response.Header.Set(fasthttp.HeaderAllow, fasthttp.MethodPost)
		s.reply(ctx, fasthttp.StatusMethodNotAllowed, gateway.Response{Error: "method not allowed"})
		return
	}
	request := gateway.Request{}
	if err := json.Unmarshal(ctx.PostBody(), &request); err != nil {
		s.reply(ctx, fasthttp.StatusBadRequest, gateway.Response{Error: "invalid request: " + err.Error()})
		return
	}
	if s.secret != "" {
		if err := s.authorize(ctx); err != nil {
			s.log.Printf("request #%d %s: %v", request.ID, request.Method, err)
			s.reply(ctx, fasthttp.StatusUnauthorized, gateway.Response{ID: request.ID, Error: err.Error()})
			return
		}
	}

	callCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	result, err := s.handler.Do(callCtx, request)
	if err != nil {
		if appErr, ok := gateway.IsApplicationError(err); ok {
			s.reply(ctx, fasthttp.StatusOK, gateway.Response{ID: request.ID, Error: appErr.Message})
			return
		}
		s.log.Printf("request #%d %s failed: %v", request.ID, request.Method, err)
		s.reply(ctx, fasthttp.StatusInternalServerError, gateway.Response{ID: request.ID, Error: err.Error()})
		return
	}
	s.reply(ctx, fasthttp.StatusOK, gateway.Response{ID: request.ID, Result: result})
}

func (s *Server) authorize(ctx *fasthttp.RequestCtx) error {
	header := ctx.Request.Header.Peek(fasthttp.HeaderAuthorization)
	if !bytes.HasPrefix(header, []byte(bearer)) {
		return lib.ErrUnauthorized
	}
	claims, err := auth.Verify(s.secret, string(header[len(bearer):]))
	if err != nil {
		if auth.IsExpired(err) {
			return errors.New("token expired")
		}
		return err
	}
	s.log.Printf("authorized %q", claims.Username)
	return nil
}

func (s *Server) reply(ctx *fasthttp.RequestCtx, status int, response gateway.Response) {
	body, err := json.Marshal(response)
	if err != nil {
		ctx.Error(err.Error(), fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}
