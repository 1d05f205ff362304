// Package view compiles named HTML templates on demand, together with every template they
// reference, and renders them.
package view

import (
	"context"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"sync"
	"text/template/parse"

	"github.com/creativeprojects/mailstate/event"
	"github.com/creativeprojects/mailstate/lib"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Channels published by a Resolver
const (
	Compiled  = "compiled"
	Completed = "completed"
)

// Rendered is the payload of the Completed channel
type Rendered struct {
	Name   string
	Output string
}

type compiled struct {
	tmpl *template.Template
	deps []string
}

// Resolver compiles each template once for its lifetime. A template is rendered only
// after every template it needs, directly or not, is compiled.
type Resolver struct {
	source Source
	hub    *event.Hub
	log    lib.Logger
	funcs  template.FuncMap
	group  singleflight.Group
	mu     sync.RWMutex
	cache  map[string]*compiled
	linked map[string]*template.Template
}

type Option func(*Resolver)

func WithLogger(logger lib.Logger) Option {
	return func(r *Resolver) {
		r.log = lib.OrNoLog(logger)
	}
}

// WithFuncs adds functions to the defaults
func WithFuncs(funcs template.FuncMap) Option {
	return func(r *Resolver) {
		for name, fn := range funcs {
			r.funcs[name] = fn
		}
	}
}

func NewResolver(source Source, options ...Option) (*Resolver, error) {
	r := &Resolver{
		source: source,
		hub:    event.NewHub(),
		log:    &lib.NoLog{},
		funcs:  DefaultFuncs(),
		cache:  make(map[string]*compiled),
		linked: make(map[string]*template.Template),
	}
	for _, option := range options {
		option(r)
	}
	if err := r.hub.DeclareChannel(Compiled, Completed); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Resolver) Hub() *event.Hub {
	return r.hub
}

// IsCompiled returns true once the template has been compiled
func (r *Resolver) IsCompiled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.cache[name]
	return ok
}

// Fill renders the template with data and publishes the result on the Completed channel.
func (r *Resolver) Fill(ctx context.Context, name string, data any) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: template name", lib.ErrMissingArgument)
	}
	tmpl, err := r.link(ctx, name)
	if err != nil {
		return "", err
	}
	builder := &strings.Builder{}
	if err := tmpl.Execute(builder, data); err != nil {
		return "", fmt.Errorf("cannot render template %q: %w", name, err)
	}
	output := builder.String()
	r.hub.MustPublish(Completed, Rendered{Name: name, Output: output})
	return output, nil
}

// link returns a template set holding name and every template it references
func (r *Resolver) link(ctx context.Context, name string) (*template.Template, error) {
	r.mu.RLock()
	tmpl, ok := r.linked[name]
	r.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	closure, err := r.resolve(ctx, name)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if tmpl, ok := r.linked[name]; ok {
		return tmpl, nil
	}
	root, err := r.cache[name].tmpl.Clone()
	if err != nil {
		return nil, fmt.Errorf("cannot link template %q: %w", name, err)
	}
	for _, dependency := range closure {
		for _, t := range r.cache[dependency].tmpl.Templates() {
			if t.Tree == nil || root.Lookup(t.Name()) != nil {
				continue
			}
			if _, err := root.AddParseTree(t.Name(), t.Tree.Copy()); err != nil {
				return nil, fmt.Errorf("cannot link template %q into %q: %w", t.Name(), name, err)
			}
		}
	}
	r.linked[name] = root
	return root, nil
}

// resolve compiles name and its dependencies, one level at a time. Templates of the same
// level compile concurrently. It returns the dependencies in discovery order.
func (r *Resolver) resolve(ctx context.Context, name string) ([]string, error) {
	visited := map[string]bool{name: true}
	closure := make([]string, 0)
	level := []string{name}
	for len(level) > 0 {
		results := make([]*compiled, len(level))
		group, groupCtx := errgroup.WithContext(ctx)
		for i, current := range level {
			i, current := i, current
			group.Go(func() error {
				if err := groupCtx.Err(); err != nil {
					return err
				}
				c, err := r.compile(current)
				if err != nil {
					return err
				}
				results[i] = c
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return nil, err
		}
		next := make([]string, 0)
		for _, c := range results {
			for _, dependency := range c.deps {
				if visited[dependency] {
					continue
				}
				visited[dependency] = true
				closure = append(closure, dependency)
				next = append(next, dependency)
			}
		}
		level = next
	}
	return closure, nil
}

// compile parses a template at most once, even when asked concurrently
func (r *Resolver) compile(name string) (*compiled, error) {
	r.mu.RLock()
	c, ok := r.cache[name]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}

	value, err, _ := r.group.Do(name, func() (any, error) {
		r.mu.RLock()
		c, ok := r.cache[name]
		r.mu.RUnlock()
		if ok {
			return c, nil
		}
		text, err := r.source.Lookup(name)
		if err != nil {
			return nil, err
		}
		tmpl, err := template.New(name).Funcs(r.funcs).Parse(text)
		if err != nil {
			return nil, fmt.Errorf("cannot compile template %q: %w", name, err)
		}
		c = &compiled{
			tmpl: tmpl,
			deps: dependencies(tmpl),
		}
		r.mu.Lock()
		r.cache[name] = c
		r.mu.Unlock()

		r.log.Printf("compiled template %q (dependencies: %v)", name, c.deps)
		r.hub.MustPublish(Compiled, name)
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*compiled), nil
}

// dependencies lists the templates referenced by tmpl and not defined in its own text
func dependencies(tmpl *template.Template) []string {
	defined := make(map[string]bool)
	for _, t := range tmpl.Templates() {
		defined[t.Name()] = true
	}
	referenced := make(map[string]bool)
	for _, t := range tmpl.Templates() {
		if t.Tree != nil {
			walk(t.Tree.Root, referenced)
		}
	}
	deps := make([]string, 0, len(referenced))
	for name := range referenced {
		if !defined[name] {
			deps = append(deps, name)
		}
	}
	sort.Strings(deps)
	return deps
}

func walk(node parse.Node, referenced map[string]bool) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, child := range n.Nodes {
			walk(child, referenced)
		}
	case *parse.TemplateNode:
		referenced[n.Name] = true
	case *parse.IfNode:
		walk(n.List, referenced)
		walk(n.ElseList, referenced)
	case *parse.RangeNode:
		walk(n.List, referenced)
		walk(n.ElseList, referenced)
	case *parse.WithNode:
		walk(n.List, referenced)
		walk(n.ElseList, referenced)
	}
}
