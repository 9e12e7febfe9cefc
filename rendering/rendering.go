// Package rendering defines the wire contract of the templating collaborator
// and ships an in-process implementation of it backed by go-template. Render
// requests arrive on the rendering topic, rendered subject/body pairs go back
// on the same topic tagged with the request's correlation id.
package rendering

import (
	"context"
	"encoding/json"
	"io"
	"os"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity/bus"
	template "github.com/goliatone/go-template"
)

const (
	// TopicName is the rendering topic.
	TopicName = "rendering"
	// EventRenderRequest is the outbound render request event.
	EventRenderRequest = "renderRequest"
	// EventRenderResponse is the inbound rendered content event.
	EventRenderResponse = "renderResponse"
)

// TemplateSpec is one template body plus an optional layout wrapping it.
type TemplateSpec struct {
	Body   string `json:"body"`
	Layout string `json:"layout,omitempty"`
}

// Templates groups the subject and body templates of one email.
type Templates struct {
	Subject TemplateSpec `json:"subject"`
	Body    TemplateSpec `json:"body"`
}

// Payload is one renderable unit of a request.
type Payload struct {
	Templates json.RawMessage `json:"templates"`
	Data      json.RawMessage `json:"data"`
	Style     string          `json:"style,omitempty"`
	Options   json.RawMessage `json:"options,omitempty"`
}

// Request asks the renderer for content; ID is the correlation id echoed on
// the response.
type Request struct {
	ID       string    `json:"id"`
	Payloads []Payload `json:"payloads"`
}

// Rendered is one rendered subject/body pair.
type Rendered struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Response carries the rendered payloads back, tagged with the request id.
type Response struct {
	ID        string     `json:"id"`
	Responses []Rendered `json:"responses"`
}

// Logger is the minimal logging surface the renderer needs.
type Logger interface {
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Debug(string, ...any) {}

type stringRenderer interface {
	RenderString(tpl string, data any, out ...io.Writer) (string, error)
}

// Renderer consumes render requests and publishes responses.
type Renderer struct {
	topic    *bus.Topic
	renderer stringRenderer
	logger   Logger
	baseDir  string
}

// Option customizes renderer construction.
type Option func(*Renderer)

// WithLogger sets the renderer logger.
func WithLogger(l Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithTemplatesDir sets the directory the template engine loads from. The
// renderer only renders inline template strings, so any readable directory
// works; it defaults to the system temp dir.
func WithTemplatesDir(dir string) Option {
	return func(r *Renderer) {
		if dir != "" {
			r.baseDir = dir
		}
	}
}

// NewRenderer builds a renderer and subscribes it to the topic's render
// request event.
func NewRenderer(topic *bus.Topic, opts ...Option) (*Renderer, error) {
	r := &Renderer{
		topic:   topic,
		logger:  noopLogger{},
		baseDir: os.TempDir(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	engine, err := template.NewRenderer(template.WithBaseDir(r.baseDir))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build template engine")
	}
	r.renderer = engine

	topic.Subscribe(EventRenderRequest, r.Handle)

	return r, nil
}

// Handle renders one request and emits the response. Malformed payloads are
// dropped with a warn log; rendering one payload never aborts the rest.
func (r *Renderer) Handle(ctx context.Context, payload any) error {
	req, ok := payload.(*Request)
	if !ok {
		r.logger.Warn("discarding render request with unexpected payload type")
		return nil
	}

	resp := &Response{ID: req.ID}
	for _, p := range req.Payloads {
		rendered, err := r.renderPayload(p)
		if err != nil {
			r.logger.Warn("failed to render payload", "id", req.ID, "error", err)
			continue
		}
		resp.Responses = append(resp.Responses, rendered)
	}

	return r.topic.Emit(ctx, EventRenderResponse, resp)
}

func (r *Renderer) renderPayload(p Payload) (Rendered, error) {
	var tpls Templates
	if err := json.Unmarshal(p.Templates, &tpls); err != nil {
		return Rendered{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid templates payload")
	}

	data := map[string]any{}
	if len(p.Data) > 0 {
		if err := json.Unmarshal(p.Data, &data); err != nil {
			return Rendered{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid data payload")
		}
	}

	subject, err := r.renderer.RenderString(tpls.Subject.Body, data)
	if err != nil {
		return Rendered{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render subject")
	}

	body, err := r.renderer.RenderString(tpls.Body.Body, data)
	if err != nil {
		return Rendered{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render body")
	}

	if tpls.Body.Layout != "" {
		layoutData := map[string]any{"content": body}
		for k, v := range data {
			layoutData[k] = v
		}
		body, err = r.renderer.RenderString(tpls.Body.Layout, layoutData)
		if err != nil {
			return Rendered{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render layout")
		}
	}

	return Rendered{Subject: subject, Body: body}, nil
}
