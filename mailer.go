package identity

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity/bus"
	"github.com/goliatone/go-identity/rendering"
)

// EmailVariant selects which template pair a render request uses.
type EmailVariant string

const (
	// EmailRegister is the activation email sent after registration.
	EmailRegister EmailVariant = "register"
	// EmailChange is the activation email sent after an email change.
	EmailChange EmailVariant = "emailChange"
)

// Notification is the payload forwarded to the notification collaborator
// once rendered content is available.
type Notification struct {
	Notifyee  string `json:"notifyee"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Transport string `json:"transport"`
	Target    string `json:"target"`
}

// TemplateEndpoints names the remote template documents the mailer fetches
// at startup. Paths are joined onto Prefix.
type TemplateEndpoints struct {
	Prefix          string
	SubjectRegister string
	SubjectChange   string
	Layout          string
	BodyRegister    string
	BodyChange      string
	Resources       string
}

// Mailer bridges the asynchronous render round trip: it keeps a pending
// notification per email address, emits render requests correlated by that
// address, and completes the send when the response arrives.
//
// The pending slot is keyed by email, so two concurrent flows sharing an
// address overwrite each other and only the most recent request survives.
type Mailer struct {
	endpoints      TemplateEndpoints
	activationLink string
	client         *http.Client
	renderingTopic *bus.Topic
	notification   *bus.Topic
	logger         Logger
	provider       LoggerProvider

	enabled            bool
	style              string
	registerSubjectTpl string
	changeSubjectTpl   string
	layoutTpl          string
	registerBodyTpl    string
	changeBodyTpl      string

	mu      sync.Mutex
	pending map[string]*Notification
}

// NewMailer wires a mailer against the rendering and notification topics and
// subscribes it to render responses. Call LoadTemplates before use; the
// pipeline stays disabled until templates are available.
func NewMailer(endpoints TemplateEndpoints, activationLink string, renderingTopic, notification *bus.Topic) *Mailer {
	provider, logger := ResolveLogger("identity.mailer", nil, nil)
	m := &Mailer{
		endpoints:      endpoints,
		activationLink: activationLink,
		client:         http.DefaultClient,
		renderingTopic: renderingTopic,
		notification:   notification,
		logger:         logger,
		provider:       provider,
		pending:        map[string]*Notification{},
	}

	if renderingTopic != nil {
		renderingTopic.Subscribe(rendering.EventRenderResponse, m.HandleRenderResponse)
	}

	return m
}

// WithLogger overrides the scoped logger.
func (m *Mailer) WithLogger(l Logger) *Mailer {
	m.provider, m.logger = ResolveLogger("identity.mailer", m.provider, l)
	return m
}

// WithHTTPClient overrides the client used to fetch templates.
func (m *Mailer) WithHTTPClient(client *http.Client) *Mailer {
	if client != nil {
		m.client = client
	}
	return m
}

// Enabled reports whether the email pipeline is operational.
func (m *Mailer) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// LoadTemplates fetches subject, body and layout templates from the
// configured endpoints. Any failure leaves the pipeline disabled with a warn
// log; email is a degraded feature, not a startup requirement.
func (m *Mailer) LoadTemplates(ctx context.Context) {
	fetch := func(path string) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.endpoints.Prefix+path, nil)
		if err != nil {
			return "", err
		}
		resp, err := m.client.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}

	var err error
	var registerSubject, changeSubject, layout, registerBody, changeBody, style string

	if registerSubject, err = fetch(m.endpoints.SubjectRegister); err == nil {
		if changeSubject, err = fetch(m.endpoints.SubjectChange); err == nil {
			if layout, err = fetch(m.endpoints.Layout); err == nil {
				if registerBody, err = fetch(m.endpoints.BodyRegister); err == nil {
					changeBody, err = fetch(m.endpoints.BodyChange)
				}
			}
		}
	}

	if err != nil {
		m.logger.Warn("unable to load email templates, email operations disabled", "error", err)
		m.mu.Lock()
		m.enabled = false
		m.mu.Unlock()
		return
	}

	if m.endpoints.Resources != "" {
		if raw, rerr := fetch(m.endpoints.Resources); rerr == nil {
			var resources struct {
				Style string `json:"style"`
			}
			if jerr := json.Unmarshal([]byte(raw), &resources); jerr == nil && resources.Style != "" {
				style = m.endpoints.Prefix + resources.Style
			}
		}
	}

	m.mu.Lock()
	m.registerSubjectTpl = registerSubject
	m.changeSubjectTpl = changeSubject
	m.layoutTpl = layout
	m.registerBodyTpl = registerBody
	m.changeBodyTpl = changeBody
	m.style = style
	m.enabled = true
	m.mu.Unlock()

	m.logger.Info("email templates loaded, email pipeline enabled")
}

// SetTemplates installs templates directly, bypassing the HTTP fetch. Useful
// for embedders that ship templates with the binary.
func (m *Mailer) SetTemplates(registerSubject, changeSubject, layout, registerBody, changeBody string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registerSubjectTpl = registerSubject
	m.changeSubjectTpl = changeSubject
	m.layoutTpl = layout
	m.registerBodyTpl = registerBody
	m.changeBodyTpl = changeBody
	m.enabled = true
}

// QueueActivation records a pending notification keyed by the user's current
// email and emits the matching render request.
func (m *Mailer) QueueActivation(ctx context.Context, user *User, variant EmailVariant) error {
	if !m.Enabled() {
		return ErrEmailPipelineDisabled
	}

	m.mu.Lock()
	req, err := m.buildRenderRequest(user, variant)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.pending[user.Email] = &Notification{
		Notifyee:  user.Email,
		Transport: "email",
		Target:    user.Email,
	}
	m.mu.Unlock()

	return m.renderingTopic.Emit(ctx, rendering.EventRenderRequest, req)
}

// HandleRenderResponse completes a pending send: it merges the rendered
// subject/body into the stored context, forwards the sendEmail event, and
// drops the entry. Responses without a pending entry are discarded.
func (m *Mailer) HandleRenderResponse(ctx context.Context, payload any) error {
	resp, ok := payload.(*rendering.Response)
	if !ok {
		m.logger.Debug("discarding rendering response with unexpected payload type")
		return nil
	}

	m.mu.Lock()
	data, ok := m.pending[resp.ID]
	if !ok {
		m.mu.Unlock()
		m.logger.Debug("unknown rendering response id, discarding message", "id", resp.ID)
		return nil
	}
	delete(m.pending, resp.ID)
	m.mu.Unlock()

	if len(resp.Responses) == 0 {
		m.logger.Warn("rendering response carries no content", "id", resp.ID)
		return nil
	}

	data.Subject = resp.Responses[0].Subject
	data.Body = resp.Responses[0].Body

	return m.notification.Emit(ctx, EventSendEmail, data)
}

func (m *Mailer) buildRenderRequest(user *User, variant EmailVariant) (*rendering.Request, error) {
	link := m.activationLink
	if link != "" && !strings.HasSuffix(link, "/") {
		link += "/"
	}
	link += user.Name + "/" + user.ActivationCode

	data, err := json.Marshal(map[string]any{
		"userName":       user.Name,
		"activationLink": link,
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to marshal render data")
	}

	subjectTpl := m.registerSubjectTpl
	bodyTpl := m.registerBodyTpl
	if variant == EmailChange {
		subjectTpl = m.changeSubjectTpl
		bodyTpl = m.changeBodyTpl
	}

	templates, err := json.Marshal(rendering.Templates{
		Subject: rendering.TemplateSpec{Body: subjectTpl},
		Body:    rendering.TemplateSpec{Body: bodyTpl, Layout: m.layoutTpl},
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to marshal render templates")
	}

	return &rendering.Request{
		ID: user.Email,
		Payloads: []rendering.Payload{{
			Templates: templates,
			Data:      data,
			Style:     m.style,
		}},
	}, nil
}
