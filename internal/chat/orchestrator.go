// Package chat is the admission and streaming core: it gates each
// request, fans a user turn out to the model backends, relays partial
// tokens, and persists the final transcript.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"turbolearn/internal/auth"
	"turbolearn/internal/llm"
	"turbolearn/internal/ratelimit"
	"turbolearn/internal/storage"
	"turbolearn/internal/store"
)

// ErrUpstream is the opaque failure surfaced when a provider call or
// stream breaks. Upstream detail goes to the operator log only.
var ErrUpstream = errors.New("error processing request")

// Resolver maps a logical provider to a concrete model binding.
type Resolver interface {
	CreateClient(ctx context.Context, provider llm.Provider) (llm.Client, error)
}

// Transcripts is the session/turn persistence the orchestrator needs.
type Transcripts interface {
	CreateSession(userID, title string, now time.Time) (store.Session, error)
	GetSession(id string) (store.Session, bool, error)
	AppendTurn(t store.Turn) (store.Turn, error)
	TurnsBySession(sessionID, provider string) ([]store.Turn, error)
}

type Orchestrator struct {
	auth          *auth.Service
	limiter       *ratelimit.Limiter
	transcripts   Transcripts
	resolver      Resolver
	recorder      storage.Recorder
	streamTimeout time.Duration
	now           func() time.Time
}

func New(authSvc *auth.Service, limiter *ratelimit.Limiter, transcripts Transcripts, resolver Resolver, recorder storage.Recorder, streamTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		auth:          authSvc,
		limiter:       limiter,
		transcripts:   transcripts,
		resolver:      resolver,
		recorder:      recorder,
		streamTimeout: streamTimeout,
		now:           time.Now,
	}
}

// Request is one provider invocation for one user turn.
type Request struct {
	UserID    string
	SessionID string // optional; when set the final reply is persisted
	Provider  llm.Provider
	Messages  []llm.Message
	Image     string // data-URI attachment, optional
}

// Stream runs one (session, provider) invocation end to end: admission,
// formatting, dispatch, chunk relay, and a single transcript append on
// clean end-of-stream. Cancellation surfaces as context.Canceled and
// persists nothing; already-charged rate budget is not refunded. Any
// other downstream error persists nothing and surfaces as ErrUpstream.
func (o *Orchestrator) Stream(ctx context.Context, req Request, sink func(string)) (string, error) {
	if _, err := o.auth.Authorize(ctx, req.UserID); err != nil {
		return "", err
	}
	if err := o.limiter.Admit(req.UserID, o.now()); err != nil {
		return "", err
	}
	prompt, err := llm.BuildPrompt(req.Messages, req.Provider, req.Image)
	if err != nil {
		return "", err
	}
	client, err := o.resolver.CreateClient(ctx, req.Provider)
	if err != nil {
		if errors.Is(err, llm.ErrUnsupportedProvider) {
			return "", err
		}
		log.Printf("resolve provider %s: %v", req.Provider, err)
		return "", ErrUpstream
	}

	sctx, cancel := context.WithTimeout(ctx, o.streamTimeout)
	defer cancel()

	full, err := client.Generate(sctx, prompt, sink)
	if err != nil {
		if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
			// User-initiated stop: a normal terminal state, not an error.
			// Partial text already relayed stays visible transiently but
			// is never persisted.
			return "", context.Canceled
		}
		log.Printf("provider %s stream failed for user %s: %v", req.Provider, req.UserID, err)
		return "", ErrUpstream
	}

	if req.SessionID != "" {
		_, err := o.transcripts.AppendTurn(store.Turn{
			SessionID: req.SessionID,
			Role:      "assistant",
			Content:   full,
			Provider:  req.Provider.String(),
			CreatedAt: o.now(),
		})
		if err != nil {
			log.Printf("persist assistant turn (%s, %s): %v", req.SessionID, req.Provider, err)
			return full, ErrUpstream
		}
	}
	o.audit(req, full)
	return full, nil
}

func (o *Orchestrator) audit(req Request, response string) {
	if o.recorder == nil {
		return
	}
	var lastUser string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			lastUser = req.Messages[i].Content
			break
		}
	}
	ev := storage.Event{
		Timestamp:         o.now().UTC(),
		UserID:            req.UserID,
		SessionID:         req.SessionID,
		Provider:          req.Provider.String(),
		UserMessage:       lastUser,
		AssistantResponse: response,
	}
	if err := o.recorder.AppendInteraction(ev); err != nil {
		log.Printf("append interaction event: %v", err)
	}
}

// TurnRequest is one user turn fanned out to the active providers.
type TurnRequest struct {
	UserID    string
	SessionID string // empty means start a new session
	Text      string
	Image     string
	Providers []llm.Provider // empty means all
}

type ProviderResult struct {
	Provider llm.Provider `json:"provider"`
	Reply    string       `json:"reply,omitempty"`
	Err      error        `json:"-"`
}

type TurnResult struct {
	SessionID string           `json:"session_id"`
	Results   []ProviderResult `json:"results"`
}

// SessionTitle derives the session title from the first turn's text:
// the leading 30 characters, ellipsized, or a fixed placeholder for a
// pure image query.
func SessionTitle(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return "Image Query"
	}
	r := []rune(text)
	if len(r) > 30 {
		return string(r[:30]) + "..."
	}
	return text
}

// SendTurn handles one user turn: it ensures a session, writes one user
// turn per selected provider, and runs the provider streams as fully
// independent state machines. An image restricts the turn to the
// vision-capable provider; the text-only provider is skipped entirely,
// not given degraded input. One provider failing or aborting never
// affects the other.
func (o *Orchestrator) SendTurn(ctx context.Context, req TurnRequest) (TurnResult, error) {
	if _, err := o.auth.Authorize(ctx, req.UserID); err != nil {
		return TurnResult{}, err
	}

	providers := req.Providers
	if len(providers) == 0 {
		providers = []llm.Provider{llm.ProviderGoogle, llm.ProviderGroq}
	}
	if req.Image != "" {
		kept := make([]llm.Provider, 0, len(providers))
		for _, p := range providers {
			if p.Vision() {
				kept = append(kept, p)
			}
		}
		providers = kept
		if len(providers) == 0 {
			providers = []llm.Provider{llm.ProviderGoogle}
		}
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sess, err := o.transcripts.CreateSession(req.UserID, SessionTitle(req.Text), o.now())
		if err != nil {
			return TurnResult{}, fmt.Errorf("create session: %w", err)
		}
		sessionID = sess.ID
	} else {
		sess, ok, err := o.transcripts.GetSession(sessionID)
		if err != nil {
			return TurnResult{}, fmt.Errorf("load session: %w", err)
		}
		if !ok || sess.UserID != req.UserID {
			return TurnResult{}, auth.ErrForbidden
		}
	}

	// Explicit fan-out of the user turn: one write intent per active
	// provider, the image stored only with the vision provider's copy.
	histories := make(map[llm.Provider][]llm.Message, len(providers))
	for _, p := range providers {
		turn := store.Turn{
			SessionID: sessionID,
			Role:      "user",
			Content:   req.Text,
			Provider:  p.String(),
			CreatedAt: o.now(),
		}
		if p.Vision() {
			turn.Image = req.Image
		}
		if _, err := o.transcripts.AppendTurn(turn); err != nil {
			return TurnResult{}, fmt.Errorf("persist user turn: %w", err)
		}
		turns, err := o.transcripts.TurnsBySession(sessionID, p.String())
		if err != nil {
			return TurnResult{}, fmt.Errorf("load history: %w", err)
		}
		msgs := make([]llm.Message, 0, len(turns))
		for _, t := range turns {
			msgs = append(msgs, llm.Message{Role: t.Role, Content: t.Content})
		}
		histories[p] = msgs
	}

	results := make([]ProviderResult, len(providers))
	var g errgroup.Group
	for i, p := range providers {
		i, p := i, p
		g.Go(func() error {
			image := ""
			if p.Vision() {
				image = req.Image
			}
			reply, err := o.Stream(ctx, Request{
				UserID:    req.UserID,
				SessionID: sessionID,
				Provider:  p,
				Messages:  histories[p],
				Image:     image,
			}, nil)
			// Failures stay per-provider; the sibling stream runs on.
			results[i] = ProviderResult{Provider: p, Reply: reply, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return TurnResult{SessionID: sessionID, Results: results}, nil
}
