package pushnotification

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kazz187/tasktracker/internal/auth"
	"github.com/kazz187/tasktracker/internal/config"
	"github.com/kazz187/tasktracker/internal/pushsubscription"
	"github.com/kazz187/tasktracker/pkg/cerr"
)

type Server struct {
	vapidEnv *config.VAPIDEnv
	repo     pushsubscription.Repository
	sender   *Sender
}

func NewServer(vapidEnv *config.VAPIDEnv, repo pushsubscription.Repository, sender *Sender) *Server {
	return &Server{
		vapidEnv: vapidEnv,
		repo:     repo,
		sender:   sender,
	}
}

func (s *Server) Routes(r chi.Router) {
	r.Route("/push-subscriptions", func(r chi.Router) {
		r.Post("/", s.register)
		r.Delete("/", s.unregister)
		r.Get("/vapid-public-key", s.vapidPublicKey)
		r.Post("/test", s.sendTest)
	})
}

type vapidPublicKeyResponse struct {
	PublicKey string `json:"public_key"`
}

func (s *Server) vapidPublicKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.vapidEnv == nil || s.vapidEnv.VAPIDPublicKey == "" {
		cerr.SetNewJSONError(ctx, cerr.FailedPrecondition, "VAPID keys not configured", nil)
		return
	}
	cerr.SetJSONResponse(ctx, &vapidPublicKeyResponse{PublicKey: s.vapidEnv.VAPIDPublicKey})
}

type registerRequest struct {
	Endpoint  string `json:"endpoint"`
	P256dhKey string `json:"p256dh_key"`
	AuthKey   string `json:"auth_key"`
}

type subscriptionResponse struct {
	Subscription *pushsubscription.Subscription `json:"subscription"`
}

// register is idempotent: registering a known endpoint replaces its keys.
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req registerRequest
	if err := cerr.DecodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	switch {
	case req.Endpoint == "":
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "endpoint is required", nil)
		return
	case req.P256dhKey == "":
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "p256dh_key is required", nil)
		return
	case req.AuthKey == "":
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "auth_key is required", nil)
		return
	}

	sub := &pushsubscription.Subscription{
		User:      auth.UserFromContext(ctx),
		Endpoint:  req.Endpoint,
		P256dhKey: req.P256dhKey,
		AuthKey:   req.AuthKey,
		CreatedAt: time.Now(),
	}
	if err := s.repo.Upsert(ctx, sub); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, &subscriptionResponse{Subscription: sub})
}

type unregisterRequest struct {
	Endpoint string `json:"endpoint"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func (s *Server) unregister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req unregisterRequest
	if err := cerr.DecodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if req.Endpoint == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "endpoint is required", nil)
		return
	}
	if err := s.repo.DeleteByEndpoint(ctx, req.Endpoint); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, &successResponse{Success: true})
}

type sendTestResponse struct {
	Delivered int `json:"delivered"`
}

func (s *Server) sendTest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !s.sender.Configured() {
		cerr.SetNewJSONError(ctx, cerr.FailedPrecondition, "VAPID keys not configured", nil)
		return
	}
	n := s.sender.SendToAll(ctx, &NotificationPayload{
		Title: "tasktracker test",
		Body:  "Push notifications are working!",
	})
	cerr.SetJSONResponse(ctx, &sendTestResponse{Delivered: n})
}
