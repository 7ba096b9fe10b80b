package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"wagate/internal/errors"
	"wagate/internal/httputil"
	"wagate/internal/middleware"
	"wagate/internal/models"
	"wagate/internal/service"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type Server struct {
	router     *mux.Router
	logger     *logrus.Logger
	cfg        *models.Config
	webhookSvc *service.WebhookService
	sendSvc    *service.SendService
	server     *http.Server
}

func NewServer(cfg *models.Config, webhookSvc *service.WebhookService, sendSvc *service.SendService, logger *logrus.Logger) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		logger:     logger,
		cfg:        cfg,
		webhookSvc: webhookSvc,
		sendSvc:    sendSvc,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.ObservabilityMiddleware(s.logger))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	webhook := s.router.PathPrefix("/webhook/whatsapp").Subrouter()
	webhook.Use(middleware.WebhookObservabilityMiddleware(s.logger, "whatsapp"))
	webhook.HandleFunc("", s.handleWebhookVerify()).Methods(http.MethodGet)
	webhook.HandleFunc("", s.handleWebhook()).Methods(http.MethodPost)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/messages/send", s.handleSendMessage()).Methods(http.MethodPost)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Server.IdleTimeoutSec) * time.Second,
	}

	s.logger.Infof("Starting server on port %s", s.cfg.Server.Port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}
}

// handleWebhookVerify answers the provider's GET subscription handshake:
// echo hub.challenge verbatim when the mode and verify token match.
func (s *Server) handleWebhookVerify() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		mode := query.Get("hub.mode")
		token := query.Get("hub.verify_token")
		challenge := query.Get("hub.challenge")

		if !verifyHandshake(mode, token, s.cfg.Webhook.VerifyToken) {
			s.logger.WithField("remote_ip", httputil.GetClientIP(r)).Warn("Webhook verification handshake rejected")
			w.WriteHeader(http.StatusForbidden)
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(challenge))
	}
}

// handleWebhook ingests provider callbacks. The contract is deliberate:
// 403 only on signature failure, 200 on everything else — non-200 answers
// trigger provider retry storms for problems retrying cannot fix.
func (s *Server) handleWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := verifySignature(r, s.cfg.Webhook.Secret)
		if err != nil {
			s.logger.WithError(err).WithField("remote_ip", httputil.GetClientIP(r)).Warn("Rejecting webhook with invalid signature")
			w.WriteHeader(http.StatusForbidden)
			return
		}

		var signature *string
		if header := r.Header.Get(signatureHeaderName); header != "" {
			signature = &header
		}

		s.webhookSvc.Receive(r.Context(), body, httputil.GetClientIP(r), signature)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"received"}`))
	}
}

func (s *Server) handleSendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req service.SendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "invalid request body"))
			return
		}
		// Caller identity is resolved by the outer auth layer; this service
		// only consumes it.
		req.UserID = r.Header.Get("X-User-ID")

		result, err := s.sendSvc.Send(r.Context(), &req)
		if err != nil {
			s.writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		if err := json.NewEncoder(w).Encode(result); err != nil {
			s.logger.WithError(err).Error("Failed to encode send response")
		}
	}
}

// writeError maps a typed error to its HTTP status. Internal detail stays in
// the logs; callers get the code and a user-facing message.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	status := errors.HTTPStatus(code)

	if status >= 500 {
		s.logger.WithError(err).Error("Request failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	response := map[string]string{
		"error":   string(code),
		"message": errors.GetUserMessage(err),
	}
	if encodeErr := json.NewEncoder(w).Encode(response); encodeErr != nil {
		s.logger.WithError(encodeErr).Error("Failed to encode error response")
	}
}
