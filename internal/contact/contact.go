// Package contact stores messages sent through the site's contact form.
package contact

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tolet/service/internal/db"
	"github.com/tolet/service/internal/response"
	"github.com/tolet/service/internal/upload"
	"github.com/tolet/service/internal/validate"
)

var requiredFields = []string{"name", "email", "message"}

// Service stores and lists contact submissions.
type Service struct {
	store db.Store
}

// NewService creates a new contact Service.
func NewService(store db.Store) *Service {
	return &Service{store: store}
}

// Submit validates and stores a submission. Extra fields are kept as sent.
func (s *Service) Submit(ctx context.Context, fields map[string]any) (db.Document, error) {
	if err := validate.Required(validate.Missing(fields, requiredFields...)...); err != nil {
		return nil, err
	}
	doc, err := s.store.Insert(ctx, db.Contacts, db.Document(fields).WithoutID())
	if err != nil {
		return nil, fmt.Errorf("save contact: %w", err)
	}
	return doc, nil
}

// List returns every submission.
func (s *Service) List(ctx context.Context) ([]db.Document, error) {
	docs, err := s.store.Find(ctx, db.Contacts, nil)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return docs, nil
}

// Handler holds HTTP handlers for the contact endpoints.
type Handler struct {
	svc     *Service
	uploads *upload.Receiver
}

// NewHandler creates a new contact Handler. The receiver only parses text
// fields; contact forms carry no files.
func NewHandler(svc *Service, uploads *upload.Receiver) *Handler {
	return &Handler{svc: svc, uploads: uploads}
}

// Routes mounts the contact endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.Submit)
	r.Get("/", h.List)
}

type submittedBody struct {
	Message string         `json:"message" example:"Message sent successfully"`
	Contact map[string]any `json:"contact"`
}

// Submit godoc
//
//	@Summary		Send a contact message
//	@Description	Stores a contact form submission. name, email and message are required.
//	@Tags			contact
//	@Accept			json
//	@Produce		json
//	@Param			body	body		map[string]interface{}	true	"Submission"
//	@Success		201		{object}	submittedBody
//	@Failure		400		{object}	response.ErrorBody
//	@Failure		500		{object}	response.ErrorBody
//	@Router			/contact [post]
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	form, err := h.uploads.Receive(r, "", 0)
	if err != nil {
		response.Fail(w, err)
		return
	}

	doc, err := h.svc.Submit(r.Context(), form.Fields)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.Created(w, submittedBody{Message: "Message sent successfully", Contact: doc})
}

// List godoc
//
//	@Summary		List contact messages
//	@Tags			contact
//	@Produce		json
//	@Success		200	{array}		map[string]interface{}
//	@Failure		500	{object}	response.ErrorBody
//	@Router			/contact [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.List(r.Context())
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.OK(w, docs)
}
