package comment

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tolet/service/internal/response"
	"github.com/tolet/service/internal/upload"
)

// ImageField is the multipart field carrying the commet image.
const ImageField = "image"

// Handler holds HTTP handlers for commet endpoints.
type Handler struct {
	svc     *Service
	uploads *upload.Receiver
}

// NewHandler creates a new commet Handler.
func NewHandler(svc *Service, uploads *upload.Receiver) *Handler {
	return &Handler{svc: svc, uploads: uploads}
}

// Routes mounts the commet endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/{propertyid}", h.Create)
	r.Delete("/{commetid}", h.Delete)
}

// Create godoc
//
//	@Summary		Comment on a property
//	@Description	Stores the submitted fields and exactly one image as a commet of the property.
//	@Tags			commets
//	@Accept			mpfd
//	@Produce		json
//	@Param			propertyid	path		string	true	"Property id"
//	@Param			image		formData	file	true	"Image"
//	@Success		201			{object}	map[string]interface{}
//	@Failure		400			{object}	response.ErrorBody
//	@Failure		404			{object}	response.ErrorBody
//	@Failure		500			{object}	response.ErrorBody
//	@Router			/property/commets/{propertyid} [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	form, err := h.uploads.Receive(r, ImageField, 1)
	if err != nil {
		response.Fail(w, err)
		return
	}

	c, err := h.svc.Create(r.Context(), chi.URLParam(r, "propertyid"), form)
	if err != nil {
		if h.svc.IsPropertyNotFound(err) {
			response.NotFound(w, "Property not found")
			return
		}
		response.Fail(w, err)
		return
	}
	response.Created(w, c)
}

// Delete godoc
//
//	@Summary		Delete commet
//	@Description	Removes the commet and its image.
//	@Tags			commets
//	@Produce		json
//	@Param			commetid	path		string	true	"Commet id"
//	@Success		200			{object}	response.MessageBody
//	@Failure		404			{object}	response.ErrorBody
//	@Failure		500			{object}	response.ErrorBody
//	@Router			/property/commets/{commetid} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "commetid")); err != nil {
		if h.svc.IsNotFound(err) {
			response.NotFound(w, "Commet not found")
			return
		}
		response.Fail(w, err)
		return
	}
	response.Message(w, http.StatusOK, "Commet deleted")
}
