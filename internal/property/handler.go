package property

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tolet/service/internal/response"
	"github.com/tolet/service/internal/upload"
)

const (
	// ImagesField is the multipart field carrying property images.
	ImagesField = "images"
	// MaxImages bounds the images accepted per request.
	MaxImages = 10
)

// Handler holds HTTP handlers for property endpoints.
type Handler struct {
	svc     *Service
	uploads *upload.Receiver
}

// NewHandler creates a new property Handler.
func NewHandler(svc *Service, uploads *upload.Receiver) *Handler {
	return &Handler{svc: svc, uploads: uploads}
}

// Routes mounts the property endpoints on r. Commet routes are mounted
// separately under /commets by the router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/locality/{locality}", h.ListByLocality)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// Create godoc
//
//	@Summary		Create property
//	@Description	Creates a listing from arbitrary fields and 1 to 10 images. Locality is required.
//	@Tags			property
//	@Accept			mpfd
//	@Produce		json
//	@Param			Locality	formData	string	true	"Locality"
//	@Param			images		formData	file	true	"Images (1-10)"
//	@Success		201			{object}	map[string]interface{}
//	@Failure		400			{object}	response.ErrorBody
//	@Failure		500			{object}	response.ErrorBody
//	@Router			/property [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	form, err := h.uploads.Receive(r, ImagesField, MaxImages)
	if err != nil {
		response.Fail(w, err)
		return
	}

	p, err := h.svc.Create(r.Context(), form)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.Created(w, p)
}

// List godoc
//
//	@Summary		List properties
//	@Tags			property
//	@Produce		json
//	@Success		200	{array}		map[string]interface{}
//	@Failure		500	{object}	response.ErrorBody
//	@Router			/property [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	props, err := h.svc.List(r.Context())
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.OK(w, props)
}

// ListByLocality godoc
//
//	@Summary		List properties by locality
//	@Description	Exact, case-sensitive match on the Locality field.
//	@Tags			property
//	@Produce		json
//	@Param			locality	path		string	true	"Locality"
//	@Success		200			{array}		map[string]interface{}
//	@Failure		500			{object}	response.ErrorBody
//	@Router			/property/locality/{locality} [get]
func (h *Handler) ListByLocality(w http.ResponseWriter, r *http.Request) {
	props, err := h.svc.ListByLocality(r.Context(), chi.URLParam(r, "locality"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.OK(w, props)
}

// Get godoc
//
//	@Summary		Get property
//	@Description	Returns the property together with its commets.
//	@Tags			property
//	@Produce		json
//	@Param			id	path		string	true	"Property id"
//	@Success		200	{object}	Detail
//	@Failure		404	{object}	response.ErrorBody
//	@Failure		500	{object}	response.ErrorBody
//	@Router			/property/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	response.OK(w, d)
}

// Update godoc
//
//	@Summary		Update property
//	@Description	Replaces every non-image field with the request body and appends uploaded images.
//	@Tags			property
//	@Accept			mpfd
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string	true	"Property id"
//	@Param			images	formData	file	false	"Additional images (0-10)"
//	@Success		200		{object}	map[string]interface{}
//	@Failure		400		{object}	response.ErrorBody
//	@Failure		404		{object}	response.ErrorBody
//	@Failure		500		{object}	response.ErrorBody
//	@Router			/property/{id} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	form, err := h.uploads.Receive(r, ImagesField, MaxImages)
	if err != nil {
		response.Fail(w, err)
		return
	}

	p, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), form)
	if err != nil {
		h.fail(w, err)
		return
	}
	response.OK(w, p)
}

// Delete godoc
//
//	@Summary		Delete property
//	@Description	Removes the property, its commets and every image they reference.
//	@Tags			property
//	@Produce		json
//	@Param			id	path		string	true	"Property id"
//	@Success		200	{object}	response.MessageBody
//	@Failure		404	{object}	response.ErrorBody
//	@Failure		500	{object}	response.ErrorBody
//	@Router			/property/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, err)
		return
	}
	response.Message(w, http.StatusOK, "Property deleted")
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if h.svc.IsNotFound(err) {
		response.NotFound(w, "Property not found")
		return
	}
	response.Fail(w, err)
}
