package blog

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tolet/service/internal/response"
	"github.com/tolet/service/internal/upload"
)

// ImageField is the multipart field carrying the cover image.
const ImageField = "image"

// Handler holds HTTP handlers for blog endpoints.
type Handler struct {
	svc     *Service
	uploads *upload.Receiver
}

// NewHandler creates a new blog Handler.
func NewHandler(svc *Service, uploads *upload.Receiver) *Handler {
	return &Handler{svc: svc, uploads: uploads}
}

// Routes mounts the blog endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Delete)
}

type createdBody struct {
	Message string `json:"message" example:"Blog post created successfully"`
	Blog    *Blog  `json:"blog"`
}

// Create godoc
//
//	@Summary		Create blog post
//	@Description	Creates a post from title, content, author and a cover image. All four are required.
//	@Tags			blogs
//	@Accept			mpfd
//	@Produce		json
//	@Param			title	formData	string	true	"Title"
//	@Param			content	formData	string	true	"Content"
//	@Param			author	formData	string	true	"Author"
//	@Param			image	formData	file	true	"Cover image"
//	@Success		201		{object}	createdBody
//	@Failure		400		{object}	response.ErrorBody
//	@Failure		500		{object}	response.ErrorBody
//	@Router			/blogs [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	form, err := h.uploads.Receive(r, ImageField, 1)
	if err != nil {
		response.Fail(w, err)
		return
	}

	b, err := h.svc.Create(r.Context(), form)
	if err != nil {
		response.Fail(w, err)
		return
	}

	response.Created(w, createdBody{Message: "Blog post created successfully", Blog: b})
}

// List godoc
//
//	@Summary		List blog posts
//	@Description	Returns every post. An empty collection yields an empty array.
//	@Tags			blogs
//	@Produce		json
//	@Success		200	{array}		Blog
//	@Failure		500	{object}	response.ErrorBody
//	@Router			/blogs [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	blogs, err := h.svc.List(r.Context())
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.OK(w, blogs)
}

// Get godoc
//
//	@Summary	Get blog post
//	@Tags		blogs
//	@Produce	json
//	@Param		id	path		string	true	"Blog id"
//	@Success	200	{object}	Blog
//	@Failure	404	{object}	response.ErrorBody
//	@Failure	500	{object}	response.ErrorBody
//	@Router		/blogs/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if h.svc.IsNotFound(err) {
			response.NotFound(w, "Blog not found")
			return
		}
		response.Fail(w, err)
		return
	}
	response.OK(w, b)
}

// Delete godoc
//
//	@Summary		Delete blog post
//	@Description	Removes the post and its image.
//	@Tags			blogs
//	@Produce		json
//	@Param			id	path		string	true	"Blog id"
//	@Success		200	{object}	response.MessageBody
//	@Failure		404	{object}	response.ErrorBody
//	@Failure		500	{object}	response.ErrorBody
//	@Router			/blogs/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		if h.svc.IsNotFound(err) {
			response.NotFound(w, "Blog not found")
			return
		}
		response.Fail(w, err)
		return
	}
	response.Message(w, http.StatusOK, "Blog post deleted successfully")
}
