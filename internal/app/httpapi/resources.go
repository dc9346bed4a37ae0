package httpapi

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/fortivo/internal/app/services/assets"
	"github.com/R3E-Network/fortivo/internal/app/services/beneficiaries"
	"github.com/R3E-Network/fortivo/internal/app/services/documents"
	"github.com/R3E-Network/fortivo/internal/app/services/profiles"
	"github.com/R3E-Network/fortivo/internal/errors"
	"github.com/R3E-Network/fortivo/internal/httputil"
	"github.com/R3E-Network/fortivo/internal/uploads"
)

// multipartOverhead leaves room for boundaries and text fields around the
// file part.
const multipartOverhead = 1 << 20

// ---- profile ----

func (h *handler) getProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.app.Profiles.Get(r.Context(), userID(r))
	if err != nil {
		h.fail(w, r, err, "failed_to_fetch_profile")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

func (h *handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var body profiles.Patch
	if !h.decode(w, r, &body) {
		return
	}
	profile, err := h.app.Profiles.Update(r.Context(), userID(r), body)
	if err != nil {
		h.fail(w, r, err, "failed_to_update_profile")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

func (h *handler) uploadAvatar(w http.ResponseWriter, r *http.Request) {
	file, cleanup, err := h.formFile(w, r, "avatar")
	if err != nil {
		h.fail(w, r, err, "failed_to_upload_avatar")
		return
	}
	defer cleanup()
	if file == nil {
		httputil.WriteServiceError(w, r, errors.BadRequest("no_file_uploaded", ""), "")
		return
	}
	if !file.IsImage() {
		httputil.WriteServiceError(w, r, errors.BadRequest("invalid_file_type", "Only image files are allowed for avatars"), "")
		return
	}

	obj, err := h.app.Blobs.Save(r.Context(), uploads.KindAvatars, file.Filename, file.ContentType, file.Reader)
	if err != nil {
		h.fail(w, r, documents.UploadError(err, "failed_to_upload_avatar"), "failed_to_upload_avatar")
		return
	}
	result, err := h.app.Profiles.SetAvatar(r.Context(), userID(r), obj.Path)
	if err != nil {
		if delErr := h.app.Blobs.Delete(r.Context(), obj.Path); delErr != nil {
			h.log.WithContext(r.Context()).WithError(delErr).Warn("failed to remove orphaned avatar")
		}
		h.fail(w, r, err, "failed_to_upload_avatar")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// ---- assets ----

func (h *handler) listAssets(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Assets.List(r.Context(), userID(r))
	if err != nil {
		h.fail(w, r, err, "failed_to_list_assets")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, items)
}

func (h *handler) createAsset(w http.ResponseWriter, r *http.Request) {
	var body assets.Input
	if !h.decode(w, r, &body) {
		return
	}
	created, err := h.app.Assets.Create(r.Context(), userID(r), body)
	if err != nil {
		h.fail(w, r, err, "failed_to_create_asset")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *handler) updateAsset(w http.ResponseWriter, r *http.Request) {
	var body assets.Input
	if !h.decode(w, r, &body) {
		return
	}
	updated, err := h.app.Assets.Update(r.Context(), userID(r), mux.Vars(r)["id"], body)
	if err != nil {
		h.fail(w, r, err, "failed_to_update_asset")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *handler) deleteAsset(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Assets.Delete(r.Context(), userID(r), mux.Vars(r)["id"]); err != nil {
		h.fail(w, r, err, "failed_to_delete_asset")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- documents ----

func (h *handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.app.Documents.List(r.Context(), userID(r), mux.Vars(r)["assetId"])
	if err != nil {
		h.fail(w, r, err, "failed_to_fetch_documents")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, docs)
}

func (h *handler) uploadDocument(w http.ResponseWriter, r *http.Request) {
	file, cleanup, err := h.formFile(w, r, "document")
	if err != nil {
		h.fail(w, r, err, "failed_to_upload_document")
		return
	}
	defer cleanup()

	doc, err := h.app.Documents.Upload(r.Context(), userID(r), mux.Vars(r)["assetId"], r.FormValue("name"), file)
	if err != nil {
		h.fail(w, r, err, "failed_to_upload_document")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, doc)
}

func (h *handler) deleteDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.app.Documents.Delete(r.Context(), userID(r), vars["assetId"], vars["documentId"]); err != nil {
		h.fail(w, r, err, "failed_to_delete_document")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// formFile reads one multipart file part. A missing part yields a nil file
// and no error.
func (h *handler) formFile(w http.ResponseWriter, r *http.Request, field string) (*uploads.File, func(), error) {
	noop := func() {}
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case stderrors.As(err, &maxErr):
			return nil, noop, documents.UploadError(uploads.ErrTooLarge, "")
		case stderrors.Is(err, http.ErrNotMultipart):
			return nil, noop, nil
		}
		return nil, noop, errors.BadRequest("invalid_upload", strings.TrimSpace(err.Error()))
	}
	cleanup := func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}

	part, header, err := r.FormFile(field)
	if stderrors.Is(err, http.ErrMissingFile) {
		return nil, cleanup, nil
	}
	if err != nil {
		return nil, cleanup, errors.BadRequest("invalid_upload", err.Error())
	}
	if header.Size > h.cfg.MaxUploadBytes {
		_ = part.Close()
		return nil, cleanup, documents.UploadError(uploads.ErrTooLarge, "")
	}
	return &uploads.File{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Reader:      part,
	}, func() { _ = part.Close(); cleanup() }, nil
}

// ---- beneficiaries ----

func (h *handler) listBeneficiaries(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Beneficiaries.List(r.Context(), userID(r))
	if err != nil {
		h.fail(w, r, err, "failed_to_list_beneficiaries")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, items)
}

func (h *handler) createBeneficiary(w http.ResponseWriter, r *http.Request) {
	var body beneficiaries.Input
	if !h.decode(w, r, &body) {
		return
	}
	created, err := h.app.Beneficiaries.Create(r.Context(), userID(r), body)
	if err != nil {
		h.fail(w, r, err, "failed_to_create_beneficiary")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *handler) updateBeneficiary(w http.ResponseWriter, r *http.Request) {
	var body beneficiaries.Input
	if !h.decode(w, r, &body) {
		return
	}
	updated, err := h.app.Beneficiaries.Update(r.Context(), userID(r), mux.Vars(r)["id"], body)
	if err != nil {
		h.fail(w, r, err, "failed_to_update_beneficiary")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *handler) deleteBeneficiary(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Beneficiaries.Delete(r.Context(), userID(r), mux.Vars(r)["id"]); err != nil {
		h.fail(w, r, err, "failed_to_delete_beneficiary")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- subscriptions ----

func (h *handler) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.app.Subscriptions.List(r.Context(), userID(r))
	if err != nil {
		h.fail(w, r, err, "failed_to_fetch_subscriptions")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, subs)
}

func (h *handler) changeSubscription(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Tier string `json:"tier"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	sub, err := h.app.Subscriptions.Change(r.Context(), userID(r), body.Tier)
	if err != nil {
		h.fail(w, r, err, "failed_to_create_subscription")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, sub)
}
