// Package documents attaches uploaded files to assets.
package documents

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/R3E-Network/fortivo/internal/app/domain/document"
	"github.com/R3E-Network/fortivo/internal/app/storage"
	"github.com/R3E-Network/fortivo/internal/errors"
	"github.com/R3E-Network/fortivo/internal/uploads"
	"github.com/R3E-Network/fortivo/pkg/logger"
)

// PermissionChecker enforces the tier document permission.
type PermissionChecker interface {
	CheckDocumentPermission(ctx context.Context, userID string) error
}

// Service manages asset documents.
type Service struct {
	store       storage.DocumentStore
	assets      storage.AssetStore
	blobs       uploads.Store
	permissions PermissionChecker
	log         *logger.Logger
}

// New constructs a document service.
func New(store storage.DocumentStore, assets storage.AssetStore, blobs uploads.Store, permissions PermissionChecker, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("documents")
	}
	return &Service{store: store, assets: assets, blobs: blobs, permissions: permissions, log: log}
}

// List returns the documents of one of the user's assets, newest first.
func (s *Service) List(ctx context.Context, userID, assetID string) ([]document.Document, error) {
	if err := s.checkAsset(ctx, userID, assetID); err != nil {
		return nil, err
	}
	docs, err := s.store.ListDocuments(ctx, assetID)
	if err != nil {
		return nil, errors.Internal("failed_to_fetch_documents", err)
	}
	return docs, nil
}

// Upload stores file and records it against the asset. name defaults to the
// original filename.
func (s *Service) Upload(ctx context.Context, userID, assetID, name string, file *uploads.File) (document.Document, error) {
	if s.permissions != nil {
		if err := s.permissions.CheckDocumentPermission(ctx, userID); err != nil {
			return document.Document{}, err
		}
	}
	if err := s.checkAsset(ctx, userID, assetID); err != nil {
		return document.Document{}, err
	}
	if file == nil || file.Reader == nil {
		return document.Document{}, errors.BadRequest("no_file_uploaded", "")
	}

	obj, err := s.blobs.Save(ctx, uploads.KindDocuments, file.Filename, file.ContentType, file.Reader)
	if err != nil {
		return document.Document{}, UploadError(err, "failed_to_upload_document")
	}

	if name = strings.TrimSpace(name); name == "" {
		name = file.Filename
	}
	doc, err := s.store.CreateDocument(ctx, document.Document{
		AssetID:  assetID,
		Name:     name,
		FilePath: obj.Path,
		FileType: document.FileTypeFor(file.ContentType),
		FileSize: obj.Size,
	})
	if err != nil {
		if delErr := s.blobs.Delete(ctx, obj.Path); delErr != nil {
			s.log.WithContext(ctx).WithError(delErr).Warn("failed to remove orphaned upload")
		}
		return document.Document{}, errors.Internal("failed_to_upload_document", err)
	}

	s.log.WithContext(ctx).WithField("asset_id", assetID).WithField("document_id", doc.ID).Info("document uploaded")
	return doc, nil
}

// Delete removes a document and, best effort, its file.
func (s *Service) Delete(ctx context.Context, userID, assetID, docID string) error {
	if err := s.checkAsset(ctx, userID, assetID); err != nil {
		return err
	}
	doc, err := s.store.GetDocument(ctx, docID)
	if stderrors.Is(err, storage.ErrNotFound) || (err == nil && doc.AssetID != assetID) {
		return errors.NotFound("document_not_found")
	}
	if err != nil {
		return errors.Internal("failed_to_delete_document", err)
	}

	if err := s.blobs.Delete(ctx, doc.FilePath); err != nil {
		s.log.WithContext(ctx).WithError(err).WithField("path", doc.FilePath).Warn("failed to delete file")
	}
	if err := s.store.DeleteDocument(ctx, docID); err != nil && !stderrors.Is(err, storage.ErrNotFound) {
		return errors.Internal("failed_to_delete_document", err)
	}
	return nil
}

func (s *Service) checkAsset(ctx context.Context, userID, assetID string) error {
	a, err := s.assets.GetAsset(ctx, assetID)
	if stderrors.Is(err, storage.ErrNotFound) || (err == nil && a.UserID != userID) {
		return errors.NotFound("asset_not_found")
	}
	if err != nil {
		return errors.Internal("failed_to_fetch_asset", err)
	}
	return nil
}

// UploadError maps blob store failures onto API errors.
func UploadError(err error, fallback errors.ErrorCode) error {
	if stderrors.Is(err, uploads.ErrTooLarge) {
		return errors.TooLarge("file_too_large", "File exceeds the 10MB upload limit")
	}
	return errors.Internal(fallback, err)
}
