package postgres

import (
	"context"

	"github.com/R3E-Network/fortivo/internal/app/domain/document"
)

const documentColumns = `id, asset_id, name, file_path, file_type, file_size, uploaded_at`

// --- DocumentStore ----------------------------------------------------------

func (s *Store) CreateDocument(ctx context.Context, doc document.Document) (document.Document, error) {
	if doc.ID == "" {
		doc.ID = newID()
	}
	doc.UploadedAt = s.now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, doc.ID, doc.AssetID, doc.Name, doc.FilePath, string(doc.FileType), doc.FileSize, doc.UploadedAt)
	if err != nil {
		return document.Document{}, mapErr(err)
	}
	return doc, nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (document.Document, error) {
	var doc document.Document
	err := s.db.GetContext(ctx, &doc, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	return doc, mapErr(err)
}

func (s *Store) ListDocuments(ctx context.Context, assetID string) ([]document.Document, error) {
	result := make([]document.Document, 0)
	err := s.db.SelectContext(ctx, &result, `
		SELECT `+documentColumns+` FROM documents WHERE asset_id = $1 ORDER BY uploaded_at DESC
	`, assetID)
	return result, mapErr(err)
}

func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	return expectRows(s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id))
}
