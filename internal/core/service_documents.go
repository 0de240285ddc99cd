package core

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"landledger/internal/blob"
	"landledger/pkg/domain"
)

// DocumentKey is the blob key of a document's bytes.
func DocumentKey(projectID, documentID, fileName string) string {
	return path.Join("projects", projectID, "documents", documentID, safeFileName(fileName))
}

// ExportKeyPrefix is the blob prefix under which a project's report exports
// are stored.
func ExportKeyPrefix(projectID string) string {
	return path.Join("exports", projectID) + "/"
}

// DefaultDocumentURLExpiry applies when DocumentURL is called without one.
const DefaultDocumentURLExpiry = 15 * time.Minute

func safeFileName(name string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	switch base {
	case "", ".", "..", "/":
		return "file"
	}
	return base
}

// UploadDocument stores the bytes read from r and records the document. The
// blob is removed again when the record cannot be committed.
func (s *Service) UploadDocument(ctx context.Context, doc domain.Document, r io.Reader) (domain.Document, domain.Result, error) {
	if s.blobs == nil {
		return domain.Document{}, domain.Result{}, ErrNoBlobStore
	}
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	doc.ID = id.String()
	doc.BlobKey = DocumentKey(doc.ProjectID, doc.ID, doc.FileName)
	if err := doc.Validate(); err != nil {
		s.recordAuditError(ctx, "upload_document", doc.ID, 0, err)
		return domain.Document{}, domain.Result{}, err
	}
	info, err := s.blobs.Put(ctx, doc.BlobKey, r, blob.PutOptions{
		ContentType: doc.ContentType,
		Metadata:    map[string]string{"project_id": doc.ProjectID, "file_name": doc.FileName},
	})
	if err != nil {
		s.logger.Error("document upload failed", "project_id", doc.ProjectID, "key", doc.BlobKey, "error", err)
		s.recordAuditError(ctx, "upload_document", doc.ID, 0, err)
		return domain.Document{}, domain.Result{}, fmt.Errorf("store document: %w", err)
	}
	doc.Size = info.Size
	doc.ETag = info.ETag
	if doc.ContentType == "" {
		doc.ContentType = info.ContentType
	}
	var created domain.Document
	res, err := s.run(ctx, "upload_document", func(tx domain.Transaction) (string, error) {
		var err error
		created, err = tx.CreateDocument(doc)
		return doc.ID, err
	})
	if err != nil {
		if _, delErr := s.blobs.Delete(ctx, doc.BlobKey); delErr != nil {
			s.logger.Warn("orphaned document blob", "key", doc.BlobKey, "error", delErr)
		}
		return domain.Document{}, res, err
	}
	return created, res, nil
}

// OpenDocument returns the document record and a reader over its bytes. The
// caller closes the reader.
func (s *Service) OpenDocument(ctx context.Context, id string) (domain.Document, io.ReadCloser, error) {
	if s.blobs == nil {
		return domain.Document{}, nil, ErrNoBlobStore
	}
	var doc domain.Document
	if err := s.read(ctx, "open_document", func(v domain.TransactionView) error {
		var ok bool
		if doc, ok = v.FindDocument(id); !ok {
			return notFound(domain.EntityDocument, id)
		}
		return nil
	}); err != nil {
		return domain.Document{}, nil, err
	}
	_, rc, err := s.blobs.Get(ctx, doc.BlobKey)
	if err != nil {
		return domain.Document{}, nil, fmt.Errorf("read document %s: %w", id, err)
	}
	return doc, rc, nil
}

// DocumentURL returns a pre-signed GET URL for the document's bytes after
// checking that they are still stored. Backends that cannot sign return
// blob.ErrUnsupported.
func (s *Service) DocumentURL(ctx context.Context, id string, expiry time.Duration) (domain.Document, string, error) {
	if s.blobs == nil {
		return domain.Document{}, "", ErrNoBlobStore
	}
	if expiry <= 0 {
		expiry = DefaultDocumentURLExpiry
	}
	var doc domain.Document
	if err := s.read(ctx, "document_url", func(v domain.TransactionView) error {
		var ok bool
		if doc, ok = v.FindDocument(id); !ok {
			return notFound(domain.EntityDocument, id)
		}
		return nil
	}); err != nil {
		return domain.Document{}, "", err
	}
	if _, err := s.blobs.Head(ctx, doc.BlobKey); err != nil {
		return domain.Document{}, "", fmt.Errorf("stat document %s: %w", id, err)
	}
	url, err := s.blobs.PresignURL(ctx, doc.BlobKey, blob.SignedURLOptions{Method: "GET", Expiry: expiry})
	if err != nil {
		return domain.Document{}, "", fmt.Errorf("sign document %s: %w", id, err)
	}
	return doc, url, nil
}

// DeleteDocument removes the record and then its bytes.
func (s *Service) DeleteDocument(ctx context.Context, id string) (domain.Result, error) {
	var doc domain.Document
	res, err := s.run(ctx, "delete_document", func(tx domain.Transaction) (string, error) {
		var ok bool
		if doc, ok = tx.Snapshot().FindDocument(id); !ok {
			return id, notFound(domain.EntityDocument, id)
		}
		return id, tx.DeleteDocument(id)
	})
	if err == nil {
		s.purgeBlobs(ctx, []domain.Document{doc})
	}
	return res, err
}

// ListDocuments returns the project's documents in upload order.
func (s *Service) ListDocuments(ctx context.Context, projectID string) ([]domain.Document, error) {
	var out []domain.Document
	err := s.read(ctx, "list_documents", func(v domain.TransactionView) error {
		out = v.ListDocuments(projectID)
		return nil
	})
	return out, err
}

// purgePrefix removes every blob under prefix, including bytes whose
// document record was never committed.
func (s *Service) purgePrefix(ctx context.Context, prefix string) {
	if s.blobs == nil {
		return
	}
	infos, err := s.blobs.List(ctx, prefix)
	if err != nil {
		s.logger.Warn("blob listing failed", "prefix", prefix, "error", err)
		return
	}
	for _, info := range infos {
		if _, err := s.blobs.Delete(ctx, info.Key); err != nil {
			s.logger.Warn("blob not removed", "key", info.Key, "error", err)
		}
	}
}

func (s *Service) purgeBlobs(ctx context.Context, docs []domain.Document) {
	if s.blobs == nil {
		return
	}
	for _, d := range docs {
		if _, err := s.blobs.Delete(ctx, d.BlobKey); err != nil {
			s.logger.Warn("document blob not removed", "document_id", d.ID, "key", d.BlobKey, "error", err)
		}
	}
}
