package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tgo/mindvault/internal/apperr"
	"github.com/tgo/mindvault/internal/model"
	"github.com/tgo/mindvault/internal/repository"
)

// FileService stores upload bytes under the storage root and records the
// handle the document ledger references. The ledger never touches bytes.
type FileService struct {
	files       *repository.FileRepository
	storagePath string
}

func NewFileService(files *repository.FileRepository, storagePath string) *FileService {
	return &FileService{files: files, storagePath: storagePath}
}

// Upload persists the stream and returns the recorded handle. The sha256 of
// the content is kept for dedupe lookups.
func (s *FileService) Upload(ctx context.Context, originName, mimeType string, reader io.Reader) (*model.UploadedFile, error) {
	if originName == "" {
		return nil, apperr.Validationf("file name must not be empty")
	}

	fileID := uuid.New()
	reference := filepath.ToSlash(filepath.Join("files", fileID.String(), filepath.Base(originName)))
	storagePath := filepath.Join(s.storagePath, fileID.String(), filepath.Base(originName))

	if err := os.MkdirAll(filepath.Dir(storagePath), 0o755); err != nil {
		return nil, err
	}
	dst, err := os.Create(storagePath)
	if err != nil {
		return nil, err
	}
	defer dst.Close()

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(dst, hasher), reader)
	if err != nil {
		os.Remove(storagePath)
		return nil, err
	}

	file := &model.UploadedFile{
		Reference:   reference,
		OriginName:  originName,
		Size:        size,
		MimeType:    mimeType,
		Hash:        hex.EncodeToString(hasher.Sum(nil)),
		StoragePath: storagePath,
	}
	file.ID = fileID

	if err := s.files.Create(ctx, file); err != nil {
		os.Remove(storagePath)
		return nil, err
	}
	return file, nil
}

func (s *FileService) Get(ctx context.Context, id uuid.UUID) (*model.UploadedFile, error) {
	file, err := s.files.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("file")
		}
		return nil, err
	}
	return file, nil
}

// FindByHash supports dedupe: a client holding content with a known hash can
// reuse the existing handle instead of re-uploading.
func (s *FileService) FindByHash(ctx context.Context, hash string) (*model.UploadedFile, error) {
	file, err := s.files.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("file")
		}
		return nil, err
	}
	return file, nil
}

func (s *FileService) StoragePathFor(ctx context.Context, id uuid.UUID) (string, error) {
	file, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return file.StoragePath, nil
}
