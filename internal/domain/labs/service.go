package labs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebridge/carebridge/internal/platform/blobstore"
)

// Bucket holds every uploaded lab image.
const Bucket = "lab-documents"

const analysisPreamble = `You are an AI medical assistant reviewing an image uploaded by a diagnostic laboratory.
- Describe what the image shows using appropriate medical terminology
- Point out findings that may need attention
- Be clear about the limitations of AI analysis and never make a definitive diagnosis
- Always recommend professional medical review for anything concerning
- Structure the response clearly`

var (
	ErrUnsupportedType = errors.New("only image uploads can be analyzed")
	ErrForbidden       = errors.New("document belongs to another lab")
)

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/heic": true,
}

// Describer produces a text description of an image reachable at a URL.
type Describer interface {
	DescribeImage(ctx context.Context, preamble, imageURL string) (string, error)
}

type Service struct {
	docs      DocumentRepository
	store     blobstore.Store
	describer Describer
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(docs DocumentRepository, store blobstore.Store, describer Describer, logger zerolog.Logger) *Service {
	return &Service{docs: docs, store: store, describer: describer, logger: logger, now: time.Now}
}

// objectKey names an upload <unix-millis>_<random>. Stored objects are
// served without authentication, so the random part is a full v4 UUID and
// the key cannot be guessed.
func (s *Service) objectKey() string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strconv.FormatInt(s.now().UnixMilli(), 10) + "_" + random
}

// sniff resolves the content type from the declared value, falling back to
// the leading bytes when it is missing or generic.
func sniff(declared string, body io.Reader) (string, io.Reader, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", nil, err
	}
	head = head[:n]
	body = io.MultiReader(bytes.NewReader(head), body)

	ct, _, perr := mime.ParseMediaType(declared)
	if perr != nil || ct == "" || ct == "application/octet-stream" {
		ct, _, _ = mime.ParseMediaType(http.DetectContentType(head))
	}
	return ct, body, nil
}

// Analyze stores an image, asks the completion provider to describe it and
// records the result. If analysis fails the stored object stays and no
// document is written.
func (s *Service) Analyze(ctx context.Context, labID uuid.UUID, contentType string, body io.Reader) (*LabDocument, error) {
	ct, body, err := sniff(contentType, body)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if !allowedTypes[ct] {
		return nil, fmt.Errorf("%w: got %s", ErrUnsupportedType, ct)
	}

	key := s.objectKey()
	if _, err := s.store.Put(ctx, Bucket, key, ct, body); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	url := s.store.URL(Bucket, key)

	analysis, err := s.describer.DescribeImage(ctx, analysisPreamble, url)
	if err != nil {
		s.logger.Warn().Err(err).Str("object_key", key).Msg("lab image analysis failed")
		return nil, err
	}

	doc := &LabDocument{
		LabID:        labID,
		ImageURL:     url,
		ObjectKey:    key,
		Analysis:     analysis,
		DocumentType: DocumentTypeMedicalImage,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create lab document: %w", err)
	}
	return doc, nil
}

func (s *Service) List(ctx context.Context, labID uuid.UUID, limit, offset int) ([]*LabDocument, int, error) {
	return s.docs.ListByLab(ctx, labID, limit, offset)
}

func (s *Service) Get(ctx context.Context, labID, id uuid.UUID) (*LabDocument, error) {
	d, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.LabID != labID {
		return nil, ErrForbidden
	}
	return d, nil
}
