package services

import (
	"context"
	"log"
	"strings"

	"face-shape-api/internal/config"
	"face-shape-api/internal/dedup"
	"face-shape-api/internal/models"
	"face-shape-api/internal/ratelimit"
	"face-shape-api/internal/verify"
)

// UnknownIP is recorded when no client address can be determined. All such
// requests share one rate-limit bucket.
const UnknownIP = "unknown"

const globalKey = "global"

// Rejection is a refused admission with its HTTP mapping. RetryAfterSeconds
// is set on throttle and duplicate rejections, Hash on duplicates only.
type Rejection struct {
	Status            int
	Message           string
	RetryAfterSeconds int
	Hash              string
}

func (r *Rejection) Error() string {
	return r.Message
}

// AdmissionService decides whether an upload may proceed and, when it may,
// issues the signed upload grant. Checks run cheapest first so rejected
// requests touch as little state as possible: validation, then the three
// rate-limit tiers, then captcha verification, then dedup, then storage.
type AdmissionService struct {
	cfg      *config.Config
	ipTier   *ratelimit.Window
	fpTier   *ratelimit.Window
	global   *ratelimit.Window
	detector *dedup.Detector
	verifier verify.Verifier
	storage  *StorageService
}

// NewAdmissionService wires the admission pipeline.
func NewAdmissionService(cfg *config.Config, verifier verify.Verifier, storage *StorageService) *AdmissionService {
	return &AdmissionService{
		cfg:      cfg,
		ipTier:   ratelimit.NewWindow(),
		fpTier:   ratelimit.NewWindow(),
		global:   ratelimit.NewWindow(),
		detector: dedup.NewDetector(cfg.DedupWindow),
		verifier: verifier,
		storage:  storage,
	}
}

// Admit runs the full admission pipeline for one upload intent. It returns
// the signed grant, or a *Rejection describing why the request was refused.
func (s *AdmissionService) Admit(ctx context.Context, req *models.UploadInitRequest, ip string) (*models.UploadInitResponse, error) {
	if ip == "" {
		ip = UnknownIP
	}

	if req.CaptchaToken == "" {
		return nil, &Rejection{Status: 403, Message: "Missing Turnstile token"}
	}

	if rej := s.validate(req); rej != nil {
		return nil, rej
	}

	if res := s.ipTier.Consume(ip, s.cfg.IPLimit, s.cfg.IPWindow); !res.Allowed {
		return nil, &Rejection{
			Status:            429,
			Message:           "Too many requests from this IP. Please slow down.",
			RetryAfterSeconds: res.RetryAfterSeconds,
		}
	}

	if res := s.fpTier.Consume(req.Fingerprint, s.cfg.FPLimit, s.cfg.FPWindow); !res.Allowed {
		return nil, &Rejection{
			Status:            429,
			Message:           "Too many requests from this device. Please try later.",
			RetryAfterSeconds: res.RetryAfterSeconds,
		}
	}

	if res := s.global.Consume(globalKey, s.cfg.GlobalLimit, s.cfg.GlobalWindow); !res.Allowed {
		return nil, &Rejection{
			Status:            429,
			Message:           "Upload service is busy. Please retry shortly.",
			RetryAfterSeconds: res.RetryAfterSeconds,
		}
	}

	ok, err := s.verifier.Verify(ctx, req.CaptchaToken, ip)
	if err != nil {
		log.Printf("Turnstile verification error: %v", err)
		ok = false
	}
	if !ok {
		return nil, &Rejection{Status: 403, Message: "Captcha verification failed"}
	}

	if res := s.detector.Check(req.Hash, ip, req.Fingerprint); res.Duplicate {
		return nil, &Rejection{
			Status:            409,
			Message:           "Duplicate upload detected. Please try a different image.",
			RetryAfterSeconds: res.RetryAfterSeconds,
			Hash:              req.Hash,
		}
	}

	if s.storage == nil {
		return nil, &Rejection{Status: 500, Message: "Storage is not configured"}
	}

	grant, err := s.storage.CreateSignedUpload(ctx, req.Extension, req.ContentType, s.cfg.SignedURLGrant)
	if err != nil {
		log.Printf("Signed upload error: %v", err)
		return nil, &Rejection{Status: 500, Message: "Failed to create upload URL"}
	}

	return &models.UploadInitResponse{
		UploadURL: grant.UploadURL,
		FileURL:   grant.FileURL,
		Path:      grant.Path,
		Token:     grant.Token,
		ExpiresIn: int(s.cfg.SignedURLGrant.Seconds()),
		Method:    grant.Method,
		Headers:   grant.Headers,
	}, nil
}

func (s *AdmissionService) validate(req *models.UploadInitRequest) *Rejection {
	if req.ContentType == "" || !s.contentTypeAllowed(req.ContentType) {
		return &Rejection{Status: 400, Message: s.contentTypeMessage()}
	}

	if req.Size <= 0 || req.Size > s.cfg.MaxFileBytes {
		return &Rejection{Status: 400, Message: "File too large or invalid size"}
	}

	if req.Fingerprint == "" {
		return &Rejection{Status: 400, Message: "Missing fingerprint"}
	}

	if len(req.Hash) < 16 {
		return &Rejection{Status: 400, Message: "Missing or invalid file hash"}
	}

	if req.Width != nil && (*req.Width <= 0 || *req.Width > 8000) {
		return &Rejection{Status: 400, Message: "Invalid image width"}
	}

	if req.Height != nil && (*req.Height <= 0 || *req.Height > 8000) {
		return &Rejection{Status: 400, Message: "Invalid image height"}
	}

	return nil
}

func (s *AdmissionService) contentTypeAllowed(contentType string) bool {
	for _, allowed := range s.cfg.AllowedContentTypes {
		if allowed == contentType {
			return true
		}
	}
	return false
}

func (s *AdmissionService) contentTypeMessage() string {
	types := s.cfg.AllowedContentTypes
	switch len(types) {
	case 0:
		return "No content types are allowed"
	case 1:
		return "Only " + types[0] + " is allowed"
	default:
		return "Only " + strings.Join(types[:len(types)-1], ", ") + " and " + types[len(types)-1] + " are allowed"
	}
}
