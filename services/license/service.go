package license

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"fanfan-translator/pkg/db/pagination"
	"fanfan-translator/pkg/sequence"

	"go.uber.org/zap"
)

const (
	MinBatch    = 1
	MaxBatch    = 500
	DefaultDays = 30

	maxCollisionRetries = 5
)

var (
	ErrCodeNotFound   = errors.New("license code not found")
	ErrCodeUsed       = errors.New("license code already used")
	ErrMemberNotFound = errors.New("member not found")
	ErrInvalidCount   = errors.New("count must be between 1 and 500")
	ErrInvalidDays    = errors.New("days must be at least 1")
	ErrInvalidCursor  = errors.New("invalid cursor")
	ErrNoDatabase     = errors.New("database not configured")
)

var codePattern = regexp.MustCompile(`(?i)^` + sequence.LicensePrefix + `[A-Z0-9]{10}$`)

// IsCode reports whether text looks like a license code, ignoring case and
// surrounding whitespace.
func IsCode(text string) bool {
	return codePattern.MatchString(strings.TrimSpace(text))
}

type Service struct {
	repo Repository
	seq  sequence.Generator
	now  func() time.Time
}

func NewService(repo Repository, seq sequence.Generator, clock func() time.Time) *Service {
	if seq == nil {
		seq = sequence.NewGenerator()
	}
	if clock == nil {
		clock = time.Now
	}
	return &Service{repo: repo, seq: seq, now: clock}
}

// Generate creates up to count fresh codes. A code that still collides after
// a few retries is skipped, so the batch may come back short.
func (s *Service) Generate(ctx context.Context, count, days int) ([]LicenseCode, error) {
	if s.repo == nil {
		return nil, ErrNoDatabase
	}
	if count < MinBatch || count > MaxBatch {
		return nil, ErrInvalidCount
	}
	if days < 1 {
		return nil, ErrInvalidDays
	}

	now := s.now().UTC()
	out := make([]LicenseCode, 0, count)
	for i := 0; i < count; i++ {
		lc, err := s.insertUnique(ctx, days, now)
		if err != nil {
			return out, err
		}
		if lc == nil {
			zap.L().Warn("[License] skipping code after repeated collisions", zap.Int("index", i))
			continue
		}
		out = append(out, *lc)
	}

	zap.L().Info("[License] generated codes", zap.Int("requested", count), zap.Int("created", len(out)), zap.Int("days", days))
	return out, nil
}

func (s *Service) insertUnique(ctx context.Context, days int, now time.Time) (*LicenseCode, error) {
	for attempt := 0; attempt < maxCollisionRetries; attempt++ {
		code, err := s.seq.NextLicenseCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate code: %w", err)
		}

		lc := &LicenseCode{Code: code, Days: days, CreatedAt: now}
		inserted, err := s.repo.InsertCode(ctx, lc)
		if err != nil {
			return nil, fmt.Errorf("failed to insert code: %w", err)
		}
		if inserted {
			return lc, nil
		}
	}
	return nil, nil
}

// Redeem consumes code for lineUserID. An active membership is extended from
// its current expiry; otherwise from now.
func (s *Service) Redeem(ctx context.Context, code, lineUserID string) (*Redemption, error) {
	if s.repo == nil {
		return nil, ErrNoDatabase
	}

	code = strings.ToUpper(strings.TrimSpace(code))
	r, err := s.repo.Redeem(ctx, code, lineUserID, s.now().UTC())
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) || errors.Is(err, ErrCodeUsed) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to redeem code: %w", err)
	}

	zap.L().Info("[License] code redeemed",
		zap.String("line_user_id", lineUserID),
		zap.Int("days", r.Days),
		zap.Time("expire_at", r.ExpireAt),
	)
	return r, nil
}

func (s *Service) List(ctx context.Context, p pagination.Pagination) ([]LicenseCode, pagination.PageInfo, error) {
	if s.repo == nil {
		return nil, pagination.PageInfo{}, ErrNoDatabase
	}
	p = p.Normalize()

	var beforeID int64
	if p.Cursor != "" {
		c, err := pagination.DecodeCursor(p.Cursor)
		if err != nil {
			return nil, pagination.PageInfo{}, ErrInvalidCursor
		}
		beforeID, err = strconv.ParseInt(c.ID, 10, 64)
		if err != nil {
			return nil, pagination.PageInfo{}, ErrInvalidCursor
		}
	}

	rows, err := s.repo.List(ctx, beforeID, p.Limit+1)
	if err != nil {
		return nil, pagination.PageInfo{}, fmt.Errorf("failed to list codes: %w", err)
	}

	page, info := pagination.BuildCursorPage(rows, p.Limit, func(lc LicenseCode) string {
		cursor, _ := pagination.EncodeCursor(pagination.Cursor{ID: strconv.FormatInt(lc.ID, 10)})
		return cursor
	})
	if page == nil {
		page = []LicenseCode{}
	}
	return page, info, nil
}

var exportHeader = []string{"code", "days", "used", "used_by", "used_at", "created_at"}

// Export writes codes as CSV, newest first. limit <= 0 exports everything.
func (s *Service) Export(ctx context.Context, w io.Writer, limit int) error {
	if s.repo == nil {
		return ErrNoDatabase
	}

	rows, err := s.repo.Export(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to load codes: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, lc := range rows {
		used := "0"
		if lc.Used {
			used = "1"
		}
		usedBy, usedAt := "", ""
		if lc.UsedBy != nil {
			usedBy = strconv.FormatInt(*lc.UsedBy, 10)
		}
		if lc.UsedAt != nil {
			usedAt = lc.UsedAt.UTC().Format(time.RFC3339)
		}
		record := []string{lc.Code, strconv.Itoa(lc.Days), used, usedBy, usedAt, lc.CreatedAt.UTC().Format(time.RFC3339)}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExpireMembers deactivates active members whose expiry is before now.
func (s *Service) ExpireMembers(ctx context.Context, now time.Time) (int64, error) {
	if s.repo == nil {
		return 0, ErrNoDatabase
	}
	n, err := s.repo.ExpireMembers(ctx, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to expire members: %w", err)
	}
	if n > 0 {
		zap.L().Info("[License] members expired", zap.Int64("count", n))
	}
	return n, nil
}

func (s *Service) Member(ctx context.Context, lineUserID string) (*Member, error) {
	if s.repo == nil {
		return nil, ErrNoDatabase
	}
	return s.repo.GetMember(ctx, lineUserID)
}

// Available reports whether a database backs the service.
func (s *Service) Available() bool { return s.repo != nil }

// Now exposes the service clock to the task handlers.
func (s *Service) Now() time.Time { return s.now() }
