package redirects

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// CreateInput is the admin payload for a new redirect.
type CreateInput struct {
	FromPath   string `json:"fromPath" validate:"required,max=512"`
	ToPath     string `json:"toPath" validate:"required,max=2048"`
	StatusCode int    `json:"statusCode" validate:"omitempty"`
	Active     *bool  `json:"active,omitempty"`
}

// Service resolves and manages storefront path redirects.
type Service struct {
	repo *Repository
	logg *logger.Logger
}

// NewService validates deps and builds a Service.
func NewService(repo *Repository, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("redirect repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{repo: repo, logg: logg}, nil
}

// NormalizePath trims whitespace and a trailing slash. The root path is kept.
func NormalizePath(raw string) string {
	path := strings.TrimSpace(raw)
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}

func validStatus(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// Lookup resolves path to its active redirect. A miss is (nil, false, nil).
// Hit counting is best effort and never fails the lookup.
func (s *Service) Lookup(ctx context.Context, path string) (*models.Redirect, bool, error) {
	path = NormalizePath(path)
	if path == "" {
		return nil, false, nil
	}
	row, err := s.repo.FindActive(ctx, path)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup redirect")
	}
	if row == nil {
		return nil, false, nil
	}
	if err := s.repo.IncrementHits(ctx, row.ID); err != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"op": "redirects.lookup", "redirect_id": row.ID})
		s.logg.Error(logCtx, "redirect hit count failed", err)
	} else {
		row.Hits++
	}
	return row, true, nil
}

func (s *Service) List(ctx context.Context) ([]models.Redirect, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list redirects")
	}
	return rows, nil
}

// Create validates and stores a redirect. Status defaults to 301.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.Redirect, error) {
	from := NormalizePath(input.FromPath)
	to := strings.TrimSpace(input.ToPath)
	if !strings.HasPrefix(from, "/") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fromPath must start with /")
	}
	if to == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "toPath is required")
	}
	if strings.HasPrefix(to, "/") {
		to = NormalizePath(to)
	}
	if from == to {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fromPath and toPath must differ")
	}
	status := input.StatusCode
	if status == 0 {
		status = http.StatusMovedPermanently
	}
	if !validStatus(status) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "statusCode must be 301, 302, 307 or 308").
			WithDetails(map[string]any{"statusCode": status})
	}
	active := true
	if input.Active != nil {
		active = *input.Active
	}
	row := &models.Redirect{FromPath: from, ToPath: to, StatusCode: status, Active: active}
	if err := s.repo.Create(ctx, row); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "redirect already exists for this path")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create redirect")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"op": "redirects.create", "from_path": from}), "redirect created")
	return row, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	found, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete redirect")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "redirect not found")
	}
	return nil
}
