// Package render turns invoices into PDF documents stored on local disk.
package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"
	"github.com/johnfercher/maroto/v2"
	marotoconfig "github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/core/entity"
	"github.com/oklog/ulid/v2"
	"github.com/railzwaylabs/cargoledger/internal/config"
	"github.com/railzwaylabs/cargoledger/internal/invoice/domain"
	"go.uber.org/zap"
)

var ErrInvalidRef = errors.New("invalid_document_ref")

const defaultDir = "documents"

// PDFGenerator writes one file per generated document. The returned ref is
// the file name relative to the documents directory.
type PDFGenerator struct {
	dir string
	log *zap.Logger
}

func NewPDFGenerator(cfg config.Config, log *zap.Logger) (domain.DocumentGenerator, error) {
	dir := strings.TrimSpace(cfg.Documents.Dir)
	if dir == "" {
		dir = defaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create documents dir: %w", err)
	}
	return &PDFGenerator{dir: dir, log: log.Named("invoice.render")}, nil
}

func (g *PDFGenerator) Generate(ctx context.Context, doc domain.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ref := FileName(doc)

	m := maroto.New(pageConfig())
	m.AddRows(rows(doc)...)
	out, err := m.Generate()
	if err != nil {
		return "", fmt.Errorf("render %s: %w", ref, err)
	}

	path := filepath.Join(g.dir, ref)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out.GetBytes(), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", ref, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write %s: %w", ref, err)
	}
	g.log.Debug("invoice document written", zap.String("document_ref", ref))
	return ref, nil
}

func (g *PDFGenerator) Remove(_ context.Context, ref string) error {
	if ref == "" || ref != filepath.Base(ref) {
		return fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	err := os.Remove(filepath.Join(g.dir, ref))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// FileName builds AR-<slug>-<YYYYMM>-<fee_type>-<ulid>.pdf for receivables
// and AP-<slug>-<YYYYMM>-<ulid>.pdf for payables.
func FileName(doc domain.Document) string {
	name := slug.Make(doc.CounterpartyName)
	if name == "" {
		name = doc.CounterpartyID.String()
	}
	id := strings.ToLower(ulid.Make().String())
	if doc.Side == domain.SideSupplier {
		return fmt.Sprintf("AP-%s-%s-%s.pdf", name, doc.Period.Compact(), id)
	}
	return fmt.Sprintf("AR-%s-%s-%s-%s.pdf", name, doc.Period.Compact(), slug.Make(string(doc.FeeType)), id)
}

func pageConfig() *entity.Config {
	return marotoconfig.NewBuilder().
		WithLeftMargin(12).
		WithTopMargin(12).
		WithRightMargin(12).
		Build()
}
