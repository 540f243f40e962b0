// Package thumbs renders JPEG thumbnails for catalog items that have none.
package thumbs

import (
	"bytes"
	"fmt"
	"os"

	"github.com/disintegration/imaging"

	"colsync/internal/collection"
	"colsync/internal/model"
)

const (
	DefaultMaxSize = 256
	jpegQuality    = 85
)

// Store is the thumbnail storage the generator writes to.
type Store interface {
	FindByHash(uniqueHash string, fileSize int64) (int64, error)
	InsertThumbnail(uniqueHash string, fileSize int64, thumb *model.Thumbnail) (int64, error)
}

// ItemLister lists catalog items with their on-disk location.
type ItemLister interface {
	ListItemLocations() ([]*collection.ItemLocation, error)
}

// Result counts what one Build call did.
type Result struct {
	Generated int
	Existing  int
	Failed    int
}

// Generator renders thumbnails with longest side MaxSize for image items.
type Generator struct {
	items    ItemLister
	store    Store
	logger   collection.Logger
	observer collection.Observer
	MaxSize  int
}

// NewGenerator creates a generator with DefaultMaxSize.
func NewGenerator(items ItemLister, store Store, logger collection.Logger) *Generator {
	return &Generator{items: items, store: store, logger: logger, MaxSize: DefaultMaxSize}
}

// SetObserver lets a caller stop Build between items.
func (g *Generator) SetObserver(o collection.Observer) { g.observer = o }

// Build renders a thumbnail for every image item whose content identity
// has none yet. Files that cannot be decoded are counted and skipped.
func (g *Generator) Build() (*Result, error) {
	locations, err := g.items.ListItemLocations()
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}

	res := &Result{}
	for _, loc := range locations {
		if g.observer != nil && !g.observer.ContinueQuery() {
			g.logger.Info("thumbnail build cancelled", "generated", res.Generated)
			return res, collection.ErrCancelled
		}
		if loc.Category != collection.CategoryImage || loc.UniqueHash == "" {
			continue
		}

		existing, err := g.store.FindByHash(loc.UniqueHash, loc.FileSize)
		if err != nil {
			return res, err
		}
		if existing != 0 {
			res.Existing++
			continue
		}

		thumb, err := g.render(loc.FilePath())
		if err != nil {
			g.logger.Warn("cannot render thumbnail", "path", loc.FilePath(), "error", err)
			res.Failed++
			continue
		}
		if _, err := g.store.InsertThumbnail(loc.UniqueHash, loc.FileSize, thumb); err != nil {
			return res, err
		}
		res.Generated++
	}

	g.logger.Info("thumbnails built", "generated", res.Generated, "existing", res.Existing, "failed", res.Failed)
	return res, nil
}

func (g *Generator) render(filePath string) (*model.Thumbnail, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Open(filePath, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	b := img.Bounds()
	if b.Dx() > g.MaxSize || b.Dy() > g.MaxSize {
		img = imaging.Fit(img, g.MaxSize, g.MaxSize, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("encoding thumbnail: %w", err)
	}
	return &model.Thumbnail{
		ModificationDate: info.ModTime(),
		Width:            img.Bounds().Dx(),
		Height:           img.Bounds().Dy(),
		Data:             buf.Bytes(),
	}, nil
}
