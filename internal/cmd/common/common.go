package common

import (
	"context"
	"fmt"
	"os"

	"vdt/internal/catalog"
	"vdt/internal/history"
	"vdt/pkg/log"

	"github.com/fatih/color"
	"go.uber.org/zap"
)

// Fatal reports a startup failure on stderr and in the application log,
// then exits.
func Fatal(msg string, err error) {
	_, _ = color.New(color.FgRed).Fprintf(os.Stderr, "%s: %v\n", msg, err)
	log.Fatal(msg, zap.Error(err))
}

// LoadCatalog loads the catalog at path, or the embedded one when path is
// empty.
func LoadCatalog(path string) *catalog.Catalog {
	cat, err := catalog.Load(path)
	if err != nil {
		Fatal("failed to load catalog", err)
	}
	log.Debug("Catalog loaded", zap.String("path", path), zap.Int("codes", cat.Len()))
	return cat
}

// OpenHistory opens the history database at path.
func OpenHistory(ctx context.Context, path string) *history.Store {
	store, err := history.Open(ctx, path)
	if err != nil {
		Fatal("failed to open history database", fmt.Errorf("%s: %w", path, err))
	}
	return store
}
