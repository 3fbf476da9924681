package app

import (
	"context"
	"errors"

	"witswatch/internal/export"
	"witswatch/internal/service"
)

// Export writes the derived files from the stored tables.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	dir := opts.Dir
	if dir == "" {
		dir = a.Config.Export.Dir
	}
	if dir == "" {
		return errors.New("no export directory: set --dir or export.dir")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	tables, err := service.LoadTables(ctx, store)
	if err != nil {
		return err
	}

	w := export.NewWriter(dir, opts.PNG || a.Config.Export.PNG, a.Config.ResolveMaxPoints(opts.MaxPoints), a.Logger)
	if err := w.Export(ctx, tables.ExportSet()); err != nil {
		return err
	}
	a.Logger.Info().Str("dir", dir).Int("intervals", tables.Nodes.Len()).Msg("exports written")
	return nil
}
