package bulkload

import (
	"log/slog"
	"os"

	"go.uber.org/fx"

	"github.com/soldey/graph-api/internal/config"
	"github.com/soldey/graph-api/pkg/pgutils"
)

var Module = fx.Module("bulkload",
	fx.Provide(
		fx.Annotate(NewPgxCopier, fx.As(new(Copier))),
		fx.Annotate(func() pgutils.PgConflictParser { return pgutils.PgConflictParser{} }, fx.As(new(pgutils.ConflictParser))),
		provideLoader,
	),
)

func provideLoader(copier Copier, parser pgutils.ConflictParser, cfg *config.Config, log *slog.Logger) (*Loader, error) {
	if cfg.Transfer.Dir != "" {
		if err := os.MkdirAll(cfg.Transfer.Dir, 0o700); err != nil {
			return nil, err
		}
	}
	return NewLoader(copier, parser, cfg.Transfer.Dir, log), nil
}
