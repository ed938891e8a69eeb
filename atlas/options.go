package atlas

import (
	"github.com/veiloq/fixturekit/config"
)

// WithAtlas makes the kit apply Atlas migrations from the project file set with
// config.WithAtlasHCLPath (default "atlas.hcl"). The kit's own logger is passed to Apply.
func WithAtlas() config.Option {
	return func(s *config.Settings) {
		s.SetMigrator(NewMigrator(s.AtlasHCLPath(), nil))
	}
}
