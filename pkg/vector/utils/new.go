package vectorutils

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/releaselens/releaselens/pkg/vector"
	"github.com/releaselens/releaselens/pkg/vector/chroma"
	"github.com/releaselens/releaselens/pkg/vector/sqlitevec"
)

type NewVectorDriverOpts struct {
	ProviderType string

	// TargetURL is the server URL for network-backed providers ("chroma").
	TargetURL string

	// Path is the database file path for embedded providers ("sqlite").
	Path string

	// Dimensions is the embedding vector width, required for "sqlite".
	Dimensions int

	Collection string
	Logger     *zap.Logger
}

func NewVectorDriver(o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case "sqlite":
		return sqlitevec.NewSQLiteVecDriver(sqlitevec.Config{
			DBPath:     o.Path,
			Dimensions: uint(o.Dimensions),
		}, o.Logger)
	case "chroma":
		return chroma.NewChromaDriver(chroma.Config{
			URL:            o.TargetURL,
			CollectionName: o.Collection,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
