package routes

import (
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/open-statutes/trellis/internal/server/middleware"
	"github.com/open-statutes/trellis/pkg/law"
)

// corpusFromPath assembles the corpus identity from the three path
// parameters of every /corpora route.
func corpusFromPath(c echo.Context) (law.ID, error) {
	raw := c.Param("country") + law.Separator + c.Param("jurisdiction") + law.Separator + c.Param("corpus")
	id, err := law.ParseID(raw)
	if err != nil {
		return "", err
	}
	if !id.IsRootKind() || id.Depth() != 3 {
		return "", fmt.Errorf("%w: %q is not a corpus identity", law.ErrMalformedIdentifier, raw)
	}
	return id, nil
}

// nodeIDFromQuery validates the id query parameter carried by node routes.
// Node identities contain path separators, so they cannot be path params.
func nodeIDFromQuery(c echo.Context) (law.ID, error) {
	raw := c.QueryParam("id")
	if raw == "" {
		return "", fmt.Errorf("%w: missing id parameter", law.ErrMalformedIdentifier)
	}
	return law.ParseID(raw)
}

// belongsToCorpus accepts nodes inside the corpus subtree plus the
// jurisdiction root above it, so an extraction run can submit the
// jurisdiction and corpus root pair in its first batch. The bare country
// segment is not a node and stays rejected.
func belongsToCorpus(id, corpus law.ID) bool {
	if id.MatchesPrefix(string(corpus)) {
		return true
	}
	return id.Depth() >= 2 && corpus.MatchesPrefix(string(id))
}

func appOf(c echo.Context) *middleware.App {
	return c.(*middleware.AppContext).App
}
