package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/open-statutes/trellis/pkg/law"
	"github.com/open-statutes/trellis/pkg/logger"
	"github.com/open-statutes/trellis/pkg/store"
	pgxstore "github.com/open-statutes/trellis/pkg/store/pgx"
	"github.com/open-statutes/trellis/pkg/validate"
)

// GetNodeHandler returns one node by identity.
func GetNodeHandler(c echo.Context) error {
	id, err := nodeIDFromQuery(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	nodeStore := pgxstore.NewNodeDBStorageWithConnection(appOf(c).DBConn)
	node, err := nodeStore.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Node not found"})
		}
		if errors.Is(err, law.ErrMalformedIdentifier) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		logger.Error("[Server][GetNode] Lookup failed", "id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	return c.JSON(http.StatusOK, node)
}

// GetChildrenHandler returns the direct children of a node in identity
// order.
func GetChildrenHandler(c echo.Context) error {
	id, err := nodeIDFromQuery(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	nodeStore := pgxstore.NewNodeDBStorageWithConnection(appOf(c).DBConn)
	children, err := nodeStore.ChildrenOf(c.Request().Context(), id)
	if err != nil {
		logger.Error("[Server][GetChildren] Lookup failed", "id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"parent":   id,
		"children": children,
	})
}

// GetRootPathHandler reconstructs the ancestor chain of a node.
func GetRootPathHandler(c echo.Context) error {
	id, err := nodeIDFromQuery(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	nodeStore := pgxstore.NewNodeDBStorageWithConnection(appOf(c).DBConn)
	path, err := validate.New(nodeStore).RootPath(c.Request().Context(), id)
	if err != nil {
		logger.Error("[Server][GetRootPath] Walk failed", "id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	return c.JSON(http.StatusOK, path)
}

// GetSubtreeHandler returns every node under a prefix pattern.
func GetSubtreeHandler(c echo.Context) error {
	pattern := c.QueryParam("pattern")
	if pattern == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing pattern parameter"})
	}

	nodeStore := pgxstore.NewNodeDBStorageWithConnection(appOf(c).DBConn)
	nodes, err := store.CollectPrefix(c.Request().Context(), nodeStore, pattern)
	if err != nil {
		if errors.Is(err, law.ErrMalformedIdentifier) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		logger.Error("[Server][GetSubtree] Scan failed", "pattern", pattern, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"pattern": pattern,
		"count":   len(nodes),
		"nodes":   nodes,
	})
}
