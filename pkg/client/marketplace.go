package client

import (
	"context"
	"strings"
)

// Definitions fetches the integration catalog and returns only connectable
// definitions. Bundled capabilities without a connection type are excluded.
func (c *Client) Definitions(ctx context.Context) ([]Integration, error) {
	defs, err := c.ListIntegrations(ctx, 100)
	if err != nil {
		return nil, err
	}

	connectable := defs[:0]
	for _, def := range defs {
		if def.Connectable() {
			connectable = append(connectable, def)
		}
	}
	return connectable, nil
}

// FilterDefinitions narrows definitions by exact category match and a
// case-insensitive substring query against display name, description, and
// tags. Empty filters pass everything through.
func FilterDefinitions(defs []Integration, category, query string) []Integration {
	query = strings.ToLower(strings.TrimSpace(query))

	var out []Integration
	for _, def := range defs {
		if category != "" && def.Category != category {
			continue
		}
		if query != "" && !matchesQuery(&def, query) {
			continue
		}
		out = append(out, def)
	}
	return out
}

func matchesQuery(def *Integration, query string) bool {
	if strings.Contains(strings.ToLower(def.DisplayName), query) {
		return true
	}
	if strings.Contains(strings.ToLower(def.Name), query) {
		return true
	}
	if strings.Contains(strings.ToLower(def.Description), query) {
		return true
	}
	for _, tag := range def.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}
	return false
}
