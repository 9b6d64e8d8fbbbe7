package client

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func marketplaceFixtures() []Integration {
	apiKey := TypeAPIKey
	oauth := TypeOAuth2
	return []Integration{
		{ID: "1", Name: "stripe", DisplayName: "Stripe", Category: "finance", ConnectionType: &apiKey},
		{ID: "2", Name: "slack", DisplayName: "Slack", Category: "communication", ConnectionType: &oauth, Tags: []string{"chat", "messaging"}},
	}
}

func TestFilterDefinitionsByCategory(t *testing.T) {
	out := FilterDefinitions(marketplaceFixtures(), "finance", "")
	require.Len(t, out, 1)
	require.Equal(t, "Stripe", out[0].DisplayName)
}

func TestFilterDefinitionsByQuery(t *testing.T) {
	for _, query := range []string{"slack", "SLACK", "sLaCk"} {
		out := FilterDefinitions(marketplaceFixtures(), "", query)
		require.Len(t, out, 1, "query %q", query)
		require.Equal(t, "Slack", out[0].DisplayName)
	}
}

func TestFilterDefinitionsByTag(t *testing.T) {
	out := FilterDefinitions(marketplaceFixtures(), "", "messaging")
	require.Len(t, out, 1)
	require.Equal(t, "Slack", out[0].DisplayName)
}

func TestFilterDefinitionsEmptyFiltersPassThrough(t *testing.T) {
	out := FilterDefinitions(marketplaceFixtures(), "", "")
	require.Len(t, out, 2)
}
