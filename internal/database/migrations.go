package database

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/modelgrid/connecthub/internal/models"
)

// AutoMigrate applies the schema for all persistent models.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}

	return db.AutoMigrate(
		&models.Integration{},
		&models.Connection{},
		&models.CredentialRecord{},
		&models.AuditLog{},
		&models.CacheEntry{},
	)
}

// SeedCatalog inserts the built-in integration catalog when the table is
// empty. Operators extend the catalog through the database afterwards.
func SeedCatalog(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}

	var count int64
	if err := db.Model(&models.Integration{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count integrations: %w", err)
	}
	if count > 0 {
		return nil
	}

	oauth2 := models.ConnectionTypeOAuth2
	apiKey := models.ConnectionTypeAPIKey
	databaseKind := models.ConnectionTypeDatabase
	serviceAccount := models.ConnectionTypeServiceAccount

	catalog := []models.Integration{
		{
			Name:           "stripe",
			DisplayName:    "Stripe",
			Description:    "Payments, invoices and balance data",
			Category:       "finance",
			Tags:           mustTags("payments", "billing"),
			ConnectionType: &apiKey,
			PingURL:        "https://api.stripe.com/v1/balance",
		},
		{
			Name:           "slack",
			DisplayName:    "Slack",
			Description:    "Workspace messaging and channel history",
			Category:       "communication",
			Tags:           mustTags("chat", "notifications"),
			ConnectionType: &oauth2,
			OAuthAuthURL:   "https://slack.com/oauth/v2/authorize",
			OAuthTokenURL:  "https://slack.com/api/oauth.v2.access",
			PingURL:        "https://slack.com/api/auth.test",
			OAuthScopes:    mustTags("channels:read", "chat:write"),
		},
		{
			Name:           "warehouse-postgres",
			DisplayName:    "PostgreSQL Warehouse",
			Description:    "Direct connection to a customer managed PostgreSQL database",
			Category:       "data",
			Tags:           mustTags("database", "sql"),
			ConnectionType: &databaseKind,
			DatabaseDriver: "postgres",
		},
		{
			Name:           "warehouse-mysql",
			DisplayName:    "MySQL Warehouse",
			Description:    "Direct connection to a customer managed MySQL database",
			Category:       "data",
			Tags:           mustTags("database", "sql"),
			ConnectionType: &databaseKind,
			DatabaseDriver: "mysql",
		},
		{
			Name:           "gcp-service-account",
			DisplayName:    "Google Cloud Service Account",
			Description:    "Provisioned out of band by the platform team",
			Category:       "cloud",
			Tags:           mustTags("gcp", "iam"),
			ConnectionType: &serviceAccount,
		},
		{
			// Bundled capability: present in the catalog, absent from the
			// marketplace because nothing can be connected to it.
			Name:        "semantic-search",
			DisplayName: "Semantic Search",
			Description: "Built-in document search capability",
			Category:    "core",
			Tags:        mustTags("bundled"),
		},
	}

	return db.Create(&catalog).Error
}

func mustTags(tags ...string) datatypes.JSON {
	data, err := json.Marshal(tags)
	if err != nil {
		panic(err)
	}
	return datatypes.JSON(data)
}
