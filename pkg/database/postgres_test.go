package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/smart-classroom-api/pkg/config"
)

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "classroom",
		Password: "secret",
		Name:     "classroom",
	})
	assert.Equal(t, "host=db port=5432 user=classroom password=secret dbname=classroom sslmode=disable", dsn)

	dsn = PostgresDSN(config.DatabaseConfig{Host: "db", Port: 5433, SSLMode: "require"})
	assert.Contains(t, dsn, "sslmode=require")
	assert.Contains(t, dsn, "port=5433")
}
