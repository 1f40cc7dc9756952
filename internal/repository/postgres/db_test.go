package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/config"
)

func TestConnString(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Host:     "db",
		Port:     "5433",
		User:     "forecast",
		Password: "secret",
		DBName:   "sales",
		SSLMode:  "require",
	}
	assert.Equal(t, "host=db port=5433 user=forecast password=secret dbname=sales sslmode=require", ConnString(cfg))
}
