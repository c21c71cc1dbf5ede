package remote

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDSNDefaultsSSLModeToRequire(t *testing.T) {
	cfg := Config{Host: "db.example.com", Port: 5439, Database: "warehouse", User: "agent", Password: "secret"}
	dsn := cfg.DSN()
	assert.Contains(t, dsn, "host=db.example.com")
	assert.Contains(t, dsn, "port=5439")
	assert.Contains(t, dsn, "dbname=warehouse")
	assert.Contains(t, dsn, "sslmode=require")
}

func TestDSNHonorsExplicitSSLMode(t *testing.T) {
	cfg := Config{Host: "db", Database: "d", SSLMode: "disable"}
	assert.Contains(t, cfg.DSN(), "sslmode=disable")
}

func TestOpenRejectsEmptyHost(t *testing.T) {
	_, err := Open(context.Background(), Config{Host: "  "})
	assert.Error(t, err)
}
