package db

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolDefaults(t *testing.T) {
	p := Pool{}.withDefaults()
	assert.Equal(t, 25, p.MaxOpenConns)
	assert.Equal(t, 10, p.MaxIdleConns)
	assert.Equal(t, 30*time.Minute, p.ConnMaxLifetime)
	assert.Equal(t, 5*time.Second, p.PingTimeout)

	p = Pool{MaxOpenConns: 4}.withDefaults()
	assert.Equal(t, 4, p.MaxOpenConns)
}

func TestConfigure(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	Configure(db, Pool{MaxOpenConns: 7})
	assert.Equal(t, 7, db.Stats().MaxOpenConnections)
}
