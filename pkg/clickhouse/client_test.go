package clickhouse

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions(t *testing.T) {
	opt := options(ClientConfig{
		Host:        "ch",
		Port:        8123,
		Database:    "finchart",
		User:        "reader",
		Password:    "secret",
		UseHTTP:     true,
		DialTimeout: time.Second,
		MaxExecTime: time.Minute,
	})

	assert.Equal(t, []string{"ch:8123"}, opt.Addr)
	assert.Equal(t, "finchart", opt.Auth.Database)
	assert.Equal(t, "reader", opt.Auth.Username)
	assert.Equal(t, ch.HTTP, opt.Protocol)
	assert.Equal(t, 60, opt.Settings["max_execution_time"])
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := NewClient()
	assert.Error(t, err)
}

func TestInitSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	c := NewClientFromDB(db)
	defer c.Close()

	mock.ExpectExec("CREATE DATABASE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("readonly"))

	err = c.InitSchema(context.Background(), []string{"CREATE DATABASE x", "CREATE TABLE y", "never"})
	assert.ErrorContains(t, err, "readonly")
	assert.NoError(t, mock.ExpectationsWereMet())
}
