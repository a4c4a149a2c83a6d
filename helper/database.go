package helper

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// DatabaseConfiguration holds the connection parameters for Postgres
type DatabaseConfiguration struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
}

// NewDatabaseConfiguration reads the database configuration from the
// environment. A .env file is loaded first if present.
func NewDatabaseConfiguration() (*DatabaseConfiguration, error) {
	_ = godotenv.Load()

	config := &DatabaseConfiguration{
		Host:     os.Getenv("DB_HOST"),
		Port:     os.Getenv("DB_PORT"),
		Name:     os.Getenv("DB_DATABASE"),
		User:     os.Getenv("DB_USERNAME"),
		Password: os.Getenv("DB_PASSWORD"),
	}

	for key, value := range map[string]string{
		"DB_HOST":     config.Host,
		"DB_PORT":     config.Port,
		"DB_DATABASE": config.Name,
		"DB_USERNAME": config.User,
		"DB_PASSWORD": config.Password,
	} {
		if value == "" {
			return nil, fmt.Errorf("missing environment variable %s", key)
		}
	}

	return config, nil
}

// Database wraps a sql.DB instance with its logger
type Database struct {
	Name     string
	Instance *sql.DB
	Logger   *slog.Logger
	Config   *DatabaseConfiguration
}

// NewDatabase opens a connection to the configured Postgres instance.
// It panics if the database is unreachable, since nothing can run without it.
func NewDatabase(name string, config *DatabaseConfiguration, logger *slog.Logger) *Database {
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		config.User,
		config.Password,
		config.Host,
		config.Port,
		config.Name,
	)

	instance, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Panicf("error opening database connection: %v", err)
	}

	if err := instance.Ping(); err != nil {
		log.Panicf("error pinging database: %v", err)
	}

	logger.Info("Connected to database", slog.String("name", name), slog.String("host", config.Host))

	return &Database{
		Name:     name,
		Instance: instance,
		Logger:   logger,
		Config:   config,
	}
}

// Close closes the underlying database connection
func (d *Database) Close() error {
	if d.Instance != nil {
		return d.Instance.Close()
	}
	return nil
}

// NewTestDatabase creates a database connection with a quiet logger for tests
func NewTestDatabase(config *DatabaseConfiguration) *Database {
	opts := PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelError,
		},
	}
	logger := slog.New(NewPrettyHandler(os.Stdout, opts))
	return NewDatabase("test", config, logger)
}

const (
	testDbName = "patterner_test"
	testDbUser = "patterner"
	testDbPwd  = "patterner"
)

// MustStartPostgresContainer starts a disposable pgvector-enabled Postgres
// container for tests and returns its teardown function and mapped port
func MustStartPostgresContainer() (func(context.Context, ...testcontainers.TerminateOption) error, string, error) {
	ctx := context.Background()

	dbContainer, err := postgres.Run(
		ctx,
		"pgvector/pgvector:pg17",
		postgres.WithDatabase(testDbName),
		postgres.WithUsername(testDbUser),
		postgres.WithPassword(testDbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, "", err
	}

	mappedPort, err := dbContainer.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return dbContainer.Terminate, "", err
	}

	return dbContainer.Terminate, mappedPort.Port(), nil
}

// TestContainerConfiguration returns the configuration matching the
// container started by MustStartPostgresContainer
func TestContainerConfiguration(port string) *DatabaseConfiguration {
	return &DatabaseConfiguration{
		Host:     "localhost",
		Port:     port,
		Name:     testDbName,
		User:     testDbUser,
		Password: testDbPwd,
	}
}

// SetTestDatabaseConfigEnvs points the database configuration at the
// test container started by MustStartPostgresContainer
func SetTestDatabaseConfigEnvs(t *testing.T, port string) {
	config := TestContainerConfiguration(port)
	t.Setenv("DB_HOST", config.Host)
	t.Setenv("DB_PORT", config.Port)
	t.Setenv("DB_DATABASE", config.Name)
	t.Setenv("DB_USERNAME", config.User)
	t.Setenv("DB_PASSWORD", config.Password)
}
