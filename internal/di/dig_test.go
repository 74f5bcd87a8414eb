package di

import (
	"testing"
	"time"

	"github.com/savaki/aws-bootstrapper/internal/services"
	"go.uber.org/dig"
)

// Test types for dependency injection
type Database struct {
	Name string
}

type Repository struct {
	DB *Database
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		opts    []Option
		wantErr bool
	}{
		{
			name:    "creates container with no providers",
			env:     "dev",
			opts:    nil,
			wantErr: false,
		},
		{
			name: "creates container with single provider",
			env:  "stg",
			opts: []Option{
				WithProviders(func() *Database {
					return &Database{Name: "test-db"}
				}),
			},
			wantErr: false,
		},
		{
			name: "creates container with runner options",
			env:  "prd",
			opts: []Option{
				WithWaitInterval(5 * time.Second),
				WithRunnerMode("local"),
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			container, err := New(tt.env, tt.opts...)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if container == nil && !tt.wantErr {
				t.Error("New() returned nil container without error")
			}
		})
	}
}

func TestNew_InvalidProvider(t *testing.T) {
	// Attempting to provide the same type twice should fail
	_, err := New("dev",
		WithProviders(
			func() *Database {
				return &Database{Name: "db1"}
			},
			func() *Database {
				return &Database{Name: "db2"}
			},
		),
	)

	if err == nil {
		t.Error("New() should return error when providing duplicate types")
	}
}

func TestNew_ProvidesEnvironment(t *testing.T) {
	expectedEnv := "test-env"
	container, err := New(expectedEnv)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	var actualEnv string
	err = container.Invoke(func(env string) {
		actualEnv = env
	})
	if err != nil {
		t.Fatalf("Invoke() unexpected error: %v", err)
	}

	if actualEnv != expectedEnv {
		t.Errorf("Environment = %v, want %v", actualEnv, expectedEnv)
	}
}

func TestNew_ProvidesOptions(t *testing.T) {
	container, err := New("dev",
		WithWaitInterval(3*time.Second),
		WithRunnerMode("sfn"),
	)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	err = container.Invoke(func(interval WaitInterval, mode RunnerMode) {
		if time.Duration(interval) != 3*time.Second {
			t.Errorf("WaitInterval = %v, want %v", time.Duration(interval), 3*time.Second)
		}
		if mode != "sfn" {
			t.Errorf("RunnerMode = %v, want %v", mode, "sfn")
		}
	})
	if err != nil {
		t.Fatalf("Invoke() unexpected error: %v", err)
	}
}

func TestNew_ProvidesAccountsTable(t *testing.T) {
	container, err := New("dev",
		WithAccountsTable("caller-accounts"),
	)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	err = container.Invoke(func(table AccountsTable) {
		if table != "caller-accounts" {
			t.Errorf("AccountsTable = %v, want %v", table, "caller-accounts")
		}
	})
	if err != nil {
		t.Fatalf("Invoke() unexpected error: %v", err)
	}
}

func TestResolveAccountsTable(t *testing.T) {
	config := &services.Config{AccountsTableName: "stg-bootstrapper-accounts"}

	tests := []struct {
		name  string
		table AccountsTable
		want  string
	}{
		{
			name:  "caller override wins",
			table: "caller-accounts",
			want:  "caller-accounts",
		},
		{
			name:  "falls back to configured table",
			table: "",
			want:  "stg-bootstrapper-accounts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveAccountsTable(tt.table, config); got != tt.want {
				t.Errorf("resolveAccountsTable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMustGet(t *testing.T) {
	t.Run("successfully retrieves dependency", func(t *testing.T) {
		container, err := New("dev",
			WithProviders(func() *Database {
				return &Database{Name: "test-db"}
			}),
		)
		if err != nil {
			t.Fatalf("New() unexpected error: %v", err)
		}

		db := MustGet[*Database](container)
		if db == nil {
			t.Error("MustGet() returned nil")
		}
		if db.Name != "test-db" {
			t.Errorf("Database.Name = %v, want %v", db.Name, "test-db")
		}
	})

	t.Run("panics when dependency not found", func(t *testing.T) {
		container, err := New("dev")
		if err != nil {
			t.Fatalf("New() unexpected error: %v", err)
		}

		defer func() {
			if r := recover(); r == nil {
				t.Error("MustGet() did not panic")
			}
		}()

		_ = MustGet[*Database](container)
	})
}

func TestDependencyInjection(t *testing.T) {
	t.Run("handles nested dependencies", func(t *testing.T) {
		container, err := New("dev",
			WithProviders(
				func() *Database {
					return &Database{Name: "dev-db"}
				},
				func(db *Database) *Repository {
					return &Repository{DB: db}
				},
			),
		)
		if err != nil {
			t.Fatalf("New() unexpected error: %v", err)
		}

		repo := MustGet[*Repository](container)
		if repo.DB.Name != "dev-db" {
			t.Errorf("Repository.DB.Name = %v, want %v", repo.DB.Name, "dev-db")
		}
	})
}

func TestContainer_Interface(t *testing.T) {
	t.Run("implements Container interface", func(t *testing.T) {
		var _ Container = (*dig.Container)(nil)
	})

	t.Run("can be used polymorphically", func(t *testing.T) {
		var container Container
		container, err := New("dev",
			WithProviders(func() *Database {
				return &Database{Name: "test"}
			}),
		)
		if err != nil {
			t.Fatalf("New() unexpected error: %v", err)
		}

		err = container.Invoke(func(db *Database) {
			if db.Name != "test" {
				t.Errorf("Database.Name = %v, want %v", db.Name, "test")
			}
		})
		if err != nil {
			t.Fatalf("Invoke() unexpected error: %v", err)
		}
	})
}
