package testutil

import (
	"net/http/httptest"
	"testing"
	"time"

	echoapi "github.com/trezcool/masomo-console/apps/api/echo"
	"github.com/trezcool/masomo-console/core"
	inmemdb "github.com/trezcool/masomo-console/storage/inmem"
	"github.com/trezcool/masomo-console/storage/remote"
)

const SecretKey = "test-secret-key"

func Config() *core.Config {
	return &core.Config{
		TestMode: true,
		AppName:  "Masomo Console",
		Build:    "test",
		Env:      "TEST",
		Operator: "registrar",
		Backend:  core.BackendConfig{Timeout: 2 * time.Second},
		Promotion: core.PromotionConfig{
			NoticeTTL: time.Minute,
		},
		Server: core.ServerConfig{
			SecretKey:          SecretKey,
			JWTExpirationDelta: time.Hour,
			ShutdownTimeout:    time.Second,
		},
	}
}

// NewRegistry returns a registry filled with inmemdb.Seed.
func NewRegistry(t *testing.T, opts ...inmemdb.Option) *inmemdb.Registry {
	t.Helper()
	reg := inmemdb.NewRegistry(opts...)
	if err := inmemdb.Seed(reg); err != nil {
		t.Fatalf("Seed() failed: %v", err)
	}
	return reg
}

func Token(t *testing.T, conf *core.Config, subject string, admin bool) string {
	t.Helper()
	token, err := echoapi.GenerateToken(echoapi.NewClaims(conf, subject, admin), conf.Server.SecretKey)
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}
	return token
}

func NewServer(conf *core.Config, store echoapi.SchoolStore) echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:           conf,
		Store:          store,
		DisableReqLogs: true,
	})
}

// NewBackend serves store over HTTP and returns a client authenticated as an admin.
func NewBackend(t *testing.T, conf *core.Config, store echoapi.SchoolStore) (*remote.Client, *remote.TokenStore) {
	t.Helper()
	srv := httptest.NewServer(NewServer(conf, store))
	t.Cleanup(srv.Close)

	tokens := remote.NewTokenStore(Token(t, conf, "admin", true))
	client, err := remote.NewClient(srv.URL, tokens, remote.WithTimeout(conf.Backend.Timeout))
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}
	return client, tokens
}
